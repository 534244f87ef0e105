// Package lock provides in-process advisory locking for the dedupe engine.
// Scans and merges acquire named locks (per entity type and per record id) so
// that overlapping merges cannot both succeed and a scan cannot interleave
// with a merge on the same entity type.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because another
// operation is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition.
const (
	// TimeoutImmediate fails immediately if the lock cannot be acquired.
	TimeoutImmediate = 0 * time.Second

	// TimeoutShort is suitable for fast-failing conflict detection.
	TimeoutShort = 1 * time.Second

	// TimeoutMedium provides a reasonable wait for transient conflicts.
	// This is the default for merge execution.
	TimeoutMedium = 10 * time.Second

	// TimeoutLong allows queueing behind a long-running scan.
	TimeoutLong = 60 * time.Second
)

// Registry hands out named advisory locks. The zero value is not usable;
// create one with NewRegistry.
type Registry struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{
		locks: make(map[string]chan struct{}),
	}
}

// Lease represents held locks. Release returns the locks to the registry;
// releasing twice is a no-op.
type Lease struct {
	registry *Registry
	names    []string
	held     bool
	mu       sync.Mutex
}

func (r *Registry) semaphore(name string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	sem, ok := r.locks[name]
	if !ok {
		sem = make(chan struct{}, 1)
		r.locks[name] = sem
	}
	return sem
}

// Acquire obtains a single named lock, waiting up to timeout.
// Returns ErrLockTimeout if another holder does not release in time.
func (r *Registry) Acquire(ctx context.Context, name string, timeout time.Duration) (*Lease, error) {
	return r.AcquireAll(ctx, []string{name}, timeout)
}

// AcquireAll obtains a set of named locks atomically: either every lock is
// held or none are. Names are acquired in sorted order so two operations
// locking overlapping sets cannot deadlock. The timeout bounds the whole
// acquisition, not each name.
func (r *Registry) AcquireAll(ctx context.Context, names []string, timeout time.Duration) (*Lease, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	// Collapse duplicates so a name is never acquired twice.
	sorted = dedupeSorted(sorted)

	deadline := time.Now().Add(timeout)
	acquired := make([]string, 0, len(sorted))

	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			<-r.semaphore(acquired[i])
		}
	}

	for _, name := range sorted {
		sem := r.semaphore(name)

		// Fast path: a free lock must be acquirable even when the shared
		// deadline (or a zero timeout) has already expired.
		select {
		case sem <- struct{}{}:
			acquired = append(acquired, name)
			continue
		default:
		}

		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timer := time.NewTimer(remaining)

		select {
		case sem <- struct{}{}:
			timer.Stop()
			acquired = append(acquired, name)
		case <-timer.C:
			release()
			return nil, fmt.Errorf("acquiring %q: %w", name, ErrLockTimeout)
		case <-ctx.Done():
			timer.Stop()
			release()
			return nil, ctx.Err()
		}
	}

	return &Lease{registry: r, names: acquired, held: true}, nil
}

// Release returns every lock in the lease to the registry.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	for i := len(l.names) - 1; i >= 0; i-- {
		<-l.registry.semaphore(l.names[i])
	}
	l.held = false
}

// Held reports whether the lease still holds its locks.
func (l *Lease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func dedupeSorted(names []string) []string {
	out := names[:0]
	var prev string
	for i, n := range names {
		if i > 0 && n == prev {
			continue
		}
		out = append(out, n)
		prev = n
	}
	return out
}

// EntityName returns the lock name serializing scans and merges for one
// entity type.
func EntityName(entityType string) string {
	return "entity:" + entityType
}

// RecordName returns the lock name guarding a single record during a merge.
func RecordName(entityType, recordID string) string {
	return "record:" + entityType + ":" + recordID
}
