package groups

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/dedupe/internal/types"
)

// Memory is an in-process Store that preserves insertion order, so that
// repeated List calls render groups in a stable sequence.
type Memory struct {
	mu     sync.RWMutex
	groups *orderedmap.OrderedMap[string, *types.DuplicateGroup]
}

// NewMemory creates an empty in-memory group store.
func NewMemory() *Memory {
	return &Memory{
		groups: orderedmap.NewOrderedMap[string, *types.DuplicateGroup](),
	}
}

var _ Store = (*Memory)(nil)

// Upsert inserts the group or merges it into an existing group with the
// same ID per the Store contract.
func (m *Memory) Upsert(_ context.Context, group *types.DuplicateGroup) error {
	if group == nil || group.ID == "" {
		return fmt.Errorf("group must have an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	existing, ok := m.groups.Get(group.ID)
	if !ok {
		stored := group.Clone()
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		if stored.UpdatedAt.IsZero() {
			stored.UpdatedAt = stored.CreatedAt
		}
		if stored.Status == "" {
			stored.Status = types.GroupStatusPending
		}
		m.groups.Set(stored.ID, stored)
		return nil
	}

	merged := group.Clone()
	merged.CreatedAt = existing.CreatedAt
	merged.Status = existing.Status
	merged.UpdatedAt = now
	if merged.LastScanAt.IsZero() {
		merged.LastScanAt = now
	}
	m.groups.Set(merged.ID, merged)
	return nil
}

// Get returns a copy of the group with the given ID.
func (m *Memory) Get(_ context.Context, id string) (*types.DuplicateGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	group, ok := m.groups.Get(id)
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, types.ErrGroupNotFound)
	}
	return group.Clone(), nil
}

// List returns copies of all groups matching the filter, in insertion order.
func (m *Memory) List(_ context.Context, filter Filter) ([]*types.DuplicateGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.DuplicateGroup
	for el := m.groups.Front(); el != nil; el = el.Next() {
		if filter.matches(el.Value) {
			out = append(out, el.Value.Clone())
		}
	}
	return out, nil
}

// SetStatus moves the group to a new lifecycle status.
func (m *Memory) SetStatus(_ context.Context, id string, status types.GroupStatus) error {
	if !status.Valid() {
		return fmt.Errorf("status %q: %w", status, types.ErrInvalidTransition)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	group, ok := m.groups.Get(id)
	if !ok {
		return fmt.Errorf("group %s: %w", id, types.ErrGroupNotFound)
	}
	if !group.Status.CanTransitionTo(status) {
		return fmt.Errorf("group %s: %s -> %s: %w", id, group.Status, status, types.ErrInvalidTransition)
	}

	updated := group.Clone()
	updated.Status = status
	updated.UpdatedAt = time.Now()
	m.groups.Set(id, updated)
	return nil
}

// Remove deletes the group. Removing an unknown ID is an error.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.groups.Delete(id) {
		return fmt.Errorf("group %s: %w", id, types.ErrGroupNotFound)
	}
	return nil
}
