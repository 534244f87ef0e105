// Package engine is the embedding surface of the deduplication system. It
// wires the scanner, merge machinery, group store and metrics behind one
// facade and serializes scans and merges per entity type.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/dedupe/internal/config"
	"github.com/dbsmedya/dedupe/internal/groups"
	"github.com/dbsmedya/dedupe/internal/lock"
	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/merge"
	"github.com/dbsmedya/dedupe/internal/metrics"
	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/scanner"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Options are the injectable dependencies. Every field is optional; nil
// fields fall back to in-memory implementations, which suits tests and
// embedders that bring their own persistence only where they need it.
type Options struct {
	Records  store.RecordStore
	Groups   groups.Store
	MergeLog merge.Log
	Catalog  *relations.Catalog
	Logger   *logger.Logger
}

// Engine exposes the deduplication operations.
type Engine struct {
	cfg      *config.Config
	records  store.RecordStore
	groups   groups.Store
	mergeLog merge.Log
	catalog  *relations.Catalog
	locks    *lock.Registry
	scanner  *scanner.Scanner
	planner  *merge.Planner
	executor *merge.Executor
	metrics  *metrics.Calculator
	logger   *logger.Logger
}

// New creates an engine from the configuration and optional dependencies.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewDefault()
	}

	catalog := opts.Catalog
	if catalog == nil && len(cfg.Relations) > 0 {
		built, err := relations.NewCatalog(cfg.Relations)
		if err != nil {
			return nil, fmt.Errorf("invalid relation config: %w", err)
		}
		catalog = built
	}
	if catalog == nil {
		catalog = relations.DefaultCatalog()
	}

	records := opts.Records
	if records == nil {
		records = store.NewMemory(catalog)
	}
	groupStore := opts.Groups
	if groupStore == nil {
		groupStore = groups.NewMemory()
	}
	mergeLog := opts.MergeLog
	if mergeLog == nil {
		mergeLog = merge.NewMemoryLog()
	}

	locks := lock.NewRegistry()
	lockTimeout := time.Duration(cfg.Scan.LockTimeoutSecs) * time.Second
	if lockTimeout <= 0 {
		lockTimeout = lock.TimeoutMedium
	}

	return &Engine{
		cfg:      cfg,
		records:  records,
		groups:   groupStore,
		mergeLog: mergeLog,
		catalog:  catalog,
		locks:    locks,
		scanner:  scanner.New(records, groupStore, cfg, log),
		planner:  merge.NewPlanner(records, log),
		executor: merge.NewExecutor(records, mergeLog, locks, lockTimeout, log),
		metrics:  metrics.NewCalculator(records, groupStore, catalog, log),
		logger:   log,
	}, nil
}

// Config returns the engine's active configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Scan runs a duplicate scan over one entity type using the configured
// threshold. The entity type's lock is held for the whole scan, so a merge
// cannot tombstone records out from under it.
func (e *Engine) Scan(ctx context.Context, entityType types.EntityType, onProgress scanner.ProgressFunc) ([]*types.DuplicateGroup, error) {
	lease, err := e.locks.Acquire(ctx, lock.EntityName(string(entityType)), e.lockTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s for scanning: %w", entityType, err)
	}
	defer lease.Release()

	return e.scanner.Scan(ctx, entityType, e.cfg.Scan.Threshold, onProgress)
}

// ScanAll scans the given entity types sequentially, or every scannable
// type when none are named. Per-entity failures flow through the progress
// callback and do not stop the remaining types.
func (e *Engine) ScanAll(ctx context.Context, entityTypes []types.EntityType, onProgress scanner.ProgressFunc) ([]*types.DuplicateGroup, error) {
	if len(entityTypes) == 0 {
		entityTypes = types.ScannableEntityTypes()
	}

	var all []*types.DuplicateGroup
	for _, entityType := range entityTypes {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		found, err := e.Scan(ctx, entityType, onProgress)
		if err != nil {
			e.logger.WithEntity(entityType).Errorf("Scan failed: %v", err)
			if onProgress != nil {
				onProgress(scanner.Progress{EntityType: entityType, IsComplete: true, Err: err})
			}
			continue
		}
		all = append(all, found...)
	}
	return all, nil
}

// AutoMergeCandidates returns pending groups scoring at or above the
// configured auto-merge threshold.
func (e *Engine) AutoMergeCandidates(ctx context.Context, entityType types.EntityType) ([]*types.DuplicateGroup, error) {
	return e.scanner.AutoMergeCandidates(ctx, entityType, e.cfg.Scan.AutoMergeThreshold)
}

// ListGroups returns stored duplicate groups, optionally filtered by
// entity type and status.
func (e *Engine) ListGroups(ctx context.Context, filter groups.Filter) ([]*types.DuplicateGroup, error) {
	return e.groups.List(ctx, filter)
}

// GetGroup returns one duplicate group by ID.
func (e *Engine) GetGroup(ctx context.Context, id string) (*types.DuplicateGroup, error) {
	return e.groups.Get(ctx, id)
}

// SetGroupStatus transitions a group's lifecycle status.
func (e *Engine) SetGroupStatus(ctx context.Context, id string, status types.GroupStatus) error {
	return e.groups.SetStatus(ctx, id, status)
}

// IgnoreGroup marks a pending group as ignored.
func (e *Engine) IgnoreGroup(ctx context.Context, id string) error {
	return e.groups.SetStatus(ctx, id, types.GroupStatusIgnored)
}

// MarkGroupNotDuplicate marks a pending group as a confirmed non-duplicate.
func (e *Engine) MarkGroupNotDuplicate(ctx context.Context, id string) error {
	return e.groups.SetStatus(ctx, id, types.GroupStatusNotDuplicate)
}

// RemoveGroup deletes a group from the store.
func (e *Engine) RemoveGroup(ctx context.Context, id string) error {
	return e.groups.Remove(ctx, id)
}

// GeneratePreview computes a side-effect-free merge preview.
func (e *Engine) GeneratePreview(ctx context.Context, entityType types.EntityType, masterID string, mergeIDs []string) (*types.MergePreview, error) {
	return e.planner.GeneratePreview(ctx, entityType, masterID, mergeIDs)
}

// Merge consolidates mergeIDs into masterID and removes any pending groups
// the merge fully consumed.
func (e *Engine) Merge(ctx context.Context, entityType types.EntityType, masterID string, mergeIDs []string, resolutions []types.ConflictResolution, mergedBy string) (*types.MergeOperation, error) {
	op, err := e.executor.Merge(ctx, entityType, masterID, mergeIDs, resolutions, mergedBy)
	if err != nil {
		return nil, err
	}
	e.removeConsumedGroups(ctx, entityType, masterID, op.MergedRecordIDs)
	return op, nil
}

// MergeGroup merges a stored group. An empty masterID falls back to the
// group's suggested master; the remaining members become the merge set.
func (e *Engine) MergeGroup(ctx context.Context, groupID, masterID string, resolutions []types.ConflictResolution, mergedBy string) (*types.MergeOperation, error) {
	group, err := e.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if masterID == "" {
		masterID = group.SuggestedMasterID
	}
	if !group.HasRecord(masterID) {
		return nil, fmt.Errorf("master %s is not a member of group %s: %w", masterID, groupID, types.ErrRecordNotFound)
	}

	var mergeIDs []string
	for _, id := range group.RecordIDs {
		if id != masterID {
			mergeIDs = append(mergeIDs, id)
		}
	}
	return e.Merge(ctx, group.EntityType, masterID, mergeIDs, resolutions, mergedBy)
}

// GetMergeLog returns the audit trail, optionally filtered by entity type.
func (e *Engine) GetMergeLog(ctx context.Context, entityType types.EntityType) ([]*types.MergeOperation, error) {
	return e.mergeLog.List(ctx, entityType)
}

// CalculateMetrics computes data quality metrics for one entity type.
func (e *Engine) CalculateMetrics(ctx context.Context, entityType types.EntityType) (*metrics.Metrics, error) {
	return e.metrics.Calculate(ctx, entityType)
}

// CalculateAllMetrics computes metrics for every known entity type.
func (e *Engine) CalculateAllMetrics(ctx context.Context) ([]*metrics.Metrics, error) {
	return e.metrics.CalculateAll(ctx)
}

// OverallQualityScore condenses all per-entity scores into one figure.
func (e *Engine) OverallQualityScore(ctx context.Context) (float64, error) {
	return e.metrics.OverallQualityScore(ctx)
}

// FindOrphans flags records whose foreign keys reference missing parents.
func (e *Engine) FindOrphans(ctx context.Context, entityType types.EntityType) ([]metrics.Orphan, error) {
	return e.metrics.FindOrphans(ctx, entityType)
}

// removeConsumedGroups drops pending groups whose membership is fully
// covered by a completed merge. Cleanup failures are logged, not returned:
// the merge itself has already committed.
func (e *Engine) removeConsumedGroups(ctx context.Context, entityType types.EntityType, masterID string, mergedIDs []string) {
	consumed := map[string]bool{masterID: true}
	for _, id := range mergedIDs {
		consumed[id] = true
	}

	pending, err := e.groups.List(ctx, groups.Filter{
		EntityType: entityType,
		Status:     types.GroupStatusPending,
	})
	if err != nil {
		e.logger.WithEntity(entityType).Warnf("Failed to list groups for post-merge cleanup: %v", err)
		return
	}

	for _, group := range pending {
		covered := true
		for _, id := range group.RecordIDs {
			if !consumed[id] {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}
		if err := e.groups.Remove(ctx, group.ID); err != nil {
			e.logger.WithGroup(group.ID).Warnf("Failed to remove consumed group: %v", err)
			continue
		}
		e.logger.WithGroup(group.ID).Info("Removed duplicate group consumed by merge")
	}
}

func (e *Engine) lockTimeout() time.Duration {
	timeout := time.Duration(e.cfg.Scan.LockTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = lock.TimeoutMedium
	}
	return timeout
}
