package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/dedupe/internal/lock"
	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Executor applies merges. Each call is all-or-nothing: every write is paired
// with a compensating undo, and a failure rolls back everything already
// applied before the error is returned.
type Executor struct {
	records     store.RecordStore
	planner     *Planner
	auditLog    Log
	locks       *lock.Registry
	lockTimeout time.Duration
	logger      *logger.Logger
}

// NewExecutor creates an executor over the given record store and audit log.
func NewExecutor(records store.RecordStore, auditLog Log, locks *lock.Registry, lockTimeout time.Duration, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewDefault()
	}
	if locks == nil {
		locks = lock.NewRegistry()
	}
	if lockTimeout < 0 {
		lockTimeout = lock.TimeoutMedium
	}
	return &Executor{
		records:     records,
		planner:     NewPlanner(records, log),
		auditLog:    auditLog,
		locks:       locks,
		lockTimeout: lockTimeout,
		logger:      log,
	}
}

// Merge consolidates mergeIDs into masterID and returns the audit record.
//
// Unlike the planner, the executor is strict about the requested set: if any
// requested candidate was dropped during planning (missing or already
// tombstoned), the merge fails with types.ErrRecordNotFound rather than
// silently consolidating a subset.
func (e *Executor) Merge(ctx context.Context, entityType types.EntityType, masterID string, mergeIDs []string, resolutions []types.ConflictResolution, mergedBy string) (*types.MergeOperation, error) {
	lockNames := []string{
		lock.EntityName(string(entityType)),
		lock.RecordName(string(entityType), masterID),
	}
	for _, id := range mergeIDs {
		lockNames = append(lockNames, lock.RecordName(string(entityType), id))
	}
	lease, err := e.locks.AcquireAll(ctx, lockNames, e.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to lock merge set: %w", err)
	}
	defer lease.Release()

	preview, err := e.planner.GeneratePreview(ctx, entityType, masterID, mergeIDs)
	if err != nil {
		// The planner drops unusable candidates silently, so an empty plan
		// must be blamed on the first missing or tombstoned requested ID
		// before it can be reported as an empty set.
		if errors.Is(err, types.ErrEmptyMergeSet) {
			if verr := e.verifyCandidates(ctx, entityType, masterID, mergeIDs); verr != nil {
				return nil, verr
			}
		}
		return nil, err
	}
	if err := requireAllCandidates(mergeIDs, masterID, preview.RecordsToMerge); err != nil {
		return nil, err
	}

	log := e.logger.WithEntity(entityType)
	log.Infof("Merging %d records into %s", len(preview.RecordsToMerge), masterID)

	resolutionFor := make(map[string]types.ConflictResolution, len(resolutions))
	for _, res := range resolutions {
		resolutionFor[res.Field] = res
	}

	var undo []func(context.Context) error
	rollback := func(cause error) error {
		log.Warnf("Merge into %s failed, rolling back %d steps: %v", masterID, len(undo), cause)
		errs := []error{cause}
		for i := len(undo) - 1; i >= 0; i-- {
			if undoErr := undo[i](context.WithoutCancel(ctx)); undoErr != nil {
				errs = append(errs, fmt.Errorf("rollback step %d: %w", i, undoErr))
			}
		}
		return errors.Join(errs...)
	}

	details := types.MergeDetails{}
	masterUpdates := make(map[string]interface{})
	for _, fm := range preview.FieldsToMerge {
		details.FieldsMerged = append(details.FieldsMerged, fm.Field)

		if fm.Conflict {
			res, ok := resolutionFor[fm.Field]
			if !ok {
				// Unresolved conflicts keep the master's value.
				continue
			}
			discarded := fm.MasterValue
			if types.ValuesEqual(res.ChosenValue, fm.MasterValue) {
				discarded = fm.MergeValue
			}
			masterUpdates[fm.Field] = res.ChosenValue
			details.ConflictsResolved = append(details.ConflictsResolved, types.ConflictResolution{
				Field:          fm.Field,
				ChosenValue:    res.ChosenValue,
				DiscardedValue: discarded,
			})
			continue
		}
		if types.IsEmpty(fm.MasterValue) {
			masterUpdates[fm.Field] = fm.MergeValue
		}
	}

	if len(masterUpdates) > 0 {
		previous := make(map[string]interface{}, len(masterUpdates))
		for field := range masterUpdates {
			previous[field] = preview.MasterRecord[field]
		}
		if _, err := e.records.Update(ctx, entityType, masterID, masterUpdates); err != nil {
			return nil, rollback(fmt.Errorf("failed to update master %s: %w", masterID, err))
		}
		undo = append(undo, func(ctx context.Context) error {
			_, err := e.records.Update(ctx, entityType, masterID, previous)
			return err
		})
	}

	relocated, undoRelocations, err := e.relocateRelations(ctx, preview, masterID)
	undo = append(undo, undoRelocations...)
	if err != nil {
		return nil, rollback(err)
	}
	details.RelationsRelocated = relocated

	now := time.Now()
	tombstone := types.Tombstone(masterID, now)
	for _, candidate := range preview.RecordsToMerge {
		restore := map[string]interface{}{
			types.FieldIsDeleted:  candidate[types.FieldIsDeleted],
			types.FieldDeletedAt:  candidate[types.FieldDeletedAt],
			types.FieldMergedInto: candidate[types.FieldMergedInto],
		}
		candidateID := candidate.ID()
		if _, err := e.records.Update(ctx, entityType, candidateID, tombstone); err != nil {
			return nil, rollback(fmt.Errorf("failed to tombstone %s: %w", candidateID, err))
		}
		undo = append(undo, func(ctx context.Context) error {
			_, err := e.records.Update(ctx, entityType, candidateID, restore)
			return err
		})
	}

	op := &types.MergeOperation{
		ID:             uuid.NewString(),
		EntityType:     entityType,
		MasterRecordID: masterID,
		MergedBy:       mergedBy,
		MergedAt:       now,
		MergeDetails:   details,
	}
	for _, candidate := range preview.RecordsToMerge {
		op.MergedRecordIDs = append(op.MergedRecordIDs, candidate.ID())
	}

	if err := e.auditLog.Append(ctx, op); err != nil {
		return nil, rollback(fmt.Errorf("failed to append merge log: %w", err))
	}

	log.Infof("Merged %v into %s (%d fields, %d relations relocated)",
		op.MergedRecordIDs, masterID, len(details.FieldsMerged), len(details.RelationsRelocated))
	return op, nil
}

// relocateRelations repoints every dependent record referencing a merge
// candidate at the master. The undo steps restore each dependent record's
// original foreign key individually, so pre-existing references to the
// master are never disturbed by a rollback.
func (e *Executor) relocateRelations(ctx context.Context, preview *types.MergePreview, masterID string) ([]types.RelocatedRelation, []func(context.Context) error, error) {
	counts := make(map[types.EntityType]int)
	var order []types.EntityType
	var undo []func(context.Context) error

	for _, rel := range preview.RelationsToRelocate {
		for _, dependent := range rel.Records {
			dependentID := dependent.ID()
			original := dependent.GetString(rel.RelationField)
			if original == masterID {
				continue
			}
			if _, err := e.records.Update(ctx, rel.EntityType, dependentID, map[string]interface{}{
				rel.RelationField: masterID,
			}); err != nil {
				return nil, undo, fmt.Errorf("failed to relocate %s %s: %w", rel.EntityType, dependentID, err)
			}
			field := rel.RelationField
			entityType := rel.EntityType
			undo = append(undo, func(ctx context.Context) error {
				_, err := e.records.Update(ctx, entityType, dependentID, map[string]interface{}{
					field: original,
				})
				return err
			})
			if counts[rel.EntityType] == 0 {
				order = append(order, rel.EntityType)
			}
			counts[rel.EntityType]++
		}
	}

	out := make([]types.RelocatedRelation, 0, len(order))
	for _, entityType := range order {
		out = append(out, types.RelocatedRelation{EntityType: entityType, Count: counts[entityType]})
	}
	return out, undo, nil
}

// verifyCandidates checks that every requested merge ID names an active
// record, failing with types.ErrRecordNotFound on the first that does not.
func (e *Executor) verifyCandidates(ctx context.Context, entityType types.EntityType, masterID string, mergeIDs []string) error {
	for _, id := range mergeIDs {
		if id == "" || id == masterID {
			continue
		}
		rec, err := e.records.GetByID(ctx, entityType, id)
		if err != nil || rec.IsDeleted() {
			return fmt.Errorf("merge candidate %s: %w", id, types.ErrRecordNotFound)
		}
	}
	return nil
}

// requireAllCandidates verifies every requested merge ID survived planning.
func requireAllCandidates(mergeIDs []string, masterID string, survivors []types.Record) error {
	surviving := make(map[string]bool, len(survivors))
	for _, rec := range survivors {
		surviving[rec.ID()] = true
	}
	for _, id := range mergeIDs {
		if id == "" || id == masterID {
			continue
		}
		if !surviving[id] {
			return fmt.Errorf("merge candidate %s: %w", id, types.ErrRecordNotFound)
		}
	}
	return nil
}
