// Package merge plans and executes record consolidations: one master record
// survives, duplicates are tombstoned into it, and every dependent record's
// foreign key is repointed at the master.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Planner computes side-effect-free merge previews.
type Planner struct {
	records store.RecordStore
	logger  *logger.Logger
}

// NewPlanner creates a planner over the given record store.
func NewPlanner(records store.RecordStore, log *logger.Logger) *Planner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Planner{records: records, logger: log}
}

// GeneratePreview projects what a merge of mergeIDs into masterID would do.
// It performs no writes.
//
// The master must exist and be active, otherwise the preview fails with
// types.ErrRecordNotFound. Merge candidates that are missing, soft-deleted
// or equal to the master are dropped silently; if none survive the preview
// fails with types.ErrEmptyMergeSet.
func (p *Planner) GeneratePreview(ctx context.Context, entityType types.EntityType, masterID string, mergeIDs []string) (*types.MergePreview, error) {
	if !entityType.Scannable() {
		return nil, fmt.Errorf("entity type %q: %w", entityType, types.ErrUnknownEntityType)
	}

	master, err := p.records.GetByID(ctx, entityType, masterID)
	if err != nil {
		return nil, fmt.Errorf("master %s: %w", masterID, err)
	}
	if master.IsDeleted() {
		return nil, fmt.Errorf("master %s is deleted: %w", masterID, types.ErrRecordNotFound)
	}

	candidates, err := p.resolveCandidates(ctx, entityType, masterID, mergeIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no active merge candidates for master %s: %w", masterID, types.ErrEmptyMergeSet)
	}

	preview := &types.MergePreview{
		MasterRecord:   master,
		RecordsToMerge: candidates,
		FieldsToMerge:  planFields(master, candidates),
	}

	relocations, err := p.planRelocations(ctx, entityType, candidates)
	if err != nil {
		return nil, err
	}
	preview.RelationsToRelocate = relocations

	return preview, nil
}

// resolveCandidates loads the merge candidates, silently dropping IDs that
// are missing, tombstoned, duplicated in the input or equal to the master.
func (p *Planner) resolveCandidates(ctx context.Context, entityType types.EntityType, masterID string, mergeIDs []string) ([]types.Record, error) {
	seen := map[string]bool{masterID: true}
	var candidates []types.Record
	for _, id := range mergeIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		rec, err := p.records.GetByID(ctx, entityType, id)
		if errors.Is(err, types.ErrRecordNotFound) {
			p.logger.WithEntity(entityType).Debugf("Dropping missing merge candidate %s", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", id, err)
		}
		if rec.IsDeleted() {
			p.logger.WithEntity(entityType).Debugf("Dropping tombstoned merge candidate %s", id)
			continue
		}
		candidates = append(candidates, rec)
	}
	return candidates, nil
}

// planFields computes the per-field merge projection over the union of the
// candidate field sets. A field conflicts when the master holds a value and
// some candidate holds a different one; the first differing candidate value
// is reported as the representative merge value.
func planFields(master types.Record, candidates []types.Record) []types.FieldMerge {
	fieldSet := make(map[string]bool)
	for _, rec := range candidates {
		for field := range rec {
			if !types.MergeFieldExcluded(field) {
				fieldSet[field] = true
			}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for field := range fieldSet {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []types.FieldMerge
	for _, field := range fields {
		masterValue := master[field]

		var mergeValue interface{}
		conflict := false
		for _, rec := range candidates {
			value, ok := rec[field]
			if !ok || types.IsEmpty(value) {
				continue
			}
			if mergeValue == nil {
				mergeValue = value
			}
			if !types.IsEmpty(masterValue) && !types.ValuesEqual(masterValue, value) {
				conflict = true
				mergeValue = value
				break
			}
		}
		if mergeValue == nil {
			continue
		}

		out = append(out, types.FieldMerge{
			Field:       field,
			MasterValue: masterValue,
			MergeValue:  mergeValue,
			Conflict:    conflict,
		})
	}
	return out
}

// planRelocations collects the dependent records referencing any candidate,
// aggregated per dependent collection and foreign key.
func (p *Planner) planRelocations(ctx context.Context, entityType types.EntityType, candidates []types.Record) ([]types.RelationRelocation, error) {
	index := make(map[string]int)
	var out []types.RelationRelocation

	for _, candidate := range candidates {
		sets, err := p.records.RelatedRecords(ctx, entityType, candidate.ID())
		if err != nil {
			return nil, fmt.Errorf("related records of %s: %w", candidate.ID(), err)
		}
		for _, set := range sets {
			if len(set.Records) == 0 {
				continue
			}
			key := string(set.EntityType) + ":" + set.Field
			i, ok := index[key]
			if !ok {
				i = len(out)
				index[key] = i
				out = append(out, types.RelationRelocation{
					EntityType:    set.EntityType,
					RelationField: set.Field,
				})
			}
			out[i].Count += len(set.Records)
			out[i].Records = append(out[i].Records, set.Records...)
		}
	}
	return out, nil
}
