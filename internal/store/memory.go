package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Memory is an in-memory RecordStore. It is the reference implementation of
// the store contract and the substrate for engine tests; a host embedding the
// engine in front of its own persistence supplies its own implementation.
type Memory struct {
	mu      sync.RWMutex
	catalog *relations.Catalog

	records map[types.EntityType]map[string]types.Record
	// order preserves insertion order per collection so listings are stable.
	order map[types.EntityType][]string
}

// NewMemory creates an empty in-memory store using the given relation catalog
// for reverse foreign-key lookups.
func NewMemory(catalog *relations.Catalog) *Memory {
	return &Memory{
		catalog: catalog,
		records: make(map[types.EntityType]map[string]types.Record),
		order:   make(map[types.EntityType][]string),
	}
}

// Put inserts or replaces a record. Records without an id are rejected.
func (m *Memory) Put(entityType types.EntityType, rec types.Record) error {
	id := rec.ID()
	if id == "" {
		return fmt.Errorf("record has no id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.records[entityType]
	if !ok {
		coll = make(map[string]types.Record)
		m.records[entityType] = coll
	}
	if _, exists := coll[id]; !exists {
		m.order[entityType] = append(m.order[entityType], id)
	}
	coll[id] = rec.Clone()
	return nil
}

// Seed bulk-inserts records, panicking on id-less entries. Test convenience.
func (m *Memory) Seed(entityType types.EntityType, recs ...types.Record) {
	for _, rec := range recs {
		if err := m.Put(entityType, rec); err != nil {
			panic(err)
		}
	}
}

// List returns every record of the entity type, including soft-deleted ones.
func (m *Memory) List(ctx context.Context, entityType types.EntityType) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Record, 0, len(m.order[entityType]))
	for _, id := range m.order[entityType] {
		out = append(out, m.records[entityType][id].Clone())
	}
	return out, nil
}

// ListActive returns records that are not soft-deleted.
func (m *Memory) ListActive(ctx context.Context, entityType types.EntityType) ([]types.Record, error) {
	all, err := m.List(ctx, entityType)
	if err != nil {
		return nil, err
	}

	active := all[:0]
	for _, rec := range all {
		if !rec.IsDeleted() {
			active = append(active, rec)
		}
	}
	return active, nil
}

// GetByID returns a single record, soft-deleted or not.
func (m *Memory) GetByID(ctx context.Context, entityType types.EntityType, id string) (types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[entityType][id]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", entityType, id, types.ErrRecordNotFound)
	}
	return rec.Clone(), nil
}

// Update applies a partial field update and returns the updated record.
func (m *Memory) Update(ctx context.Context, entityType types.EntityType, id string, fields map[string]interface{}) (types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[entityType][id]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", entityType, id, types.ErrRecordNotFound)
	}

	updated := rec.Clone()
	for k, v := range fields {
		if v == nil {
			delete(updated, k)
			continue
		}
		updated[k] = v
	}
	m.records[entityType][id] = updated
	return updated.Clone(), nil
}

// RelatedRecords performs a reverse foreign-key lookup through the relation
// catalog.
func (m *Memory) RelatedRecords(ctx context.Context, entityType types.EntityType, id string) ([]RelatedSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RelatedSet
	for _, rel := range m.catalog.DependentsOf(entityType) {
		var matched []types.Record
		for _, depID := range m.order[rel.Entity] {
			rec := m.records[rel.Entity][depID]
			if rec.GetString(rel.ForeignKey) == id {
				matched = append(matched, rec.Clone())
			}
		}
		if len(matched) > 0 {
			out = append(out, RelatedSet{
				EntityType: rel.Entity,
				Field:      rel.ForeignKey,
				Records:    matched,
			})
		}
	}
	return out, nil
}

// RelocateForeignKey rewrites the foreign key on every dependent record from
// oldID to newID.
func (m *Memory) RelocateForeignKey(ctx context.Context, entityType types.EntityType, field, oldID, newID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, id := range m.order[entityType] {
		rec := m.records[entityType][id]
		if rec.GetString(field) == oldID {
			updated := rec.Clone()
			updated[field] = newID
			m.records[entityType][id] = updated
			count++
		}
	}
	return count, nil
}

var _ RecordStore = (*Memory)(nil)
