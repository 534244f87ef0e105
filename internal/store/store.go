// Package store defines the record store contract the engine depends on and
// ships two implementations: an in-memory store and a MySQL-backed store.
// The engine never assumes a storage technology; the host injects whichever
// implementation it runs on.
package store

import (
	"context"

	"github.com/dbsmedya/dedupe/internal/types"
)

// RelatedSet is one dependent collection's records referencing a given parent
// record through a foreign key.
type RelatedSet struct {
	EntityType types.EntityType
	Field      string
	Records    []types.Record
}

// RecordStore is the persistence contract supplied by the host application.
// Implementations must treat records as soft-deletable: Update with the
// tombstone fields performs a soft delete, never a physical one.
type RecordStore interface {
	// List returns every record of the entity type, including soft-deleted
	// ones. Used by metrics.
	List(ctx context.Context, entityType types.EntityType) ([]types.Record, error)

	// ListActive returns records that are not soft-deleted.
	ListActive(ctx context.Context, entityType types.EntityType) ([]types.Record, error)

	// GetByID returns a single record, soft-deleted or not.
	// Returns types.ErrRecordNotFound when the id is unknown.
	GetByID(ctx context.Context, entityType types.EntityType, id string) (types.Record, error)

	// Update applies a partial field update and returns the updated record.
	// Returns types.ErrRecordNotFound when the id is unknown.
	Update(ctx context.Context, entityType types.EntityType, id string, fields map[string]interface{}) (types.Record, error)

	// RelatedRecords performs a reverse foreign-key lookup: every dependent
	// record, in any collection, whose foreign key points at the given id.
	RelatedRecords(ctx context.Context, entityType types.EntityType, id string) ([]RelatedSet, error)

	// RelocateForeignKey rewrites the foreign key on every dependent record of
	// the given collection from oldID to newID and returns the number of
	// records touched.
	RelocateForeignKey(ctx context.Context, entityType types.EntityType, field, oldID, newID string) (int, error)
}
