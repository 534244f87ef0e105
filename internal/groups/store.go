// Package groups persists duplicate groups between scans and tracks
// their adjudication status.
package groups

import (
	"context"

	"github.com/dbsmedya/dedupe/internal/types"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	EntityType types.EntityType
	Status     types.GroupStatus
}

// Store is the persistence boundary for duplicate groups.
//
// Upsert merges a re-scanned group into an existing one with the same ID:
// the stored ID, CreatedAt and Status survive, while the match data
// (RecordIDs, Matches, OverallScore, MatchReason, SuggestedMasterID) and
// the UpdatedAt/LastScanAt timestamps are refreshed. A group the store
// has never seen is inserted as given.
//
// SetStatus enforces the group lifecycle: only pending groups may move to
// merged, ignored or not_duplicate. Any other transition fails with
// types.ErrInvalidTransition.
type Store interface {
	Upsert(ctx context.Context, group *types.DuplicateGroup) error
	Get(ctx context.Context, id string) (*types.DuplicateGroup, error)
	List(ctx context.Context, filter Filter) ([]*types.DuplicateGroup, error)
	SetStatus(ctx context.Context, id string, status types.GroupStatus) error
	Remove(ctx context.Context, id string) error
}

func (f Filter) matches(g *types.DuplicateGroup) bool {
	if f.EntityType != "" && g.EntityType != f.EntityType {
		return false
	}
	if f.Status != "" && g.Status != f.Status {
		return false
	}
	return true
}
