// Package metrics computes per-entity data quality figures: duplicate
// pressure, contactability gaps and broken foreign keys, condensed into a
// 0-100 quality score.
package metrics

import (
	"context"
	"fmt"
	"math"

	"github.com/dbsmedya/dedupe/internal/groups"
	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/normalize"
	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Score penalty weights. Orphaned references hurt the most: they are data
// loss, not just noise.
const (
	duplicatePenalty    = 30.0
	missingEmailPenalty = 20.0
	orphanPenalty       = 50.0
)

// emailFields and phoneFields are the best-effort field names probed when a
// record's schema is not known in advance.
var (
	emailFields = []string{"email", "email_address", "contact_email"}
	phoneFields = []string{"phone", "phone_number", "mobile", "contact_phone"}
)

// Metrics is one entity type's data quality summary.
type Metrics struct {
	EntityType        types.EntityType `json:"entity_type"`
	TotalRecords      int              `json:"total_records"`
	ActiveRecords     int              `json:"active_records"`
	SoftDeletedCount  int              `json:"soft_deleted_count"`
	DuplicateCount    int              `json:"duplicate_count"`
	MissingEmailCount int              `json:"missing_email_count"`
	MissingPhoneCount int              `json:"missing_phone_count"`
	OrphanedCount     int              `json:"orphaned_count"`
	QualityScore      float64          `json:"quality_score"`
}

// Orphan is one record whose foreign key points at a parent that does not
// exist.
type Orphan struct {
	EntityType types.EntityType `json:"entity_type"`
	RecordID   string           `json:"record_id"`
	ForeignKey string           `json:"foreign_key"`
	ParentType types.EntityType `json:"parent_type"`
	ParentID   string           `json:"parent_id"`
}

// Calculator derives quality metrics from the record and group stores.
type Calculator struct {
	records store.RecordStore
	groups  groups.Store
	catalog *relations.Catalog
	logger  *logger.Logger
}

// NewCalculator creates a calculator over the given stores and relation
// catalog.
func NewCalculator(records store.RecordStore, groupStore groups.Store, catalog *relations.Catalog, log *logger.Logger) *Calculator {
	if catalog == nil {
		catalog = relations.DefaultCatalog()
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Calculator{
		records: records,
		groups:  groupStore,
		catalog: catalog,
		logger:  log,
	}
}

// Calculate computes the quality metrics for one entity type.
func (c *Calculator) Calculate(ctx context.Context, entityType types.EntityType) (*Metrics, error) {
	if !entityType.Known() {
		return nil, fmt.Errorf("entity type %q: %w", entityType, types.ErrUnknownEntityType)
	}

	all, err := c.records.List(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", entityType, err)
	}

	m := &Metrics{EntityType: entityType, TotalRecords: len(all)}
	for _, rec := range all {
		if rec.IsDeleted() {
			m.SoftDeletedCount++
			continue
		}
		m.ActiveRecords++
		if bestEffortField(rec, emailFields, normalize.Email) == "" {
			m.MissingEmailCount++
		}
		if bestEffortField(rec, phoneFields, normalize.Phone) == "" {
			m.MissingPhoneCount++
		}
	}

	if entityType.Scannable() {
		count, err := c.countDuplicates(ctx, entityType)
		if err != nil {
			return nil, err
		}
		m.DuplicateCount = count
	}

	if c.catalog.HasParents(entityType) {
		orphans, err := c.FindOrphans(ctx, entityType)
		if err != nil {
			return nil, err
		}
		m.OrphanedCount = len(orphans)
	}

	m.QualityScore = qualityScore(m)
	return m, nil
}

// CalculateAll computes metrics for every entity type the engine knows:
// the scannable types plus every dependent type in the relation catalog.
func (c *Calculator) CalculateAll(ctx context.Context) ([]*Metrics, error) {
	var out []*Metrics
	for _, entityType := range c.entityTypes() {
		m, err := c.Calculate(ctx, entityType)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// OverallQualityScore averages the per-entity quality scores. An empty
// store scores a clean 100.
func (c *Calculator) OverallQualityScore(ctx context.Context) (float64, error) {
	all, err := c.CalculateAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 100, nil
	}
	var sum float64
	for _, m := range all {
		sum += m.QualityScore
	}
	return round2(sum / float64(len(all))), nil
}

// FindOrphans flags active records whose non-empty foreign key does not
// resolve to any parent record, tombstoned parents included. A record is
// reported at most once, on its first broken foreign key.
func (c *Calculator) FindOrphans(ctx context.Context, entityType types.EntityType) ([]Orphan, error) {
	rels := c.catalog.RelationsOf(entityType)
	if len(rels) == 0 {
		return nil, nil
	}

	records, err := c.records.ListActive(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", entityType, err)
	}

	parentIDs := make(map[types.EntityType]map[string]bool)
	var orphans []Orphan
	for _, rec := range records {
		for _, rel := range rels {
			parentID := rec.GetString(rel.ForeignKey)
			if parentID == "" {
				continue
			}
			known, err := c.parentExists(ctx, parentIDs, rel.Parent, parentID)
			if err != nil {
				return nil, err
			}
			if known {
				continue
			}
			orphans = append(orphans, Orphan{
				EntityType: entityType,
				RecordID:   rec.ID(),
				ForeignKey: rel.ForeignKey,
				ParentType: rel.Parent,
				ParentID:   parentID,
			})
			break
		}
	}
	return orphans, nil
}

// countDuplicates counts the distinct record IDs across the entity's
// pending groups.
func (c *Calculator) countDuplicates(ctx context.Context, entityType types.EntityType) (int, error) {
	pending, err := c.groups.List(ctx, groups.Filter{
		EntityType: entityType,
		Status:     types.GroupStatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list pending groups: %w", err)
	}
	seen := make(map[string]bool)
	for _, group := range pending {
		for _, id := range group.RecordIDs {
			seen[id] = true
		}
	}
	return len(seen), nil
}

// parentExists resolves a parent ID, memoizing the parent collection's full
// ID set on first use.
func (c *Calculator) parentExists(ctx context.Context, cache map[types.EntityType]map[string]bool, parentType types.EntityType, parentID string) (bool, error) {
	ids, ok := cache[parentType]
	if !ok {
		parents, err := c.records.List(ctx, parentType)
		if err != nil {
			return false, fmt.Errorf("failed to list %s parents: %w", parentType, err)
		}
		ids = make(map[string]bool, len(parents))
		for _, parent := range parents {
			ids[parent.ID()] = true
		}
		cache[parentType] = ids
	}
	return ids[parentID], nil
}

func (c *Calculator) entityTypes() []types.EntityType {
	out := types.ScannableEntityTypes()
	seen := make(map[types.EntityType]bool, len(out))
	for _, entityType := range out {
		seen[entityType] = true
	}
	for _, rel := range c.catalog.All() {
		if !seen[rel.Entity] {
			seen[rel.Entity] = true
			out = append(out, rel.Entity)
		}
	}
	return out
}

// bestEffortField probes the candidate field names in order and returns the
// first value that survives normalization. Normalization failures degrade
// to "missing" rather than propagating.
func bestEffortField(rec types.Record, candidates []string, normalizer func(string) string) string {
	for _, field := range candidates {
		raw := rec.GetString(field)
		if raw == "" {
			continue
		}
		if normalized := normalizer(raw); normalized != "" {
			return normalized
		}
	}
	return ""
}

// qualityScore condenses the counts into the 0-100 score.
func qualityScore(m *Metrics) float64 {
	if m.TotalRecords == 0 {
		return 100
	}
	total := float64(m.TotalRecords)
	score := 100 -
		duplicatePenalty*float64(m.DuplicateCount)/total -
		missingEmailPenalty*float64(m.MissingEmailCount)/total -
		orphanPenalty*float64(m.OrphanedCount)/total
	if score < 0 {
		score = 0
	}
	return round2(score)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
