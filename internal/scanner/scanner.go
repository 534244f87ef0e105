package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/dedupe/internal/config"
	"github.com/dbsmedya/dedupe/internal/groups"
	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

// groupNamespace seeds the deterministic group IDs. The same membership
// found by a later scan maps to the same group row, so upserts are
// meaningful across runs.
var groupNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("groups.dedupe.dbsmedya.com"))

// Progress reports scan advancement after each examined record.
type Progress struct {
	EntityType       types.EntityType
	TotalRecords     int
	ProcessedRecords int
	FoundDuplicates  int
	IsComplete       bool
	// Err carries a per-entity failure during ScanAll; the scan of the
	// remaining entity types continues.
	Err error
}

// ProgressFunc receives scan progress updates. May be nil.
type ProgressFunc func(Progress)

// Scanner finds duplicate groups within an entity type's active records.
type Scanner struct {
	records store.RecordStore
	groups  groups.Store
	cfg     *config.Config
	matcher *Matcher
	logger  *logger.Logger
}

// New creates a scanner over the given record and group stores.
func New(records store.RecordStore, groupStore groups.Store, cfg *config.Config, log *logger.Logger) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Scanner{
		records: records,
		groups:  groupStore,
		cfg:     cfg,
		matcher: NewMatcher(cfg.Scan.Weights),
		logger:  log,
	}
}

// Scan examines all active records of entityType pairwise and returns the
// duplicate groups at or above threshold. Found groups are upserted into
// the group store before returning.
//
// Clustering is first-match-wins, not transitive closure: once a record
// appears in a match it is not compared again within the pass, so two
// records that each resemble a shared third record may land in different
// groups depending on visitation order.
func (s *Scanner) Scan(ctx context.Context, entityType types.EntityType, threshold float64, onProgress ProgressFunc) ([]*types.DuplicateGroup, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v: %w", threshold, types.ErrInvalidThreshold)
	}
	if !entityType.Scannable() {
		return nil, fmt.Errorf("entity type %q: %w", entityType, types.ErrUnknownEntityType)
	}
	rules, ok := s.cfg.RulesFor(entityType)
	if !ok {
		return nil, fmt.Errorf("no matching rules for entity type %q: %w", entityType, types.ErrUnknownEntityType)
	}

	records, err := s.records.ListActive(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", entityType, err)
	}

	log := s.logger.WithEntity(entityType)
	log.Infof("Scanning %d active records (threshold %.2f)", len(records), threshold)

	byID := make(map[string]types.Record, len(records))
	for _, rec := range records {
		byID[rec.ID()] = rec
	}

	processed := make(map[string]bool, len(records))
	seeded := make(map[string]*types.DuplicateGroup)
	var found []*types.DuplicateGroup

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := rec.ID()
		if !processed[id] {
			var matches []types.DuplicateMatch
			for j, other := range records {
				if j == i || processed[other.ID()] {
					continue
				}
				match := s.matcher.Compare(entityType, rec, other, rules)
				if match.Score >= threshold {
					matches = append(matches, match)
				}
			}

			if len(matches) > 0 {
				// Seeds are marked processed below and the processed gate
				// above never admits a record twice, so on a single pass a
				// seed always lands in the else branch. The extension path
				// defines how an open group absorbs late matches if that
				// gate is ever relaxed; its averaging law has its own test.
				if group, ok := seeded[id]; ok {
					extendGroup(group, matches)
				} else {
					group := s.seedGroup(entityType, rec, matches)
					seeded[id] = group
					found = append(found, group)
				}
				processed[id] = true
				for _, match := range matches {
					processed[match.RecordID] = true
				}
			}
		}

		if onProgress != nil {
			onProgress(Progress{
				EntityType:       entityType,
				TotalRecords:     len(records),
				ProcessedRecords: i + 1,
				FoundDuplicates:  len(found),
			})
		}
	}

	now := time.Now()
	for _, group := range found {
		s.finalizeGroup(group, byID, now)
		if err := s.groups.Upsert(ctx, group); err != nil {
			return nil, fmt.Errorf("failed to persist group %s: %w", group.ID, err)
		}
	}

	log.Infof("Scan complete: %d duplicate groups found", len(found))
	if onProgress != nil {
		onProgress(Progress{
			EntityType:       entityType,
			TotalRecords:     len(records),
			ProcessedRecords: len(records),
			FoundDuplicates:  len(found),
			IsComplete:       true,
		})
	}
	return found, nil
}

// ScanAll scans each entity type sequentially with a shared progress
// callback. A failure in one entity type is reported through the
// callback's Err field and does not stop the remaining types.
func (s *Scanner) ScanAll(ctx context.Context, entityTypes []types.EntityType, threshold float64, onProgress ProgressFunc) ([]*types.DuplicateGroup, error) {
	if len(entityTypes) == 0 {
		entityTypes = types.ScannableEntityTypes()
	}

	var all []*types.DuplicateGroup
	for _, entityType := range entityTypes {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		found, err := s.Scan(ctx, entityType, threshold, onProgress)
		if err != nil {
			s.logger.WithEntity(entityType).Errorf("Scan failed: %v", err)
			if onProgress != nil {
				onProgress(Progress{EntityType: entityType, IsComplete: true, Err: err})
			}
			continue
		}
		all = append(all, found...)
	}
	return all, nil
}

// AutoMergeCandidates returns pending groups whose overall score meets the
// auto-merge threshold. It performs no mutation; executing the merges is
// the caller's decision.
func (s *Scanner) AutoMergeCandidates(ctx context.Context, entityType types.EntityType, autoThreshold float64) ([]*types.DuplicateGroup, error) {
	if autoThreshold <= 0 || autoThreshold > 1 {
		return nil, fmt.Errorf("auto-merge threshold %v: %w", autoThreshold, types.ErrInvalidThreshold)
	}

	pending, err := s.groups.List(ctx, groups.Filter{
		EntityType: entityType,
		Status:     types.GroupStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending groups: %w", err)
	}

	var candidates []*types.DuplicateGroup
	for _, group := range pending {
		if group.OverallScore >= autoThreshold {
			candidates = append(candidates, group)
		}
	}
	return candidates, nil
}

// seedGroup opens a new group around rec and its matches. The seed itself
// is recorded as a pseudo-match at score 1.0 so the group's match list is
// self-describing.
func (s *Scanner) seedGroup(entityType types.EntityType, rec types.Record, matches []types.DuplicateMatch) *types.DuplicateGroup {
	group := &types.DuplicateGroup{
		EntityType: entityType,
		RecordIDs:  []string{rec.ID()},
		Matches: append([]types.DuplicateMatch{{
			RecordID: rec.ID(),
			Score:    1.0,
			Reasons:  []string{"Master record"},
		}}, matches...),
		OverallScore: averageScore(matches),
		Status:       types.GroupStatusPending,
	}
	for _, match := range matches {
		group.AddRecord(match.RecordID)
	}
	return group
}

// extendGroup folds newly found matches into an open group. The overall
// score becomes the plain average of the group's previous score and the
// new matches' average.
func extendGroup(group *types.DuplicateGroup, matches []types.DuplicateMatch) {
	for _, match := range matches {
		if !group.HasRecord(match.RecordID) {
			group.AddRecord(match.RecordID)
			group.Matches = append(group.Matches, match)
		}
	}
	group.OverallScore = (group.OverallScore + averageScore(matches)) / 2
}

// finalizeGroup assigns the deterministic group ID, the suggested master,
// the human-readable match reason and the scan timestamps.
func (s *Scanner) finalizeGroup(group *types.DuplicateGroup, byID map[string]types.Record, now time.Time) {
	group.ID = groupID(group.EntityType, group.RecordIDs)
	group.SuggestedMasterID = suggestMaster(group.RecordIDs, byID)
	group.MatchReason = matchReason(group.Matches)
	group.CreatedAt = now
	group.UpdatedAt = now
	group.LastScanAt = now
}

// groupID derives a stable UUID from the entity type and the sorted
// member IDs.
func groupID(entityType types.EntityType, recordIDs []string) string {
	sorted := append([]string(nil), recordIDs...)
	sort.Strings(sorted)
	name := string(entityType) + ":" + strings.Join(sorted, ",")
	return uuid.NewSHA1(groupNamespace, []byte(name)).String()
}

// suggestMaster picks the most complete record, counting populated fields
// outside the bookkeeping set. Ties fall to the earlier record ID.
func suggestMaster(recordIDs []string, byID map[string]types.Record) string {
	best := ""
	bestCount := -1
	for _, id := range recordIDs {
		rec, ok := byID[id]
		if !ok {
			continue
		}
		count := 0
		for field, value := range rec {
			if types.MergeFieldExcluded(field) {
				continue
			}
			if !types.IsEmpty(value) {
				count++
			}
		}
		if count > bestCount || (count == bestCount && (best == "" || id < best)) {
			best = id
			bestCount = count
		}
	}
	return best
}

// matchReason joins the distinct matched fields across all matches.
func matchReason(matches []types.DuplicateMatch) string {
	seen := make(map[string]bool)
	var fields []string
	for _, match := range matches {
		for _, field := range match.MatchedFields {
			if !seen[field] {
				seen[field] = true
				fields = append(fields, field)
			}
		}
	}
	if len(fields) == 0 {
		return "overall similarity"
	}
	return strings.Join(fields, ", ")
}

func averageScore(matches []types.DuplicateMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, match := range matches {
		sum += match.Score
	}
	return sum / float64(len(matches))
}
