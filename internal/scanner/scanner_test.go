package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dbsmedya/dedupe/internal/config"
	"github.com/dbsmedya/dedupe/internal/groups"
	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

func newTestScanner(t *testing.T) (*Scanner, *store.Memory, *groups.Memory) {
	t.Helper()
	records := store.NewMemory(relations.DefaultCatalog())
	groupStore := groups.NewMemory()
	s := New(records, groupStore, config.DefaultConfig(), logger.NewNop())
	return s, records, groupStore
}

func TestScanInvalidThreshold(t *testing.T) {
	s, _, _ := newTestScanner(t)
	for _, threshold := range []float64{0, -0.5, 1.5} {
		_, err := s.Scan(context.Background(), types.EntityCustomer, threshold, nil)
		if !errors.Is(err, types.ErrInvalidThreshold) {
			t.Errorf("threshold %v: err = %v, want ErrInvalidThreshold", threshold, err)
		}
	}
}

func TestScanUnknownEntityType(t *testing.T) {
	s, _, _ := newTestScanner(t)
	_, err := s.Scan(context.Background(), types.EntityInvoice, 0.85, nil)
	if !errors.Is(err, types.ErrUnknownEntityType) {
		t.Errorf("err = %v, want ErrUnknownEntityType for dependent entity", err)
	}
}

func TestScanFindsDuplicatePair(t *testing.T) {
	s, records, groupStore := newTestScanner(t)
	ctx := context.Background()

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "name": "Acme BV", "email": "info@acme.nl", "phone": "0612345678", "city": "Rotterdam"},
		types.Record{"id": "c2", "name": "Acme B.V.", "email": "info@acme.nl", "phone": "+31612345678"},
		types.Record{"id": "c3", "name": "Zeta Foods NV", "email": "hello@zetafoods.be"},
	)

	found, err := s.Scan(ctx, types.EntityCustomer, 0.85, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found %d groups, want 1", len(found))
	}

	group := found[0]
	if len(group.RecordIDs) != 2 || !group.HasRecord("c1") || !group.HasRecord("c2") {
		t.Errorf("RecordIDs = %v, want [c1 c2]", group.RecordIDs)
	}
	if group.Status != types.GroupStatusPending {
		t.Errorf("Status = %q, want pending", group.Status)
	}
	if group.Matches[0].RecordID != "c1" || group.Matches[0].Score != 1.0 {
		t.Errorf("first match = %+v, want seed pseudo-match at 1.0", group.Matches[0])
	}
	if len(group.Matches[0].Reasons) != 1 || group.Matches[0].Reasons[0] != "Master record" {
		t.Errorf("seed reasons = %v, want [Master record]", group.Matches[0].Reasons)
	}
	// c1 has a city value c2 lacks, so it is the more complete record.
	if group.SuggestedMasterID != "c1" {
		t.Errorf("SuggestedMasterID = %q, want c1", group.SuggestedMasterID)
	}
	if group.MatchReason == "" {
		t.Error("MatchReason is empty")
	}

	persisted, err := groupStore.List(ctx, groups.Filter{Status: types.GroupStatusPending})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(persisted) != 1 || persisted[0].ID != group.ID {
		t.Errorf("persisted groups = %v, want the found group", persisted)
	}
}

func TestScanFirstMatchWinsClustering(t *testing.T) {
	s, records, _ := newTestScanner(t)

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "email": "a@acme.nl"},
		types.Record{"id": "c2", "email": "a@acme.nl"},
		types.Record{"id": "c3", "email": "b@zeta.be"},
		types.Record{"id": "c4", "email": "b@zeta.be"},
	)

	found, err := s.Scan(context.Background(), types.EntityCustomer, 0.85, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d groups, want 2", len(found))
	}
	if !found[0].HasRecord("c1") || !found[0].HasRecord("c2") {
		t.Errorf("first group = %v, want [c1 c2]", found[0].RecordIDs)
	}
	if !found[1].HasRecord("c3") || !found[1].HasRecord("c4") {
		t.Errorf("second group = %v, want [c3 c4]", found[1].RecordIDs)
	}
}

func TestScanGroupsThreeWay(t *testing.T) {
	// All three share the identifying email, and the first unprocessed
	// record seeds a single group holding all of them.
	s, records, _ := newTestScanner(t)

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "email": "info@acme.nl"},
		types.Record{"id": "c2", "email": "info@acme.nl"},
		types.Record{"id": "c3", "email": "info@acme.nl"},
	)

	found, err := s.Scan(context.Background(), types.EntityCustomer, 0.85, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found %d groups, want 1", len(found))
	}
	if len(found[0].RecordIDs) != 3 {
		t.Errorf("RecordIDs = %v, want all three members", found[0].RecordIDs)
	}
	if len(found[0].Matches) != 3 {
		t.Errorf("Matches = %d entries, want seed plus two", len(found[0].Matches))
	}
}

func TestScanDeterministicGroupIDs(t *testing.T) {
	seed := func(records *store.Memory) {
		records.Seed(types.EntityCustomer,
			types.Record{"id": "c1", "email": "info@acme.nl"},
			types.Record{"id": "c2", "email": "info@acme.nl"},
		)
	}

	s1, r1, _ := newTestScanner(t)
	seed(r1)
	first, err := s1.Scan(context.Background(), types.EntityCustomer, 0.85, nil)
	if err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}

	s2, r2, _ := newTestScanner(t)
	seed(r2)
	second, err := s2.Scan(context.Background(), types.EntityCustomer, 0.85, nil)
	if err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}

	if first[0].ID != second[0].ID {
		t.Errorf("group IDs differ across identical scans: %s vs %s", first[0].ID, second[0].ID)
	}
}

func TestGroupIDOrderInsensitive(t *testing.T) {
	a := groupID(types.EntityCustomer, []string{"c1", "c2", "c3"})
	b := groupID(types.EntityCustomer, []string{"c3", "c1", "c2"})
	if a != b {
		t.Errorf("groupID depends on member order: %s vs %s", a, b)
	}
	c := groupID(types.EntitySupplier, []string{"c1", "c2", "c3"})
	if a == c {
		t.Error("groupID ignores entity type")
	}
}

func TestExtendGroupAveraging(t *testing.T) {
	group := &types.DuplicateGroup{
		RecordIDs:    []string{"c1", "c2"},
		Matches:      []types.DuplicateMatch{{RecordID: "c1", Score: 1.0}, {RecordID: "c2", Score: 0.8}},
		OverallScore: 0.8,
	}
	extendGroup(group, []types.DuplicateMatch{
		{RecordID: "c3", Score: 1.0},
		{RecordID: "c2", Score: 0.9},
	})

	// (0.8 + avg(1.0, 0.9)) / 2 = 0.875
	if !almostEqual(group.OverallScore, 0.875) {
		t.Errorf("OverallScore = %v, want 0.875", group.OverallScore)
	}
	if len(group.RecordIDs) != 3 {
		t.Errorf("RecordIDs = %v, want c2 deduplicated", group.RecordIDs)
	}
	if len(group.Matches) != 3 {
		t.Errorf("Matches = %d entries, want existing member not re-added", len(group.Matches))
	}
}

func TestScanSkipsSoftDeleted(t *testing.T) {
	s, records, _ := newTestScanner(t)

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "email": "info@acme.nl"},
		types.Record{"id": "c2", "email": "info@acme.nl", "is_deleted": true},
	)

	found, err := s.Scan(context.Background(), types.EntityCustomer, 0.85, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("found %d groups, want 0 when the twin is soft-deleted", len(found))
	}
}

func TestScanProgressCallbacks(t *testing.T) {
	s, records, _ := newTestScanner(t)

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "email": "info@acme.nl"},
		types.Record{"id": "c2", "email": "info@acme.nl"},
		types.Record{"id": "c3", "email": "hello@zetafoods.be"},
	)

	var calls []Progress
	_, err := s.Scan(context.Background(), types.EntityCustomer, 0.85, func(p Progress) {
		calls = append(calls, p)
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(calls) != 4 {
		t.Fatalf("progress calls = %d, want one per record plus completion", len(calls))
	}
	last := calls[len(calls)-1]
	if !last.IsComplete {
		t.Error("final progress call not marked complete")
	}
	if last.ProcessedRecords != 3 || last.TotalRecords != 3 {
		t.Errorf("final progress = %+v, want all records processed", last)
	}
	if last.FoundDuplicates != 1 {
		t.Errorf("FoundDuplicates = %d, want 1", last.FoundDuplicates)
	}
	for _, p := range calls[:len(calls)-1] {
		if p.IsComplete {
			t.Errorf("intermediate progress marked complete: %+v", p)
		}
	}
}

func TestScanCancelledContext(t *testing.T) {
	s, records, _ := newTestScanner(t)
	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "email": "info@acme.nl"},
		types.Record{"id": "c2", "email": "info@acme.nl"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, types.EntityCustomer, 0.85, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// failingRecords returns an error for one entity type and delegates the
// rest to the in-memory store.
type failingRecords struct {
	*store.Memory
	failFor types.EntityType
}

func (f *failingRecords) ListActive(ctx context.Context, entityType types.EntityType) ([]types.Record, error) {
	if entityType == f.failFor {
		return nil, fmt.Errorf("simulated storage failure for %s", entityType)
	}
	return f.Memory.ListActive(ctx, entityType)
}

func TestScanAllContinuesPastFailures(t *testing.T) {
	memory := store.NewMemory(relations.DefaultCatalog())
	memory.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "email": "info@acme.nl"},
		types.Record{"id": "c2", "email": "info@acme.nl"},
	)
	records := &failingRecords{Memory: memory, failFor: types.EntitySupplier}
	s := New(records, groups.NewMemory(), config.DefaultConfig(), logger.NewNop())

	var failed []types.EntityType
	found, err := s.ScanAll(context.Background(),
		[]types.EntityType{types.EntitySupplier, types.EntityCustomer}, 0.85,
		func(p Progress) {
			if p.Err != nil {
				failed = append(failed, p.EntityType)
			}
		})
	if err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("found %d groups, want the customer group despite supplier failure", len(found))
	}
	if len(failed) != 1 || failed[0] != types.EntitySupplier {
		t.Errorf("failed entities = %v, want [supplier]", failed)
	}
}

func TestAutoMergeCandidates(t *testing.T) {
	s, _, groupStore := newTestScanner(t)
	ctx := context.Background()

	seedGroup := func(id string, score float64, status types.GroupStatus) {
		group := &types.DuplicateGroup{
			ID:           id,
			EntityType:   types.EntityCustomer,
			RecordIDs:    []string{id + "-a", id + "-b"},
			OverallScore: score,
			Status:       types.GroupStatusPending,
		}
		if err := groupStore.Upsert(ctx, group); err != nil {
			t.Fatalf("Upsert %s failed: %v", id, err)
		}
		if status != types.GroupStatusPending {
			if err := groupStore.SetStatus(ctx, id, status); err != nil {
				t.Fatalf("SetStatus %s failed: %v", id, err)
			}
		}
	}

	seedGroup("g1", 0.96, types.GroupStatusPending)
	seedGroup("g2", 0.90, types.GroupStatusPending)
	seedGroup("g3", 0.99, types.GroupStatusMerged)

	candidates, err := s.AutoMergeCandidates(ctx, types.EntityCustomer, 0.95)
	if err != nil {
		t.Fatalf("AutoMergeCandidates failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != "g1" {
		t.Errorf("candidates = %v, want only g1", candidates)
	}

	if _, err := s.AutoMergeCandidates(ctx, types.EntityCustomer, 0); !errors.Is(err, types.ErrInvalidThreshold) {
		t.Errorf("zero threshold err = %v, want ErrInvalidThreshold", err)
	}
}

func TestScanContactEndToEnd(t *testing.T) {
	// "Jan de Vries" and "J. de Vries" sharing an email must land in the
	// same group with a composite score of 0.9.
	s, records, _ := newTestScanner(t)

	records.Seed(types.EntityContact,
		types.Record{"id": "p1", "name": "Jan de Vries", "email": "jan@devries.nl", "phone": "0612345678", "city": "Utrecht"},
		types.Record{"id": "p2", "name": "J. de Vries", "email": "jan@devries.nl", "phone": "+31612345678"},
	)

	found, err := s.Scan(context.Background(), types.EntityContact, 0.85, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found %d groups, want 1", len(found))
	}
	group := found[0]
	if !group.HasRecord("p1") || !group.HasRecord("p2") {
		t.Errorf("RecordIDs = %v, want both contacts", group.RecordIDs)
	}
	if !almostEqual(group.OverallScore, 0.9) {
		t.Errorf("OverallScore = %v, want 0.9", group.OverallScore)
	}
	if group.SuggestedMasterID != "p1" {
		t.Errorf("SuggestedMasterID = %q, want the more complete p1", group.SuggestedMasterID)
	}
}
