package merge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

func newTestPlanner(t *testing.T) (*Planner, *store.Memory) {
	t.Helper()
	records := store.NewMemory(relations.DefaultCatalog())
	return NewPlanner(records, logger.NewNop()), records
}

func TestGeneratePreviewConflictsAndGapFill(t *testing.T) {
	p, records := newTestPlanner(t)
	ctx := context.Background()

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "name": "Acme BV", "phone": "0612345678"},
		types.Record{"id": "c2", "name": "Acme BV", "phone": "0687654321", "email": "info@acme.nl"},
	)

	preview, err := p.GeneratePreview(ctx, types.EntityCustomer, "c1", []string{"c2"})
	if err != nil {
		t.Fatalf("GeneratePreview failed: %v", err)
	}

	if preview.MasterRecord.ID() != "c1" {
		t.Errorf("MasterRecord = %s, want c1", preview.MasterRecord.ID())
	}
	if len(preview.RecordsToMerge) != 1 || preview.RecordsToMerge[0].ID() != "c2" {
		t.Fatalf("RecordsToMerge = %v, want [c2]", preview.RecordsToMerge)
	}

	byField := make(map[string]types.FieldMerge)
	for _, fm := range preview.FieldsToMerge {
		byField[fm.Field] = fm
	}

	phone, ok := byField["phone"]
	if !ok {
		t.Fatal("phone missing from FieldsToMerge")
	}
	if !phone.Conflict {
		t.Error("phone should conflict: master and candidate differ")
	}
	if phone.MergeValue != "0687654321" {
		t.Errorf("phone MergeValue = %v, want candidate's value", phone.MergeValue)
	}

	email, ok := byField["email"]
	if !ok {
		t.Fatal("email missing from FieldsToMerge")
	}
	if email.Conflict {
		t.Error("email should not conflict: master has no value")
	}
	if email.MergeValue != "info@acme.nl" {
		t.Errorf("email MergeValue = %v, want candidate's value", email.MergeValue)
	}

	name, ok := byField["name"]
	if !ok {
		t.Fatal("name missing from FieldsToMerge")
	}
	if name.Conflict {
		t.Error("name should not conflict: values are equal")
	}
}

func TestGeneratePreviewExcludesBookkeepingFields(t *testing.T) {
	p, records := newTestPlanner(t)

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "name": "Acme BV"},
		types.Record{"id": "c2", "name": "Acme", "created_at": "2024-01-01", "updated_at": "2024-06-01"},
	)

	preview, err := p.GeneratePreview(context.Background(), types.EntityCustomer, "c1", []string{"c2"})
	if err != nil {
		t.Fatalf("GeneratePreview failed: %v", err)
	}
	for _, fm := range preview.FieldsToMerge {
		switch fm.Field {
		case "id", "created_at", "updated_at", "is_deleted", "deleted_at", "merged_into_id":
			t.Errorf("bookkeeping field %q leaked into FieldsToMerge", fm.Field)
		}
	}
}

func TestGeneratePreviewMasterMissing(t *testing.T) {
	p, _ := newTestPlanner(t)
	_, err := p.GeneratePreview(context.Background(), types.EntityCustomer, "ghost", []string{"c2"})
	if !errors.Is(err, types.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestGeneratePreviewMasterTombstoned(t *testing.T) {
	p, records := newTestPlanner(t)

	master := types.Record{"id": "c1", "name": "Acme BV"}
	for field, value := range types.Tombstone("c9", time.Now()) {
		master[field] = value
	}
	records.Seed(types.EntityCustomer, master, types.Record{"id": "c2", "name": "Acme"})

	_, err := p.GeneratePreview(context.Background(), types.EntityCustomer, "c1", []string{"c2"})
	if !errors.Is(err, types.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound for tombstoned master", err)
	}
}

func TestGeneratePreviewDropsMissingAndDeletedCandidates(t *testing.T) {
	p, records := newTestPlanner(t)

	deleted := types.Record{"id": "c3", "name": "Acme"}
	for field, value := range types.Tombstone("c1", time.Now()) {
		deleted[field] = value
	}
	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "name": "Acme BV"},
		types.Record{"id": "c2", "name": "Acme"},
		deleted,
	)

	preview, err := p.GeneratePreview(context.Background(), types.EntityCustomer, "c1",
		[]string{"c2", "c3", "ghost", "c1", "c2"})
	if err != nil {
		t.Fatalf("GeneratePreview failed: %v", err)
	}
	if len(preview.RecordsToMerge) != 1 || preview.RecordsToMerge[0].ID() != "c2" {
		t.Errorf("RecordsToMerge = %v, want only the active candidate c2", preview.RecordsToMerge)
	}
}

func TestGeneratePreviewEmptyMergeSet(t *testing.T) {
	p, records := newTestPlanner(t)
	records.Seed(types.EntityCustomer, types.Record{"id": "c1", "name": "Acme BV"})

	_, err := p.GeneratePreview(context.Background(), types.EntityCustomer, "c1", []string{"ghost"})
	if !errors.Is(err, types.ErrEmptyMergeSet) {
		t.Errorf("err = %v, want ErrEmptyMergeSet", err)
	}
}

func TestGeneratePreviewRelations(t *testing.T) {
	p, records := newTestPlanner(t)

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "name": "Acme BV"},
		types.Record{"id": "c2", "name": "Acme"},
		types.Record{"id": "c3", "name": "Acme Holding"},
	)
	records.Seed(types.EntityContact,
		types.Record{"id": "p1", "customer_id": "c2"},
		types.Record{"id": "p2", "customer_id": "c3"},
		types.Record{"id": "p3", "customer_id": "c1"},
	)
	records.Seed(types.EntityInvoice,
		types.Record{"id": "f1", "customer_id": "c2"},
	)

	preview, err := p.GeneratePreview(context.Background(), types.EntityCustomer, "c1", []string{"c2", "c3"})
	if err != nil {
		t.Fatalf("GeneratePreview failed: %v", err)
	}

	byType := make(map[types.EntityType]types.RelationRelocation)
	for _, rel := range preview.RelationsToRelocate {
		byType[rel.EntityType] = rel
	}

	contacts, ok := byType[types.EntityContact]
	if !ok {
		t.Fatal("contact relocation missing")
	}
	// p1 and p2 reference the candidates; p3 already points at the master.
	if contacts.Count != 2 {
		t.Errorf("contact Count = %d, want 2 (summed across candidates)", contacts.Count)
	}
	if contacts.RelationField != "customer_id" {
		t.Errorf("contact RelationField = %q, want customer_id", contacts.RelationField)
	}

	invoices, ok := byType[types.EntityInvoice]
	if !ok {
		t.Fatal("invoice relocation missing")
	}
	if invoices.Count != 1 {
		t.Errorf("invoice Count = %d, want 1", invoices.Count)
	}
}

func TestGeneratePreviewPerformsNoWrites(t *testing.T) {
	p, records := newTestPlanner(t)
	ctx := context.Background()

	records.Seed(types.EntityCustomer,
		types.Record{"id": "c1", "name": "Acme BV"},
		types.Record{"id": "c2", "name": "Acme", "email": "info@acme.nl"},
	)

	if _, err := p.GeneratePreview(ctx, types.EntityCustomer, "c1", []string{"c2"}); err != nil {
		t.Fatalf("GeneratePreview failed: %v", err)
	}

	master, err := records.GetByID(ctx, types.EntityCustomer, "c1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if master.Has("email") {
		t.Error("preview wrote the candidate's email onto the master")
	}
	candidate, err := records.GetByID(ctx, types.EntityCustomer, "c2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if candidate.IsDeleted() {
		t.Error("preview tombstoned the candidate")
	}
}
