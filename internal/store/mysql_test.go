package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/types"
)

func newMySQLTest(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewMySQL(db, relations.DefaultCatalog(), 5*time.Second)
	if err != nil {
		t.Fatalf("NewMySQL() failed: %v", err)
	}
	return s, mock
}

func TestNewMySQLValidation(t *testing.T) {
	if _, err := NewMySQL(nil, relations.DefaultCatalog(), 0); err == nil {
		t.Error("expected error for nil db")
	}

	db, _, _ := sqlmock.New()
	defer db.Close()
	if _, err := NewMySQL(db, nil, 0); err == nil {
		t.Error("expected error for nil catalog")
	}
}

func TestMySQLListActive(t *testing.T) {
	s, mock := newMySQLTest(t)

	rows := sqlmock.NewRows([]string{"id", "name", "is_deleted"}).
		AddRow([]byte("c1"), []byte("Jansen BV"), 0).
		AddRow([]byte("c2"), []byte("Pietersen NV"), 0)

	mock.ExpectQuery("SELECT \\* FROM `customer` WHERE `is_deleted` = 0 ORDER BY `id`").
		WillReturnRows(rows)

	recs, err := s.ListActive(context.Background(), types.EntityCustomer)
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	// []byte columns are converted to strings.
	if recs[0].ID() != "c1" || recs[0].GetString("name") != "Jansen BV" {
		t.Errorf("unexpected first record: %v", recs[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLGetByID(t *testing.T) {
	s, mock := newMySQLTest(t)

	mock.ExpectQuery("SELECT \\* FROM `customer` WHERE `id` = \\?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("c1", "Jansen BV"))

	rec, err := s.GetByID(context.Background(), types.EntityCustomer, "c1")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if rec.GetString("name") != "Jansen BV" {
		t.Errorf("name = %q", rec.GetString("name"))
	}

	mock.ExpectQuery("SELECT \\* FROM `customer` WHERE `id` = \\?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err = s.GetByID(context.Background(), types.EntityCustomer, "missing")
	if !errors.Is(err, types.ErrRecordNotFound) {
		t.Errorf("missing record error = %v, want ErrRecordNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLUpdate(t *testing.T) {
	s, mock := newMySQLTest(t)

	// Fields are written in sorted order: city before name.
	mock.ExpectExec("UPDATE `customer` SET `city` = \\?, `name` = \\? WHERE `id` = \\?").
		WithArgs("Utrecht", "Jansen BV", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `customer` WHERE `id` = \\?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "city"}).AddRow("c1", "Jansen BV", "Utrecht"))

	rec, err := s.Update(context.Background(), types.EntityCustomer, "c1", map[string]interface{}{
		"name": "Jansen BV",
		"city": "Utrecht",
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if rec.GetString("city") != "Utrecht" {
		t.Errorf("city = %q", rec.GetString("city"))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLUpdateRejectsBadFieldName(t *testing.T) {
	s, _ := newMySQLTest(t)

	_, err := s.Update(context.Background(), types.EntityCustomer, "c1", map[string]interface{}{
		"name; DROP TABLE customer": "x",
	})
	if err == nil {
		t.Error("expected error for invalid field name")
	}
}

func TestMySQLRelatedRecords(t *testing.T) {
	s, mock := newMySQLTest(t)

	// The default catalog declares four dependents of customer:
	// contact, interaction, invoice, quote (catalog order).
	mock.ExpectQuery("SELECT \\* FROM `contact` WHERE `customer_id` = \\?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}))
	mock.ExpectQuery("SELECT \\* FROM `interaction` WHERE `customer_id` = \\?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}))
	mock.ExpectQuery("SELECT \\* FROM `invoice` WHERE `customer_id` = \\?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).
			AddRow("i1", "c1").
			AddRow("i2", "c1"))
	mock.ExpectQuery("SELECT \\* FROM `quote` WHERE `customer_id` = \\?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}))

	sets, err := s.RelatedRecords(context.Background(), types.EntityCustomer, "c1")
	if err != nil {
		t.Fatalf("RelatedRecords() failed: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("got %d related sets, want 1 (only invoice has rows)", len(sets))
	}
	if sets[0].EntityType != types.EntityInvoice || len(sets[0].Records) != 2 {
		t.Errorf("unexpected related set: %+v", sets[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLRelocateForeignKey(t *testing.T) {
	s, mock := newMySQLTest(t)

	mock.ExpectExec("UPDATE `invoice` SET `customer_id` = \\? WHERE `customer_id` = \\?").
		WithArgs("master", "dup").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.RelocateForeignKey(context.Background(), types.EntityInvoice, "customer_id", "dup", "master")
	if err != nil {
		t.Fatalf("RelocateForeignKey() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("relocated = %d, want 3", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
