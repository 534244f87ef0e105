package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/sqlutil"
	"github.com/dbsmedya/dedupe/internal/types"
)

// MySQL is a RecordStore backed by one MySQL table per collection. Tables are
// named after the entity type and share the implicit schema: an `id` varchar
// primary key, the soft-delete columns (`is_deleted`, `deleted_at`,
// `merged_into_id`), timestamps, and arbitrary entity columns.
type MySQL struct {
	db           *sql.DB
	catalog      *relations.Catalog
	queryTimeout time.Duration
}

// NewMySQL creates a MySQL-backed record store. The query timeout bounds each
// statement; zero disables the bound.
func NewMySQL(db *sql.DB, catalog *relations.Catalog, queryTimeout time.Duration) (*MySQL, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("relation catalog is nil")
	}
	return &MySQL{
		db:           db,
		catalog:      catalog,
		queryTimeout: queryTimeout,
	}, nil
}

func (s *MySQL) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func tableName(entityType types.EntityType) string {
	return sqlutil.QuoteIdentifier(string(entityType))
}

// scanRecords converts a generic result set into loosely-typed records.
// The MySQL driver returns []byte for strings; those are converted so that
// record values compare cleanly.
func scanRecords(rows *sql.Rows) ([]types.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []types.Record
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := make(types.Record, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if v == nil {
				continue
			}
			rec[col] = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (s *MySQL) queryRecords(ctx context.Context, query string, args ...interface{}) ([]types.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// List returns every record of the entity type, including soft-deleted ones.
func (s *MySQL) List(ctx context.Context, entityType types.EntityType) ([]types.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s",
		tableName(entityType), sqlutil.QuoteIdentifier(types.FieldID))
	return s.queryRecords(ctx, query)
}

// ListActive returns records that are not soft-deleted.
func (s *MySQL) ListActive(ctx context.Context, entityType types.EntityType) ([]types.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = 0 ORDER BY %s",
		tableName(entityType),
		sqlutil.QuoteIdentifier(types.FieldIsDeleted),
		sqlutil.QuoteIdentifier(types.FieldID))
	return s.queryRecords(ctx, query)
}

// GetByID returns a single record, soft-deleted or not.
func (s *MySQL) GetByID(ctx context.Context, entityType types.EntityType, id string) (types.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?",
		tableName(entityType), sqlutil.QuoteIdentifier(types.FieldID))

	recs, err := s.queryRecords(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %q: %w", entityType, id, types.ErrRecordNotFound)
	}
	return recs[0], nil
}

// Update applies a partial field update and returns the updated record.
// Fields are written in sorted order so the generated SQL is deterministic.
func (s *MySQL) Update(ctx context.Context, entityType types.EntityType, id string, fields map[string]interface{}) (types.Record, error) {
	if len(fields) == 0 {
		return s.GetByID(ctx, entityType, id)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for _, name := range names {
		col, err := sqlutil.QuoteIdentifierSafe(name)
		if err != nil {
			return nil, fmt.Errorf("invalid field name: %w", err)
		}
		sets = append(sets, col+" = ?")
		args = append(args, fields[name])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		tableName(entityType),
		strings.Join(sets, ", "),
		sqlutil.QuoteIdentifier(types.FieldID))

	uctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(uctx, query, args...); err != nil {
		return nil, fmt.Errorf("update failed for %s %q: %w", entityType, id, err)
	}

	return s.GetByID(ctx, entityType, id)
}

// RelatedRecords performs a reverse foreign-key lookup through the relation
// catalog.
func (s *MySQL) RelatedRecords(ctx context.Context, entityType types.EntityType, id string) ([]RelatedSet, error) {
	var out []RelatedSet
	for _, rel := range s.catalog.DependentsOf(entityType) {
		fk, err := sqlutil.QuoteIdentifierSafe(rel.ForeignKey)
		if err != nil {
			return nil, fmt.Errorf("invalid foreign key: %w", err)
		}
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", tableName(rel.Entity), fk)

		recs, err := s.queryRecords(ctx, query, id)
		if err != nil {
			return nil, fmt.Errorf("related lookup in %s failed: %w", rel.Entity, err)
		}
		if len(recs) > 0 {
			out = append(out, RelatedSet{
				EntityType: rel.Entity,
				Field:      rel.ForeignKey,
				Records:    recs,
			})
		}
	}
	return out, nil
}

// RelocateForeignKey rewrites the foreign key on every dependent record from
// oldID to newID and returns the number of rows touched.
func (s *MySQL) RelocateForeignKey(ctx context.Context, entityType types.EntityType, field, oldID, newID string) (int, error) {
	fk, err := sqlutil.QuoteIdentifierSafe(field)
	if err != nil {
		return 0, fmt.Errorf("invalid foreign key: %w", err)
	}

	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", tableName(entityType), fk, fk)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, query, newID, oldID)
	if err != nil {
		return 0, fmt.Errorf("relocate failed for %s.%s: %w", entityType, field, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

var _ RecordStore = (*MySQL)(nil)
