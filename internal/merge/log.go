package merge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Log is the append-only audit trail of executed merges. Entries are
// immutable once written.
type Log interface {
	Append(ctx context.Context, op *types.MergeOperation) error
	// List returns operations in append order, optionally filtered by
	// entity type (empty matches all).
	List(ctx context.Context, entityType types.EntityType) ([]*types.MergeOperation, error)
}

// MemoryLog is an in-process Log.
type MemoryLog struct {
	mu  sync.RWMutex
	ops []*types.MergeOperation
}

// NewMemoryLog creates an empty in-memory merge log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

var _ Log = (*MemoryLog)(nil)

func (l *MemoryLog) Append(_ context.Context, op *types.MergeOperation) error {
	if op == nil || op.ID == "" {
		return fmt.Errorf("merge operation must have an id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := *op
	l.ops = append(l.ops, &stored)
	return nil
}

func (l *MemoryLog) List(_ context.Context, entityType types.EntityType) ([]*types.MergeOperation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*types.MergeOperation
	for _, op := range l.ops {
		if entityType != "" && op.EntityType != entityType {
			continue
		}
		copied := *op
		out = append(out, &copied)
	}
	return out, nil
}

const createMergeLogTableSQL = `
CREATE TABLE IF NOT EXISTS dedupe_merge_log (
	id VARCHAR(64) PRIMARY KEY,
	entity_type VARCHAR(32) NOT NULL,
	master_record_id VARCHAR(64) NOT NULL,
	merged_record_ids JSON NOT NULL,
	merged_by VARCHAR(255),
	merged_at TIMESTAMP NOT NULL,
	merge_details JSON NOT NULL,
	INDEX idx_entity (entity_type),
	INDEX idx_master (master_record_id)
) ENGINE=InnoDB;
`

// MySQLLog persists merge operations in a dedupe_merge_log table.
type MySQLLog struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewMySQLLog creates a MySQL-backed merge log.
func NewMySQLLog(db *sql.DB, log *logger.Logger) (*MySQLLog, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &MySQLLog{db: db, logger: log}, nil
}

var _ Log = (*MySQLLog)(nil)

// InitializeTables creates the dedupe_merge_log table if it does not exist.
//
// This method is idempotent and safe to call on every startup.
func (l *MySQLLog) InitializeTables(ctx context.Context) error {
	l.logger.Debug("Initializing merge log table")

	if _, err := l.db.ExecContext(ctx, createMergeLogTableSQL); err != nil {
		return fmt.Errorf("failed to create dedupe_merge_log table: %w", err)
	}

	l.logger.Info("Merge log table initialized")
	return nil
}

func (l *MySQLLog) Append(ctx context.Context, op *types.MergeOperation) error {
	if op == nil || op.ID == "" {
		return fmt.Errorf("merge operation must have an id")
	}

	mergedIDs, err := json.Marshal(op.MergedRecordIDs)
	if err != nil {
		return fmt.Errorf("failed to encode merged record ids: %w", err)
	}
	details, err := json.Marshal(op.MergeDetails)
	if err != nil {
		return fmt.Errorf("failed to encode merge details: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO dedupe_merge_log
			(id, entity_type, master_record_id, merged_record_ids, merged_by, merged_at, merge_details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.ID, string(op.EntityType), op.MasterRecordID, mergedIDs, op.MergedBy, op.MergedAt, details,
	)
	if err != nil {
		return fmt.Errorf("failed to append merge operation %s: %w", op.ID, err)
	}
	return nil
}

func (l *MySQLLog) List(ctx context.Context, entityType types.EntityType) ([]*types.MergeOperation, error) {
	query := "SELECT id, entity_type, master_record_id, merged_record_ids, merged_by, merged_at, merge_details FROM dedupe_merge_log"
	var args []interface{}
	if entityType != "" {
		query += " WHERE entity_type = ?"
		args = append(args, string(entityType))
	}
	query += " ORDER BY merged_at, id"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list merge operations: %w", err)
	}
	defer rows.Close()

	var out []*types.MergeOperation
	for rows.Next() {
		var (
			op        types.MergeOperation
			entity    string
			mergedIDs []byte
			details   []byte
		)
		if err := rows.Scan(&op.ID, &entity, &op.MasterRecordID, &mergedIDs, &op.MergedBy, &op.MergedAt, &details); err != nil {
			return nil, fmt.Errorf("failed to scan merge log row: %w", err)
		}
		if err := json.Unmarshal(mergedIDs, &op.MergedRecordIDs); err != nil {
			return nil, fmt.Errorf("failed to decode merged record ids: %w", err)
		}
		if err := json.Unmarshal(details, &op.MergeDetails); err != nil {
			return nil, fmt.Errorf("failed to decode merge details: %w", err)
		}
		op.EntityType = types.EntityType(entity)
		out = append(out, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate merge log: %w", err)
	}
	return out, nil
}
