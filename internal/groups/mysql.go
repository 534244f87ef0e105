package groups

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/types"
)

const createGroupsTableSQL = `
CREATE TABLE IF NOT EXISTS dedupe_groups (
	id VARCHAR(64) PRIMARY KEY,
	entity_type VARCHAR(32) NOT NULL,
	record_ids JSON NOT NULL,
	matches JSON NOT NULL,
	overall_score DOUBLE NOT NULL,
	match_reason TEXT,
	suggested_master_id VARCHAR(64),
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	last_scan_at TIMESTAMP NULL,
	INDEX idx_entity_status (entity_type, status),
	INDEX idx_status (status)
) ENGINE=InnoDB;
`

// MySQL is a Store backed by a dedupe_groups table, so scan results and
// adjudication decisions survive across CLI invocations.
type MySQL struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewMySQL creates a MySQL-backed group store.
func NewMySQL(db *sql.DB, log *logger.Logger) (*MySQL, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &MySQL{db: db, logger: log}, nil
}

var _ Store = (*MySQL)(nil)

// InitializeTables creates the dedupe_groups table if it does not exist.
//
// This method is idempotent and safe to call on every startup.
func (s *MySQL) InitializeTables(ctx context.Context) error {
	s.logger.Debug("Initializing duplicate group table")

	if _, err := s.db.ExecContext(ctx, createGroupsTableSQL); err != nil {
		return fmt.Errorf("failed to create dedupe_groups table: %w", err)
	}

	s.logger.Info("Duplicate group table initialized")
	return nil
}

// Upsert inserts the group or merges it into the stored row with the
// same ID per the Store contract.
func (s *MySQL) Upsert(ctx context.Context, group *types.DuplicateGroup) error {
	if group == nil || group.ID == "" {
		return fmt.Errorf("group must have an id")
	}

	recordIDs, err := json.Marshal(group.RecordIDs)
	if err != nil {
		return fmt.Errorf("failed to encode record ids: %w", err)
	}
	matches, err := json.Marshal(group.Matches)
	if err != nil {
		return fmt.Errorf("failed to encode matches: %w", err)
	}

	status := group.Status
	if status == "" {
		status = types.GroupStatusPending
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dedupe_groups
			(id, entity_type, record_ids, matches, overall_score, match_reason, suggested_master_id, status, last_scan_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			record_ids = VALUES(record_ids),
			matches = VALUES(matches),
			overall_score = VALUES(overall_score),
			match_reason = VALUES(match_reason),
			suggested_master_id = VALUES(suggested_master_id),
			last_scan_at = VALUES(last_scan_at)`,
		group.ID, string(group.EntityType), recordIDs, matches,
		group.OverallScore, group.MatchReason, group.SuggestedMasterID,
		string(status), nullableTime(group.LastScanAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group %s: %w", group.ID, err)
	}
	return nil
}

// Get returns the group with the given ID.
func (s *MySQL) Get(ctx context.Context, id string) (*types.DuplicateGroup, error) {
	row := s.db.QueryRowContext(ctx, selectGroupSQL+" WHERE id = ?", id)
	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", id, types.ErrGroupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", id, err)
	}
	return group, nil
}

// List returns all groups matching the filter, ordered by creation time.
func (s *MySQL) List(ctx context.Context, filter Filter) ([]*types.DuplicateGroup, error) {
	query := selectGroupSQL
	var args []interface{}
	var conds []string
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []*types.DuplicateGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		out = append(out, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return out, nil
}

// SetStatus moves the group to a new lifecycle status.
func (s *MySQL) SetStatus(ctx context.Context, id string, status types.GroupStatus) error {
	if !status.Valid() {
		return fmt.Errorf("status %q: %w", status, types.ErrInvalidTransition)
	}

	var current string
	err := s.db.QueryRowContext(ctx, "SELECT status FROM dedupe_groups WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("group %s: %w", id, types.ErrGroupNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read group %s status: %w", id, err)
	}
	if !types.GroupStatus(current).CanTransitionTo(status) {
		return fmt.Errorf("group %s: %s -> %s: %w", id, current, status, types.ErrInvalidTransition)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE dedupe_groups SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update group %s status: %w", id, err)
	}
	return nil
}

// Remove deletes the group row.
func (s *MySQL) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM dedupe_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove group %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("group %s: %w", id, types.ErrGroupNotFound)
	}
	return nil
}

const selectGroupSQL = `SELECT id, entity_type, record_ids, matches, overall_score, match_reason, suggested_master_id, status, created_at, updated_at, last_scan_at FROM dedupe_groups`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row rowScanner) (*types.DuplicateGroup, error) {
	var (
		group      types.DuplicateGroup
		entityType string
		recordIDs  []byte
		matches    []byte
		status     string
		lastScan   sql.NullTime
	)
	err := row.Scan(
		&group.ID, &entityType, &recordIDs, &matches,
		&group.OverallScore, &group.MatchReason, &group.SuggestedMasterID,
		&status, &group.CreatedAt, &group.UpdatedAt, &lastScan,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recordIDs, &group.RecordIDs); err != nil {
		return nil, fmt.Errorf("failed to decode record ids: %w", err)
	}
	if err := json.Unmarshal(matches, &group.Matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	group.EntityType = types.EntityType(entityType)
	group.Status = types.GroupStatus(status)
	if lastScan.Valid {
		group.LastScanAt = lastScan.Time
	}
	return &group, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
