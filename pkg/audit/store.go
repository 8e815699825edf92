package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx. Appends run through
// the reassignment transaction; reads run against the pool.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store persists reassignment audit records
type Store struct {
	db *sql.DB
}

// NewStore creates an audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts a reassignment record through q. When q is the
// reassignment transaction a failed insert aborts the whole operation;
// a role change never commits without its audit trail.
func (s *Store) Append(ctx context.Context, q Querier, record *ReassignmentRecord) error {
	affectedJSON, err := json.Marshal(record.AffectedUsers)
	if err != nil {
		return fmt.Errorf("failed to marshal affected users: %w", err)
	}
	mapJSON, err := json.Marshal(record.ReassignmentMap)
	if err != nil {
		return fmt.Errorf("failed to marshal reassignment map: %w", err)
	}

	var contextJSON []byte
	if record.Context != nil {
		contextJSON, err = json.Marshal(record.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
	}

	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO role_audit_log (
			occurred_at, actor_id, actor_username,
			role_id, role_name, previous_status, new_status,
			affected_users, reassignment_map, reason, context
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		record.OccurredAt, record.ActorID, record.ActorUsername,
		record.RoleID, record.RoleName, record.PreviousStatus, record.NewStatus,
		affectedJSON, mapJSON, record.Reason, contextJSON,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// Search returns reassignment records matching the filter, newest first
func (s *Store) Search(ctx context.Context, filter SearchFilter) ([]ReassignmentRecord, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.ActorUsername != "" {
		addCondition("actor_username = $%d", filter.ActorUsername)
	}
	if filter.RoleID != "" {
		addCondition("role_id = $%d", filter.RoleID)
	}
	if filter.UserID != "" {
		addCondition("reassignment_map ? $%d", filter.UserID)
	}
	if !filter.Since.IsZero() {
		addCondition("occurred_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		addCondition("occurred_at <= $%d", filter.Until)
	}

	query := `
		SELECT id, occurred_at, actor_id, actor_username,
		       role_id, role_name, previous_status, new_status,
		       affected_users, reassignment_map, reason, context
		FROM role_audit_log
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit log: %w", err)
	}
	defer rows.Close()

	var records []ReassignmentRecord
	for rows.Next() {
		var record ReassignmentRecord
		var affectedJSON, mapJSON []byte
		var contextJSON sql.NullString

		err := rows.Scan(
			&record.ID, &record.OccurredAt, &record.ActorID, &record.ActorUsername,
			&record.RoleID, &record.RoleName, &record.PreviousStatus, &record.NewStatus,
			&affectedJSON, &mapJSON, &record.Reason, &contextJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		if err := json.Unmarshal(affectedJSON, &record.AffectedUsers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal affected users: %w", err)
		}
		if err := json.Unmarshal(mapJSON, &record.ReassignmentMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reassignment map: %w", err)
		}
		if contextJSON.Valid && contextJSON.String != "" {
			if err := json.Unmarshal([]byte(contextJSON.String), &record.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal context: %w", err)
			}
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// DeleteOlderThan removes records past the retention cutoff
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM role_audit_log WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit records: %w", err)
	}
	return result.RowsAffected()
}
