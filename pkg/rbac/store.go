package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups when no row matches
var ErrNotFound = sql.ErrNoRows

// Querier is satisfied by both *sql.DB and *sql.Tx so store reads and
// writes can run inside the reassignment transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// MigrationProbe reports whether the category column is queryable
type MigrationProbe interface {
	CategoryMigrationApplied(ctx context.Context) bool
}

// Store handles role and user persistence
type Store struct {
	db    *sql.DB
	probe MigrationProbe
}

// NewStore creates a role store. A nil probe assumes the category
// migration has been applied.
func NewStore(db *sql.DB, probe MigrationProbe) *Store {
	return &Store{db: db, probe: probe}
}

// DB exposes the underlying handle for transaction management
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) categoryAvailable(ctx context.Context) bool {
	if s.probe == nil {
		return true
	}
	return s.probe.CategoryMigrationApplied(ctx)
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	query := `
		SELECT id, username, email, role_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user User
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.RoleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetRole retrieves a role by ID. The category column is only selected
// once the schema migration has been applied.
func (s *Store) GetRole(ctx context.Context, roleID string) (*Role, error) {
	if s.categoryAvailable(ctx) {
		query := `
			SELECT id, name, description, status, category, created_at, updated_at
			FROM roles
			WHERE id = $1
		`
		var role Role
		var description, category sql.NullString
		err := s.db.QueryRowContext(ctx, query, roleID).Scan(
			&role.ID,
			&role.Name,
			&description,
			&role.Status,
			&category,
			&role.CreatedAt,
			&role.UpdatedAt,
		)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get role: %w", err)
		}
		role.Description = description.String
		if category.Valid {
			role.Category = &category.String
		}
		return &role, nil
	}

	query := `
		SELECT id, name, description, status, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	var role Role
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID,
		&role.Name,
		&description,
		&role.Status,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	role.Description = description.String
	return &role, nil
}

// ListRoles lists all roles ordered by name
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	withCategory := s.categoryAvailable(ctx)

	query := `
		SELECT id, name, description, status, created_at, updated_at
		FROM roles
		ORDER BY name ASC
	`
	if withCategory {
		query = `
			SELECT id, name, description, status, category, created_at, updated_at
			FROM roles
			ORDER BY name ASC
		`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var description, category sql.NullString

		if withCategory {
			err = rows.Scan(&role.ID, &role.Name, &description, &role.Status,
				&category, &role.CreatedAt, &role.UpdatedAt)
		} else {
			err = rows.Scan(&role.ID, &role.Name, &description, &role.Status,
				&role.CreatedAt, &role.UpdatedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		role.Description = description.String
		if category.Valid {
			role.Category = &category.String
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// RolePermissions loads a role's permission set from its JSONB column.
// Read separately from GetRole so a corrupt permission payload surfaces
// as a lookup failure instead of breaking role resolution.
func (s *Store) RolePermissions(ctx context.Context, roleID string) (PermissionSet, error) {
	var permissionsJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT permissions FROM roles WHERE id = $1`, roleID,
	).Scan(&permissionsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %s", roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions: %w", err)
	}

	var perms []string
	if err := json.Unmarshal(permissionsJSON, &perms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}

	return NewPermissionSet(perms), nil
}

// UpdateUserRole mutates a user's role inside the caller's transaction.
// Exactly one row must change.
func (s *Store) UpdateUserRole(ctx context.Context, q Querier, userID, toRoleID string, now time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE users SET role_id = $1, updated_at = $2 WHERE id = $3`,
		toRoleID, now, userID)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("expected 1 user row updated, got %d", rows)
	}

	return nil
}

// UserRoleStatus re-reads the status of the user's current role through
// the caller's transaction, for the post-update consistency check.
func (s *Store) UserRoleStatus(ctx context.Context, q Querier, userID string) (RoleStatus, error) {
	var status RoleStatus
	err := q.QueryRowContext(ctx, `
		SELECT r.status
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`, userID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("failed to re-read role status: %w", err)
	}
	return status, nil
}
