package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gable-pm/gable/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					description TEXT,
					status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
					permissions JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_roles_status ON roles(status);
				CREATE INDEX idx_roles_name ON roles(name);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL,
					role_id UUID NOT NULL REFERENCES roles(id),
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_role_id ON users(role_id);
				CREATE INDEX idx_users_username ON users(username);
			`,
		},
		{
			Version:     3,
			Description: "Create role_audit_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_audit_log (
					id BIGSERIAL PRIMARY KEY,
					occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
					actor_id VARCHAR(255) NOT NULL,
					actor_username VARCHAR(255) NOT NULL,
					role_id UUID NOT NULL,
					role_name VARCHAR(255) NOT NULL,
					previous_status VARCHAR(20) NOT NULL,
					new_status VARCHAR(20) NOT NULL,
					affected_users JSONB NOT NULL DEFAULT '[]',
					reassignment_map JSONB NOT NULL DEFAULT '{}',
					reason TEXT NOT NULL,
					context JSONB,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_role_audit_log_occurred_at ON role_audit_log(occurred_at DESC);
				CREATE INDEX idx_role_audit_log_actor ON role_audit_log(actor_username);
				CREATE INDEX idx_role_audit_log_role_id ON role_audit_log(role_id);
				CREATE INDEX idx_role_audit_log_map ON role_audit_log USING GIN (reassignment_map);
			`,
		},
		{
			Version:     4,
			Description: "Create admin_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS admin_tokens (
					id BIGSERIAL PRIMARY KEY,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(20) NOT NULL,
					username VARCHAR(255) NOT NULL,
					is_system_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP WITH TIME ZONE,
					last_used_at TIMESTAMP WITH TIME ZONE,
					revoked_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX idx_admin_tokens_hash ON admin_tokens(token_hash);
				CREATE INDEX idx_admin_tokens_prefix ON admin_tokens(token_prefix);
			`,
		},
		{
			Version:     5,
			Description: "Add category column to roles",
			SQL: `
				ALTER TABLE roles ADD COLUMN IF NOT EXISTS category VARCHAR(50);
				CREATE INDEX IF NOT EXISTS idx_roles_category ON roles(category);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
