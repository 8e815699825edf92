package rbac

import (
	"context"
	"database/sql"
	"sync"
)

const probeQuery = `
	SELECT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_name = 'roles' AND column_name = 'category'
	)
`

// Probe detects whether the roles table carries the category column yet.
// The answer is memoized for the process lifetime once it is definitive;
// schema readiness is monotonic, so a memoized true never goes stale.
type Probe struct {
	db *sql.DB

	mu     sync.Mutex
	result *bool
}

// NewProbe creates a migration-readiness probe
func NewProbe(db *sql.DB) *Probe {
	return &Probe{db: db}
}

// CategoryMigrationApplied reports whether the category column exists.
// A definitive yes/no from information_schema is memoized. An unexpected
// query error conservatively reports true without memoizing, so category
// checks are attempted rather than silently skipped while the fault lasts.
func (p *Probe) CategoryMigrationApplied(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.result != nil {
		return *p.result
	}

	var exists bool
	if err := p.db.QueryRowContext(ctx, probeQuery).Scan(&exists); err != nil {
		return true
	}

	p.result = &exists
	return exists
}
