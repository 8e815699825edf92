package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrInvalidToken is returned when a token is unknown, revoked, or expired
var ErrInvalidToken = fmt.Errorf("invalid or expired token")

type cacheEntry struct {
	authCtx   Context
	expiresAt time.Time
}

// Manager validates admin tokens against the admin_tokens table. Validated
// tokens are cached in memory for cacheTTL so the hot request path does not
// hit the database on every call. Revocation takes effect within cacheTTL.
type Manager struct {
	db        *sql.DB
	generator *TokenGenerator
	cacheTTL  time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a token manager backed by the given database
func NewManager(db *sql.DB, cacheTTL time.Duration) *Manager {
	return &Manager{
		db:        db,
		generator: NewTokenGenerator(),
		cacheTTL:  cacheTTL,
		cache:     make(map[string]cacheEntry),
	}
}

// CreateToken mints a new admin token for username. The returned plaintext
// token is shown once and cannot be recovered.
func (m *Manager) CreateToken(ctx context.Context, username string, isSystemAdmin bool, ttl time.Duration) (*AdminToken, string, error) {
	token, tokenHash, tokenPrefix, err := m.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	record := &AdminToken{
		TokenHash:     tokenHash,
		TokenPrefix:   tokenPrefix,
		Username:      username,
		IsSystemAdmin: isSystemAdmin,
		CreatedAt:     time.Now().UTC(),
	}
	if ttl > 0 {
		expires := record.CreatedAt.Add(ttl)
		record.ExpiresAt = &expires
	}

	err = m.db.QueryRowContext(ctx, `
		INSERT INTO admin_tokens (token_hash, token_prefix, username, is_system_admin, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, record.TokenHash, record.TokenPrefix, record.Username, record.IsSystemAdmin,
		record.CreatedAt, record.ExpiresAt).Scan(&record.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return record, token, nil
}

// ValidateToken checks a bearer token and returns the caller's identity
func (m *Manager) ValidateToken(ctx context.Context, token string) (*Context, error) {
	if err := m.generator.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := m.generator.HashToken(token)

	m.mu.RLock()
	entry, ok := m.cache[tokenHash]
	m.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		authCtx := entry.authCtx
		return &authCtx, nil
	}

	var record AdminToken
	err := m.db.QueryRowContext(ctx, `
		SELECT id, username, is_system_admin, expires_at, revoked_at
		FROM admin_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&record.ID, &record.Username, &record.IsSystemAdmin,
		&record.ExpiresAt, &record.RevokedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if !record.IsValid() {
		return nil, ErrInvalidToken
	}

	// Best effort, an update failure does not fail validation
	_, _ = m.db.ExecContext(ctx,
		`UPDATE admin_tokens SET last_used_at = NOW() WHERE id = $1`, record.ID)

	authCtx := Context{
		ID:            strconv.FormatInt(record.ID, 10),
		Username:      record.Username,
		IsSystemAdmin: record.IsSystemAdmin,
	}

	m.mu.Lock()
	m.cache[tokenHash] = cacheEntry{authCtx: authCtx, expiresAt: time.Now().Add(m.cacheTTL)}
	m.mu.Unlock()

	return &authCtx, nil
}

// RevokeToken revokes a token by its display prefix and evicts the cache
func (m *Manager) RevokeToken(ctx context.Context, tokenPrefix string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE admin_tokens SET revoked_at = NOW()
		WHERE token_prefix = $1 AND revoked_at IS NULL
	`, tokenPrefix)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revocation: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("token not found: %s", tokenPrefix)
	}

	// Drop everything, prefixes are not cache keys
	m.mu.Lock()
	m.cache = make(map[string]cacheEntry)
	m.mu.Unlock()

	return nil
}

// CleanupExpiredTokens deletes tokens past their expiry
func (m *Manager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := m.db.ExecContext(ctx,
		`DELETE FROM admin_tokens WHERE expires_at IS NOT NULL AND expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up tokens: %w", err)
	}
	return result.RowsAffected()
}
