package auth

import "time"

// AdminToken is a stored admin API token. The plaintext token is returned
// exactly once at creation and never persisted.
type AdminToken struct {
	ID            int64      `json:"id"`
	TokenHash     string     `json:"-"`
	TokenPrefix   string     `json:"token_prefix"`
	Username      string     `json:"username"`
	IsSystemAdmin bool       `json:"is_system_admin"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// IsValid reports whether the token is neither revoked nor expired
func (t *AdminToken) IsValid() bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt) {
		return false
	}
	return true
}

// Context carries the authenticated caller's identity through a request.
// ID is the stable identifier of the credential (the admin token row),
// distinct from the human-readable username recorded alongside it in
// audit entries. IsSystemAdmin gates operations on SYSTEM_LOCKED roles.
type Context struct {
	ID            string
	Username      string
	IsSystemAdmin bool
}
