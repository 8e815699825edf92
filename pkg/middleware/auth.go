package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gable-pm/gable/pkg/auth"
	"github.com/gable-pm/gable/pkg/contextkeys"
	"github.com/gable-pm/gable/pkg/httputil"
)

// TokenValidator validates a bearer token and resolves the caller
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Context, error)
}

// AuthMiddleware authenticates requests with opaque bearer tokens
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.validator.ValidateToken(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the authenticated caller from the request.
// Returns nil when the request was not authenticated.
func GetAuthContext(r *http.Request) *auth.Context {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*auth.Context)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireSystemAdmin creates middleware that rejects non-system-admin callers
func RequireSystemAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !authCtx.IsSystemAdmin {
			httputil.WriteForbidden(w, "system administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
