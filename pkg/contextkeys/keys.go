// Package contextkeys provides centralized context key definitions.
//
// Cross-package context keys are defined here so that key usage stays
// discoverable and collision-free. The request-scoped logger travels on
// its own typed key inside pkg/observability.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext.
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all admin endpoints, the reassignment engine's actor resolution
	AuthKey Key = "auth_context"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: api server middleware
	// Used by: logger, audit context
	RequestIDKey Key = "request_id"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID extracts the request ID from the context, or "" if unset
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
