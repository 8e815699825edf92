// Package middleware provides HTTP middleware for authentication, request
// logging, request IDs, and Redis-backed rate limiting.
package middleware
