// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown management for the Gable backend.
//
// The logger is a thin wrapper over stdlib log/slog emitting JSON, with
// WithField/WithError chaining so request- and actor-scoped fields can be
// attached once and reused. Metrics cover the HTTP surface and the role
// reassignment engine (outcomes by error code, transaction durations).
package observability
