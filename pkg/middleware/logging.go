package middleware

import (
	"net/http"
	"time"

	"github.com/gable-pm/gable/pkg/contextkeys"
	"github.com/gable-pm/gable/pkg/observability"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Logging logs one structured line per request and stores a
// request-scoped logger in the context for handlers to pick up.
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}

			reqLogger := logger.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": contextkeys.RequestID(r.Context()),
			})

			ctx := observability.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(lrw, r.WithContext(ctx))

			reqLogger.WithFields(map[string]interface{}{
				"status":      lrw.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request completed")
		})
	}
}
