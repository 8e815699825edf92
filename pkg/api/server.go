package api

import (
	"database/sql"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/gable-pm/gable/pkg/audit"
	"github.com/gable-pm/gable/pkg/config"
	"github.com/gable-pm/gable/pkg/middleware"
	"github.com/gable-pm/gable/pkg/observability"
	"github.com/gable-pm/gable/pkg/rbac"
)

// Dependencies carries the already-constructed backends the server
// routes requests to.
type Dependencies struct {
	DB         *sql.DB
	Redis      *redis.Client
	Engine     *rbac.Engine
	Store      *rbac.Store
	AuditStore *audit.Store
	Tokens     middleware.TokenValidator
}

// Server is the main API server
type Server struct {
	router  *mux.Router
	config  *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new API server and wires routes and middleware
func NewServer(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics, deps Dependencies) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logging(logger))
	if s.metrics != nil {
		s.router.Use(s.instrument)
	}
	s.router.Use(middleware.NewAuthMiddleware(deps.Tokens).Handler)
	if deps.Redis != nil {
		s.router.Use(middleware.NewRateLimitMiddleware(deps.Redis).Handler)
	} else {
		logger.Warn("redis unavailable, rate limiting disabled")
	}

	rbacHandlers := rbac.NewHandlers(deps.Engine, deps.Store, logger, metrics)
	rbacHandlers.RegisterRoutes(s.router)

	auditHandlers := audit.NewHandlers(deps.AuditStore, logger)
	auditHandlers.RegisterRoutes(s.router)

	if deps.Redis != nil {
		inviteService := rbac.NewInviteService(deps.Redis, deps.Store, logger)
		inviteHandlers := rbac.NewInviteHandlers(inviteService, logger)
		inviteHandlers.RegisterRoutes(s.router)
	}

	return s
}

// instrument records request count and latency labeled by the matched
// route template rather than the raw path, keeping cardinality bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		s.metrics.InstrumentHandler(path, next).ServeHTTP(w, r)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
