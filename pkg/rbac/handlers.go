package rbac

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/gable-pm/gable/pkg/httputil"
	"github.com/gable-pm/gable/pkg/middleware"
	"github.com/gable-pm/gable/pkg/observability"
)

// Handlers serves the role and reassignment API
type Handlers struct {
	engine  *Engine
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewHandlers creates role HTTP handlers. metrics may be nil when metrics
// are disabled.
func NewHandlers(engine *Engine, store *Store, logger *observability.Logger, metrics *observability.Metrics) *Handlers {
	return &Handlers{engine: engine, store: store, logger: logger, metrics: metrics}
}

// RegisterRoutes registers role routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/users/{userId}/roles/reassign", h.Reassign).Methods("POST")
	router.HandleFunc("/api/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/api/roles/{roleId}", h.GetRole).Methods("GET")
}

// Reassign handles POST /api/users/{userId}/roles/reassign
func (h *Handlers) Reassign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := httputil.PathVar(r, "userId")
	if err != nil {
		httputil.WriteErrorCode(w, http.StatusBadRequest, string(CodeValidationError), err.Error())
		return
	}

	var req ReassignRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteErrorCode(w, http.StatusBadRequest, string(CodeValidationError), err.Error())
		return
	}
	req.UserID = userID

	actor := middleware.GetAuthContext(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	result, err := h.engine.Reassign(r.Context(), req, actor)
	if err != nil {
		code := CodeOf(err)
		h.observe(string(code), start)
		httputil.WriteErrorCode(w, HTTPStatus(code), string(code), PublicMessage(err))
		return
	}

	h.observe("success", start)
	httputil.WriteSuccess(w, map[string]interface{}{
		"success":         true,
		"user":            result.User,
		"reason":          result.Reason,
		"categoryChange":  result.CategoryChange,
		"permissionDelta": result.PermissionDelta,
	})
}

// ListRoles handles GET /api/roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list roles")
		httputil.WriteInternalError(w, err)
		return
	}

	if roles == nil {
		roles = []Role{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"roles": roles,
		"count": len(roles),
	})
}

// GetRole handles GET /api/roles/{roleId}
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := httputil.PathVar(r, "roleId")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	role, err := h.store.GetRole(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteNotFoundError(w, "role not found")
			return
		}
		h.logger.WithError(err).Error("failed to get role")
		httputil.WriteInternalError(w, err)
		return
	}

	perms, err := h.store.RolePermissions(r.Context(), roleID)
	if err != nil {
		h.logger.WithError(err).Error("failed to read role permissions")
		httputil.WriteInternalError(w, err)
		return
	}

	permList := perms.List()
	sort.Strings(permList)
	httputil.WriteSuccess(w, map[string]interface{}{
		"role":        role,
		"permissions": permList,
	})
}

func (h *Handlers) observe(outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveReassignment(outcome, time.Since(start))
	}
}
