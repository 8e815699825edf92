package audit

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gable-pm/gable/pkg/httputil"
	"github.com/gable-pm/gable/pkg/observability"
)

// Handlers serves the audit trail query API
type Handlers struct {
	store  *Store
	logger *observability.Logger
}

// NewHandlers creates audit HTTP handlers
func NewHandlers(store *Store, logger *observability.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// RegisterRoutes registers audit routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/audit/reassignments", h.SearchReassignments).Methods("GET")
}

// SearchReassignments handles GET /api/audit/reassignments
func (h *Handlers) SearchReassignments(w http.ResponseWriter, r *http.Request) {
	filter := SearchFilter{
		ActorUsername: httputil.QueryString(r, "actor", ""),
		RoleID:        httputil.QueryString(r, "roleId", ""),
		UserID:        httputil.QueryString(r, "userId", ""),
	}

	var err error
	if filter.Limit, err = httputil.QueryInt(r, "limit", 50); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if filter.Offset, err = httputil.QueryInt(r, "offset", 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if since := httputil.QueryString(r, "since", ""); since != "" {
		filter.Since, err = time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid since parameter, expected RFC3339 timestamp")
			return
		}
	}
	if until := httputil.QueryString(r, "until", ""); until != "" {
		filter.Until, err = time.Parse(time.RFC3339, until)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid until parameter, expected RFC3339 timestamp")
			return
		}
	}

	records, err := h.store.Search(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("audit search failed")
		httputil.WriteInternalError(w, err)
		return
	}

	if records == nil {
		records = []ReassignmentRecord{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}
