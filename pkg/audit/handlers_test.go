package audit

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gable-pm/gable/pkg/observability"
)

func newHandlerFixture(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	handlers := NewHandlers(NewStore(db), logger)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	return router, mock
}

func TestSearchReassignments(t *testing.T) {
	router, mock := newHandlerFixture(t)

	rows := sqlmock.NewRows([]string{
		"id", "occurred_at", "actor_id", "actor_username",
		"role_id", "role_name", "previous_status", "new_status",
		"affected_users", "reassignment_map", "reason", "context",
	}).AddRow(
		int64(1), time.Now(), "ops-admin", "ops-admin",
		"r2", "Finance Clerk", "ACTIVE", "ACTIVE",
		[]byte(`[]`), []byte(`{"u1":"r2"}`), "rotation", nil,
	)
	mock.ExpectQuery(`FROM role_audit_log`).
		WithArgs("ops-admin", 50).
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/audit/reassignments?actor=ops-admin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []ReassignmentRecord `json:"records"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "rotation", resp.Records[0].Reason)
}

func TestSearchReassignments_EmptyResult(t *testing.T) {
	router, mock := newHandlerFixture(t)

	mock.ExpectQuery(`FROM role_audit_log`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "occurred_at", "actor_id", "actor_username",
			"role_id", "role_name", "previous_status", "new_status",
			"affected_users", "reassignment_map", "reason", "context",
		}))

	req := httptest.NewRequest("GET", "/api/audit/reassignments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

func TestSearchReassignments_BadTimestamp(t *testing.T) {
	router, _ := newHandlerFixture(t)

	req := httptest.NewRequest("GET", "/api/audit/reassignments?since=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchReassignments_BadLimit(t *testing.T) {
	router, _ := newHandlerFixture(t)

	req := httptest.NewRequest("GET", "/api/audit/reassignments?limit=ten", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
