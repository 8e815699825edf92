package rbac

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gable-pm/gable/pkg/auth"
	"github.com/gable-pm/gable/pkg/contextkeys"
	"github.com/gable-pm/gable/pkg/observability"
)

type handlerFixture struct {
	*engineFixture
	router *mux.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ef := newEngineFixture(t, true)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	store := NewStore(ef.db, fakeProbe(true))
	handlers := NewHandlers(ef.engine, store, logger, nil)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	return &handlerFixture{engineFixture: ef, router: router}
}

func (f *handlerFixture) send(t *testing.T, method, path, body string, actor *auth.Context) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != nil {
		req = req.WithContext(contextkeys.WithAuth(context.Background(), actor))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestReassignHandler_Success(t *testing.T) {
	f := newHandlerFixture(t)

	f.expectUser(testUserID, roleOps)
	f.expectRole(roleOps, "Property Manager", StatusActive, strPtr("operational"))
	f.expectRole(roleFin, "Finance Clerk", StatusActive, strPtr("financial"))
	f.expectPermissions(roleOps, []string{"read:properties"})
	f.expectPermissions(roleFin, []string{"read:properties", "write:invoices"})
	f.expectTxUpdate(testUserID, roleFin, StatusActive)
	f.mock.ExpectCommit()

	body := `{"fromRoleId":"` + roleOps + `","toRoleId":"` + roleFin + `","reason":"promotion"}`
	rec := f.send(t, "POST", "/api/users/"+testUserID+"/roles/reassign", body, actor())

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success         bool           `json:"success"`
		Reason          string         `json:"reason"`
		CategoryChange  CategoryChange `json:"categoryChange"`
		PermissionDelta DeltaCounts    `json:"permissionDelta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "promotion", resp.Reason)
	assert.Equal(t, "financial", resp.CategoryChange.To)
	assert.Equal(t, 1, resp.PermissionDelta.Added)
	assert.Equal(t, 1, resp.PermissionDelta.Unchanged)
}

func TestReassignHandler_ErrorCodeMapping(t *testing.T) {
	f := newHandlerFixture(t)

	f.expectUser(testUserID, roleOps)
	f.expectRole(roleOps, "Property Manager", StatusActive, strPtr("operational"))
	f.expectRole(roleOps, "Property Manager", StatusActive, strPtr("operational"))

	body := `{"fromRoleId":"` + roleOps + `","toRoleId":"` + roleOps + `"}`
	rec := f.send(t, "POST", "/api/users/"+testUserID+"/roles/reassign", body, actor())

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SAME_ROLE", resp.Code)
}

func TestReassignHandler_InternalErrorsStayOpaque(t *testing.T) {
	f := newHandlerFixture(t)

	f.expectUser(testUserID, roleOps)
	f.expectRole(roleOps, "Property Manager", StatusActive, strPtr("operational"))
	f.expectRole(roleFin, "Finance Clerk", StatusActive, strPtr("financial"))
	f.mock.ExpectQuery(`SELECT permissions FROM roles`).
		WithArgs(roleOps).
		WillReturnError(assert.AnError)

	body := `{"fromRoleId":"` + roleOps + `","toRoleId":"` + roleFin + `"}`
	rec := f.send(t, "POST", "/api/users/"+testUserID+"/roles/reassign", body, actor())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "assert.AnError")
	assert.Contains(t, rec.Body.String(), "PERMISSION_LOOKUP_FAILED")
}

func TestReassignHandler_Unauthenticated(t *testing.T) {
	f := newHandlerFixture(t)

	body := `{"fromRoleId":"` + roleOps + `","toRoleId":"` + roleFin + `"}`
	rec := f.send(t, "POST", "/api/users/"+testUserID+"/roles/reassign", body, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReassignHandler_MalformedBody(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.send(t, "POST", "/api/users/"+testUserID+"/roles/reassign", `{broken`, actor())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestListRolesHandler(t *testing.T) {
	f := newHandlerFixture(t)

	f.mock.ExpectQuery(`SELECT id, name, description, status, category`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "description", "status", "category", "created_at", "updated_at"}).
			AddRow(roleFin, "Finance Clerk", "", "ACTIVE", "financial", time.Now(), time.Now()))

	rec := f.send(t, "GET", "/api/roles", "", actor())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Roles []Role `json:"roles"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Finance Clerk", resp.Roles[0].Name)
}

func TestGetRoleHandler_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	f.mock.ExpectQuery(`SELECT id, name, description, status, category`).
		WithArgs(roleFin).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "description", "status", "category", "created_at", "updated_at"}))

	rec := f.send(t, "GET", "/api/roles/"+roleFin, "", actor())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRoleHandler(t *testing.T) {
	f := newHandlerFixture(t)

	f.expectRole(roleFin, "Finance Clerk", StatusActive, strPtr("financial"))
	f.expectPermissions(roleFin, []string{"write:invoices", "read:properties"})

	rec := f.send(t, "GET", "/api/roles/"+roleFin, "", actor())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Role        Role     `json:"role"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Finance Clerk", resp.Role.Name)
	assert.Equal(t, []string{"read:properties", "write:invoices"}, resp.Permissions)
}
