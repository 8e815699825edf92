package rbac

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := NewError(CodeSameRole, "user already holds role")
	assert.Equal(t, CodeSameRole, CodeOf(err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, CodeSameRole, CodeOf(wrapped))

	assert.Equal(t, CodeReassignmentFailed, CodeOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidationError, http.StatusBadRequest},
		{CodeUserNotFound, http.StatusNotFound},
		{CodeTargetRoleNotFound, http.StatusNotFound},
		{CodeSystemLockedRole, http.StatusForbidden},
		{CodeUserRoleMismatch, http.StatusConflict},
		{CodeSourceRoleNotActive, http.StatusConflict},
		{CodeTargetNotActive, http.StatusConflict},
		{CodeSameRole, http.StatusConflict},
		{CodeSameCategory, http.StatusConflict},
		{CodeEquivalentPermissions, http.StatusConflict},
		{CodePermissionLookupFailed, http.StatusInternalServerError},
		{CodeReassignmentFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.code), string(tt.code))
	}
}

func TestPublicMessage_HidesInfrastructureDetail(t *testing.T) {
	err := WrapError(CodeReassignmentFailed, errors.New("pq: deadlock detected"), "role reassignment failed")
	assert.Equal(t, "role reassignment failed", PublicMessage(err))
	assert.NotContains(t, PublicMessage(err), "deadlock")

	policy := NewError(CodeSameRole, "user already holds role Finance Clerk")
	assert.Equal(t, "user already holds role Finance Clerk", PublicMessage(policy))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(CodeReassignmentFailed, cause, "role reassignment failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "REASSIGNMENT_FAILED")
}
