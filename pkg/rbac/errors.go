package rbac

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code. Codes are part of the API
// contract and must not change between releases.
type Code string

const (
	CodeValidationError        Code = "VALIDATION_ERROR"
	CodeUserNotFound           Code = "USER_NOT_FOUND"
	CodeUserRoleMismatch       Code = "USER_ROLE_MISMATCH"
	CodeSourceRoleNotActive    Code = "SOURCE_ROLE_NOT_ACTIVE"
	CodeTargetRoleNotFound     Code = "TARGET_ROLE_NOT_FOUND"
	CodeTargetNotActive        Code = "TARGET_NOT_ACTIVE"
	CodeSystemLockedRole       Code = "SYSTEM_LOCKED_ROLE"
	CodeSameRole               Code = "SAME_ROLE"
	CodeSameCategory           Code = "SAME_CATEGORY"
	CodeEquivalentPermissions  Code = "EQUIVALENT_PERMISSIONS"
	CodePermissionLookupFailed Code = "PERMISSION_LOOKUP_FAILED"
	CodeReassignmentFailed     Code = "REASSIGNMENT_FAILED"
)

// Error is a pipeline failure carrying a stable code
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a pipeline error with a stable code
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a pipeline error wrapping an underlying cause
func WrapError(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the stable code from an error chain. Unknown errors map
// to REASSIGNMENT_FAILED.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeReassignmentFailed
}

// HTTPStatus maps an error code to its HTTP response status
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeUserNotFound, CodeTargetRoleNotFound:
		return http.StatusNotFound
	case CodeSystemLockedRole:
		return http.StatusForbidden
	case CodeUserRoleMismatch, CodeSourceRoleNotActive, CodeTargetNotActive,
		CodeSameRole, CodeSameCategory, CodeEquivalentPermissions:
		return http.StatusConflict
	default:
		// REASSIGNMENT_FAILED and PERMISSION_LOOKUP_FAILED stay opaque
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-facing message for an error. Validation
// and policy failures surface their detail; infrastructure failures do not.
func PublicMessage(err error) string {
	code := CodeOf(err)
	if code == CodeReassignmentFailed || code == CodePermissionLookupFailed {
		return "role reassignment failed"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "role reassignment failed"
}
