package rbac

import "time"

// RoleStatus is the lifecycle status of a role
type RoleStatus string

const (
	// StatusActive roles may be both reassignment sources and targets
	StatusActive RoleStatus = "ACTIVE"
	// StatusInactive roles cannot participate in reassignment
	StatusInactive RoleStatus = "INACTIVE"
	// StatusSystemLocked roles may only be assigned by system administrators
	StatusSystemLocked RoleStatus = "SYSTEM_LOCKED"
	// StatusDeprecated roles cannot participate in reassignment
	StatusDeprecated RoleStatus = "DEPRECATED"
)

// Role is a persisted role definition
type Role struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      RoleStatus `json:"status"`

	// Category is populated only after the category schema migration has
	// been applied. Nil means not stored.
	Category *string `json:"category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a member of the ERP with exactly one current role
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PermissionSet is a role's permissions at the moment of comparison
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a list of permission strings
func NewPermissionSet(perms []string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether the set holds the given permission
func (ps PermissionSet) Contains(perm string) bool {
	_, ok := ps[perm]
	return ok
}

// List returns the set members as a slice, order unspecified
func (ps PermissionSet) List() []string {
	out := make([]string, 0, len(ps))
	for p := range ps {
		out = append(out, p)
	}
	return out
}

// PermissionDelta is the set-difference breakdown between two roles'
// permissions. LookupError is set when either role's permissions could not
// be read; the sets are then empty.
type PermissionDelta struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`

	LookupError string `json:"lookup_error,omitempty"`
}

// Counts returns the delta cardinalities for the response body. Full sets
// live only in the audit context.
func (d PermissionDelta) Counts() DeltaCounts {
	return DeltaCounts{
		Added:     len(d.Added),
		Removed:   len(d.Removed),
		Unchanged: len(d.Unchanged),
	}
}

// DeltaCounts is the response-facing shape of a permission delta
type DeltaCounts struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// DefaultReason is persisted when the caller omits a reason. Audit records
// never carry an empty reason.
const DefaultReason = "role reassignment requested by administrator"

// ReassignRequest is the input to the reassignment engine
type ReassignRequest struct {
	UserID     string `json:"-"`
	FromRoleID string `json:"fromRoleId"`
	ToRoleID   string `json:"toRoleId"`
	Reason     string `json:"reason,omitempty"`
}

// CategoryChange reports the classification of both roles in a transition
type CategoryChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ReassignResult is returned after a committed reassignment
type ReassignResult struct {
	User            *User          `json:"user"`
	PreviousRoleID  string         `json:"previous_role_id"`
	NewRoleID       string         `json:"new_role_id"`
	Reason          string         `json:"reason"`
	CategoryChange  CategoryChange `json:"categoryChange"`
	PermissionDelta DeltaCounts    `json:"permissionDelta"`
}
