package audit

import "time"

// AffectedUser identifies a user touched by a lifecycle event
type AffectedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ReassignmentRecord is an immutable audit entry for a role reassignment.
// ReassignmentMap maps user ID to the role the user was moved onto.
type ReassignmentRecord struct {
	ID            int64          `json:"id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	ActorID       string         `json:"actor_id"`
	ActorUsername string         `json:"actor_username"`

	RoleID         string `json:"role_id"`
	RoleName       string `json:"role_name"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`

	AffectedUsers   []AffectedUser    `json:"affected_users"`
	ReassignmentMap map[string]string `json:"reassignment_map"`

	Reason  string                 `json:"reason"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// SearchFilter narrows an audit trail query. Zero values are ignored.
type SearchFilter struct {
	ActorUsername string
	RoleID        string
	UserID        string
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}
