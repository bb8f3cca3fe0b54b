package audit

import (
	"encoding/json"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	// Authorization events
	EventAuthzCheck        EventType = "authz.check"
	EventAuthzDenied       EventType = "authz.denied"
	EventAuthzGrant        EventType = "authz.grant"
	EventAuthzRevoke       EventType = "authz.revoke"
	EventAuthzRoleChange   EventType = "authz.role_change"
	EventAuthzSystemBypass EventType = "authz.superadmin_bypass"

	// Invitation events
	EventInvitationCreate EventType = "invitation.create"
	EventInvitationAccept EventType = "invitation.accept"
	EventInvitationRevoke EventType = "invitation.revoke"
	EventInvitationLimit  EventType = "invitation.limit_reached"

	// Role and permission management
	EventRoleCreate       EventType = "role.create"
	EventRoleUpdate       EventType = "role.update"
	EventRoleDelete       EventType = "role.delete"
	EventPermissionCreate EventType = "permission.create"
	EventPermissionDelete EventType = "permission.delete"

	// Admin events
	EventAdminBroadcast   EventType = "admin.broadcast"
	EventAdminMaintenance EventType = "admin.maintenance"
	EventAdminUserDelete  EventType = "admin.user_delete"
)

// EventStatus is the outcome of an audited operation.
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry. Denied authorization decisions always
// produce one, carrying enough context (principal, action, resource) for
// later review.
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	UserID      *int64 `json:"user_id,omitempty"`
	WorkspaceID *int64 `json:"workspace_id,omitempty"`

	Action       string `json:"action,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Filter selects events when querying the audit store.
type Filter struct {
	StartTime    *time.Time
	EndTime      *time.Time
	UserID       *int64
	WorkspaceID  *int64
	EventTypes   []EventType
	Status       *EventStatus
	ResourceType string
	ResourceID   string

	Limit  int
	Offset int
}
