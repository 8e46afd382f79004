package audit

import (
	"context"
	"time"
)

// EventType categorizes an audit event
type EventType string

const (
	EventAuthFailed        EventType = "authn.failed"
	EventAccessDenied      EventType = "authz.access_denied"
	EventPermissionDenied  EventType = "authz.permission_denied"
	EventSeatLimitExceeded EventType = "seats.limit_exceeded"
	EventUsageReset        EventType = "usage.reset"
	EventMemberAdded       EventType = "org.member_added"
	EventMemberRemoved     EventType = "org.member_removed"
	EventInviteCreated     EventType = "invite.created"
	EventInviteAccepted    EventType = "invite.accepted"
	EventInviteRevoked     EventType = "invite.revoked"
	EventPermissionChanged EventType = "permission.changed"
)

// EventStatus is the outcome of the audited action
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusDenied  EventStatus = "denied"
	StatusFailure EventStatus = "failure"
)

// Event is one audit trail entry
type Event struct {
	ID             int64                  `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	EventType      EventType              `json:"eventType"`
	Status         EventStatus            `json:"status"`
	UserID         *int64                 `json:"userId,omitempty"`
	OrganizationID *int64                 `json:"organizationId,omitempty"`
	RequestID      string                 `json:"requestId,omitempty"`
	Method         string                 `json:"method,omitempty"`
	Path           string                 `json:"path,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter narrows a trail query
type SearchFilter struct {
	OrganizationID *int64
	UserID         *int64
	EventTypes     []EventType
	Since          *time.Time
	Limit          int
}

// Recorder writes audit events
type Recorder interface {
	// Record appends one event to the trail
	Record(ctx context.Context, event *Event) error

	// Search returns trail entries matching the filter, newest first
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// Nop is a Recorder that drops every event. Used in tests and when auditing
// is disabled.
type Nop struct{}

func (Nop) Record(context.Context, *Event) error { return nil }

func (Nop) Search(context.Context, SearchFilter) ([]*Event, error) { return nil, nil }
