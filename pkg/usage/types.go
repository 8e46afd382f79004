package usage

import (
	"context"
	"time"
)

// EventType identifies a billable action in the ledger
type EventType string

const (
	EventCallMinutesUsed EventType = "call_minutes_used"
	EventSeatAdded       EventType = "seat_added"
)

// UsageEvent is one row of the append-only ledger
type UsageEvent struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationId"`
	UserID         *int64    `json:"userId,omitempty"`
	EventType      EventType `json:"eventType"`
	Quantity       int64     `json:"quantity"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Reset is the audit record of a manual usage reset. PreviousUsage captures
// what the aggregate read at reset time; the event rows themselves are
// untouched.
type Reset struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationId"`
	ResetDate      time.Time `json:"resetDate"`
	Reason         string    `json:"reason"`
	PreviousUsage  int64     `json:"previousUsage"`
	ResetBy        int64     `json:"resetBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MonthlyMinutesSummary is the display shape for an organization's minutes
// usage. ResetDate is the end of the current billing period, when usage
// rolls over on its own.
type MonthlyMinutesSummary struct {
	OrganizationID int64     `json:"organizationId"`
	MinutesUsed    int64     `json:"minutesUsed"`
	PeriodStart    time.Time `json:"periodStart"`
	ResetDate      time.Time `json:"resetDate"`
}

// PeriodResolver supplies the billing period bounds for an organization
type PeriodResolver interface {
	CurrentPeriod(ctx context.Context, orgID int64) (start, end time.Time, err error)
}

// Service records events and aggregates usage
type Service interface {
	// RecordEvent appends one event to the ledger
	RecordEvent(ctx context.Context, event *UsageEvent) error

	// ComputeMonthlyMinutesUsage aggregates call minutes for the current
	// period, honoring the last manual reset
	ComputeMonthlyMinutesUsage(ctx context.Context, orgID int64) (*MonthlyMinutesSummary, error)

	// ResetMonthlyMinutes records a manual reset
	ResetMonthlyMinutes(ctx context.Context, orgID, resetBy int64, reason string) (*Reset, error)

	// ListEvents returns recent ledger rows for an organization
	ListEvents(ctx context.Context, orgID int64, limit int) ([]*UsageEvent, error)
}
