package orgs

import "fmt"

// Authorization failure messages surfaced to clients. The client renders
// these directly, so they are stable strings.
const (
	MsgOrgIDRequired = "Organization ID is required"
	MsgNoAccess      = "You don't have access to this organization"
)

// ErrorCodeSeatLimitExceeded is the machine-readable code for seat limit
// rejections.
const ErrorCodeSeatLimitExceeded = "SEAT_LIMIT_EXCEEDED"

// AccessDeniedError indicates the principal may not act on the organization.
// Fatal (403), never retried, no partial effects.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string {
	return e.Message
}

// NewAccessDeniedError creates an AccessDeniedError with the standard
// message unless a more specific one is given.
func NewAccessDeniedError(message string) *AccessDeniedError {
	if message == "" {
		message = MsgNoAccess
	}
	return &AccessDeniedError{Message: message}
}

// IsAccessDenied checks if an error is an access denied error
func IsAccessDenied(err error) bool {
	_, ok := err.(*AccessDeniedError)
	return ok
}

// SeatLimitExceededError carries the upgrade guidance the client needs to
// render an upgrade prompt without parsing free text. Recoverable by the
// caller upgrading the plan and retrying.
type SeatLimitExceededError struct {
	CurrentPlan          PlanTier `json:"currentPlan"`
	CurrentSeats         int      `json:"currentSeats"`
	CurrentSeatLimit     int      `json:"currentSeatLimit"`
	RecommendedPlan      PlanTier `json:"recommendedPlan"`
	RecommendedSeatLimit int      `json:"recommendedSeatLimit"`
	UpgradeReason        string   `json:"upgradeReason"`
}

func (e *SeatLimitExceededError) Error() string {
	return fmt.Sprintf("seat limit exceeded: %d of %d seats in use on the %s plan",
		e.CurrentSeats, e.CurrentSeatLimit, e.CurrentPlan)
}

// NewSeatLimitExceededError builds the structured error for a seat usage
// snapshot and the number of additional seats that were requested.
func NewSeatLimitExceededError(usage *SeatUsage, requested int) *SeatLimitExceededError {
	recommendedPlan, recommendedLimit := NextTier(usage.PlanTier)
	return &SeatLimitExceededError{
		CurrentPlan:          usage.PlanTier,
		CurrentSeats:         usage.CurrentSeats,
		CurrentSeatLimit:     usage.SeatLimit,
		RecommendedPlan:      recommendedPlan,
		RecommendedSeatLimit: recommendedLimit,
		UpgradeReason: fmt.Sprintf("Adding %d seat(s) would exceed the %s plan limit of %d",
			requested, usage.PlanTier, usage.SeatLimit),
	}
}

// IsSeatLimitExceeded checks if an error is a seat limit error
func IsSeatLimitExceeded(err error) bool {
	_, ok := err.(*SeatLimitExceededError)
	return ok
}
