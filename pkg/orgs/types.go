package orgs

import (
	"context"
	"time"
)

// PlanTier represents subscription plan tiers
type PlanTier string

const (
	TierPersonal PlanTier = "personal"
	TierBusiness PlanTier = "business"
	TierCompany  PlanTier = "company"
	TierCustom   PlanTier = "custom"
)

// UnlimitedSeats is the seat limit sentinel for unbounded plans
const UnlimitedSeats = -1

// SeatLimitForTier returns the fixed seat limit for a plan tier.
// Unknown tiers fall back to the personal limit.
func SeatLimitForTier(tier PlanTier) int {
	switch tier {
	case TierPersonal:
		return 1
	case TierBusiness:
		return 5
	case TierCompany:
		return 25
	case TierCustom:
		return UnlimitedSeats
	default:
		return 1
	}
}

// NextTier returns the recommended upgrade tier and its seat limit
func NextTier(tier PlanTier) (PlanTier, int) {
	switch tier {
	case TierPersonal:
		return TierBusiness, SeatLimitForTier(TierBusiness)
	case TierBusiness:
		return TierCompany, SeatLimitForTier(TierCompany)
	default:
		return TierCustom, UnlimitedSeats
	}
}

// Organization represents a tenant
type Organization struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	OwnerID              int64     `json:"owner_id"`
	StripeCustomerID     string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string    `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Team groups organization members sharing a permission set. Exactly one
// team per organization has IsAdmin set (enforced by a partial unique index).
type Team struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Membership joins a user to an organization through a team. A user has at
// most one active membership row per organization.
type Membership struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	TeamID         int64     `json:"team_id"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Invite is a pending invitation to join an organization. A pending invite
// consumes a seat slot until it is accepted, revoked, or expires.
type Invite struct {
	ID               int64      `json:"id"`
	OrganizationID   int64      `json:"organization_id"`
	TeamID           int64      `json:"team_id"`
	Email            string     `json:"email"`
	Token            string     `json:"token,omitempty"`
	InvitedBy        int64      `json:"invited_by"`
	ExpiresAt        time.Time  `json:"expires_at"`
	IsAccepted       bool       `json:"is_accepted"`
	AcceptedByUserID *int64     `json:"accepted_by_user_id,omitempty"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// InviteTTL is how long an invitation stays valid
const InviteTTL = 7 * 24 * time.Hour

// SeatUsage is the result of seat accounting for an organization
type SeatUsage struct {
	CurrentSeats int      `json:"current_seats"`
	SeatLimit    int      `json:"seat_limit"`
	PlanTier     PlanTier `json:"plan_tier"`
}

// HasCapacity reports whether additional seats can be consumed
func (u *SeatUsage) HasCapacity(additional int) bool {
	if u.SeatLimit == UnlimitedSeats {
		return true
	}
	return u.CurrentSeats+additional <= u.SeatLimit
}

// Remaining returns the number of free seats, or UnlimitedSeats
func (u *SeatUsage) Remaining() int {
	if u.SeatLimit == UnlimitedSeats {
		return UnlimitedSeats
	}
	remaining := u.SeatLimit - u.CurrentSeats
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreateOrgRequest represents request to create an organization
type CreateOrgRequest struct {
	Name string `json:"name"`
}

// UpdateOrgRequest represents request to update an organization
type UpdateOrgRequest struct {
	Name *string `json:"name,omitempty"`
}

// CreateTeamRequest represents request to create a team
type CreateTeamRequest struct {
	Name string `json:"name"`
}

// InviteRequest represents request to invite a single member
type InviteRequest struct {
	Email  string `json:"email"`
	TeamID int64  `json:"team_id"`
}

// BulkInviteRequest represents request to invite several members at once
type BulkInviteRequest struct {
	Emails []string `json:"emails"`
	TeamID int64    `json:"team_id"`
}

// MembershipChecker is the minimal interface the membership guard needs
type MembershipChecker interface {
	// GetMembership returns the active membership for a user in an
	// organization, or nil when none exists.
	GetMembership(ctx context.Context, orgID, userID int64) (*Membership, error)
}

// SeatAccountant is the minimal interface the seat limit guard needs
type SeatAccountant interface {
	ComputeSeatUsage(ctx context.Context, orgID int64) (*SeatUsage, error)
}

// Service defines the interface for organization management
type Service interface {
	MembershipChecker
	SeatAccountant

	// Organization CRUD
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	ListOrganizations(ctx context.Context, userID int64) ([]*Organization, error)
	UpdateOrganization(ctx context.Context, id int64, updates *UpdateOrgRequest) error

	// Team management
	CreateTeam(ctx context.Context, team *Team) error
	GetTeam(ctx context.Context, id int64) (*Team, error)
	ListTeams(ctx context.Context, orgID int64) ([]*Team, error)

	// Membership management
	ListMemberships(ctx context.Context, orgID int64) ([]*Membership, error)
	AddMembership(ctx context.Context, orgID, userID, teamID int64) (*Membership, error)
	DeactivateMembership(ctx context.Context, orgID, userID int64) error

	// Invitation management
	CreateInvite(ctx context.Context, invite *Invite) error
	GetInviteByToken(ctx context.Context, token string) (*Invite, error)
	ListPendingInvites(ctx context.Context, orgID int64) ([]*Invite, error)
	AcceptInvite(ctx context.Context, token string, userID int64) (*Membership, error)
	RevokeInvite(ctx context.Context, id int64) error
	CleanupExpiredInvites(ctx context.Context) (int64, error)
}
