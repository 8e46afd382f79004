package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// ComputeSeatUsage computes current seat usage for an organization.
//
// currentSeats = active memberships + un-expired unaccepted invites at the
// moment of the check. The check and any subsequent invite insert are NOT
// wrapped in one transaction: two concurrent invite calls can both pass
// before either commits. The product accepts this eventual consistency.
func (s *PostgresService) ComputeSeatUsage(ctx context.Context, orgID int64) (*SeatUsage, error) {
	tier, err := s.planTier(ctx, orgID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM user_organizations
			 WHERE organization_id = $1 AND is_active = TRUE) +
			(SELECT COUNT(*) FROM organization_invites
			 WHERE organization_id = $1 AND is_accepted = FALSE AND expires_at > NOW())
	`
	var currentSeats int
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&currentSeats); err != nil {
		return nil, fmt.Errorf("failed to count seats: %w", err)
	}

	return &SeatUsage{
		CurrentSeats: currentSeats,
		SeatLimit:    SeatLimitForTier(tier),
		PlanTier:     tier,
	}, nil
}

// planTier resolves the organization's plan tier from its subscription.
// Organizations without a usable subscription are on the personal tier.
func (s *PostgresService) planTier(ctx context.Context, orgID int64) (PlanTier, error) {
	query := `
		SELECT plan
		FROM organization_subscriptions
		WHERE organization_id = $1 AND status IN ('active', 'trialing', 'past_due')
		ORDER BY created_at DESC
		LIMIT 1
	`
	var tier PlanTier
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(&tier)
	if err == sql.ErrNoRows {
		return TierPersonal, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get plan tier: %w", err)
	}
	return tier, nil
}

// CheckSeatAvailability verifies that requested additional seats fit within
// the plan limit, returning a SeatLimitExceededError when they do not.
func (s *PostgresService) CheckSeatAvailability(ctx context.Context, orgID int64, requested int) (*SeatUsage, error) {
	usage, err := s.ComputeSeatUsage(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !usage.HasCapacity(requested) {
		return usage, NewSeatLimitExceededError(usage, requested)
	}
	return usage, nil
}
