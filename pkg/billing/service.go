package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresService implements Service backed by PostgreSQL
type PostgresService struct {
	db            *sql.DB
	webhookSecret string
}

// NewPostgresService creates a new PostgresService. webhookSecret is the
// Stripe endpoint signing secret; an empty secret disables webhook intake.
func NewPostgresService(db *sql.DB, webhookSecret string) *PostgresService {
	return &PostgresService{db: db, webhookSecret: webhookSecret}
}

// GetSubscription returns the organization's most recent subscription, or
// nil when the organization has never subscribed
func (s *PostgresService) GetSubscription(ctx context.Context, orgID int64) (*OrganizationSubscription, error) {
	query := `
		SELECT id, organization_id, plan, seats_count, status,
		       stripe_customer_id, stripe_subscription_id,
		       current_period_start, current_period_end, created_at, updated_at
		FROM organization_subscriptions
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	sub := &OrganizationSubscription{}
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&sub.ID, &sub.OrganizationID, &sub.Plan, &sub.SeatsCount, &sub.Status,
		&sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// CurrentPeriod returns the organization's billing period bounds. When no
// usable subscription exists, the calendar month is the period.
func (s *PostgresService) CurrentPeriod(ctx context.Context, orgID int64) (start, end time.Time, err error) {
	sub, err := s.GetSubscription(ctx, orgID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if sub != nil && sub.Status.Usable() && !sub.CurrentPeriodStart.IsZero() {
		return sub.CurrentPeriodStart, sub.CurrentPeriodEnd, nil
	}

	now := time.Now().UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// UpsertSubscription creates or replaces the mirror row keyed by the Stripe
// subscription id
func (s *PostgresService) UpsertSubscription(ctx context.Context, sub *OrganizationSubscription) error {
	if !ValidStatus(sub.Status) {
		return fmt.Errorf("invalid subscription status: %s", sub.Status)
	}

	query := `
		INSERT INTO organization_subscriptions
			(organization_id, plan, seats_count, status, stripe_customer_id,
			 stripe_subscription_id, current_period_start, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stripe_subscription_id) DO UPDATE
		SET plan = EXCLUDED.plan, seats_count = EXCLUDED.seats_count,
		    status = EXCLUDED.status,
		    current_period_start = EXCLUDED.current_period_start,
		    current_period_end = EXCLUDED.current_period_end,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		sub.OrganizationID, sub.Plan, sub.SeatsCount, sub.Status,
		sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// updateSubscriptionStatus changes only the status of a mirrored subscription
func (s *PostgresService) updateSubscriptionStatus(ctx context.Context, stripeSubID string, status SubscriptionStatus) error {
	query := `
		UPDATE organization_subscriptions
		SET status = $1, updated_at = NOW()
		WHERE stripe_subscription_id = $2
	`
	result, err := s.db.ExecContext(ctx, query, status, stripeSubID)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("subscription %s not found", stripeSubID)
	}
	return nil
}

// orgIDForCustomer maps a Stripe customer id back to the organization
func (s *PostgresService) orgIDForCustomer(ctx context.Context, customerID string) (int64, error) {
	query := `SELECT id FROM organizations WHERE stripe_customer_id = $1`
	var orgID int64
	err := s.db.QueryRowContext(ctx, query, customerID).Scan(&orgID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no organization for customer %s", customerID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve customer: %w", err)
	}
	return orgID, nil
}
