package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultListLimit caps ListEvents when the caller passes no limit
const DefaultListLimit = 100

// PostgresService implements Service backed by PostgreSQL
type PostgresService struct {
	db      *sql.DB
	periods PeriodResolver
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, periods PeriodResolver) *PostgresService {
	return &PostgresService{db: db, periods: periods}
}

// RecordEvent appends one event to the ledger
func (s *PostgresService) RecordEvent(ctx context.Context, event *UsageEvent) error {
	if event.Quantity <= 0 {
		return fmt.Errorf("event quantity must be positive, got %d", event.Quantity)
	}

	query := `
		INSERT INTO usage_events (organization_id, user_id, event_type, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	var userID sql.NullInt64
	if event.UserID != nil {
		userID = sql.NullInt64{Int64: *event.UserID, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, query, event.OrganizationID, userID,
		event.EventType, event.Quantity).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}
	return nil
}

// ComputeMonthlyMinutesUsage sums call minutes since the later of the
// period start and the last manual reset
func (s *PostgresService) ComputeMonthlyMinutesUsage(ctx context.Context, orgID int64) (*MonthlyMinutesSummary, error) {
	periodStart, periodEnd, err := s.periods.CurrentPeriod(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve billing period: %w", err)
	}

	since := periodStart
	lastReset, err := s.lastResetDate(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if lastReset != nil && lastReset.After(since) {
		since = *lastReset
	}

	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM usage_events
		WHERE organization_id = $1 AND event_type = $2 AND created_at >= $3
	`
	var minutes int64
	err = s.db.QueryRowContext(ctx, query, orgID, EventCallMinutesUsed, since).Scan(&minutes)
	if err != nil {
		return nil, fmt.Errorf("failed to sum usage: %w", err)
	}

	return &MonthlyMinutesSummary{
		OrganizationID: orgID,
		MinutesUsed:    minutes,
		PeriodStart:    since,
		ResetDate:      periodEnd,
	}, nil
}

func (s *PostgresService) lastResetDate(ctx context.Context, orgID int64) (*time.Time, error) {
	query := `SELECT MAX(reset_date) FROM usage_resets WHERE organization_id = $1`
	var reset sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&reset); err != nil {
		return nil, fmt.Errorf("failed to get last reset: %w", err)
	}
	if !reset.Valid {
		return nil, nil
	}
	return &reset.Time, nil
}

// ResetMonthlyMinutes records a manual reset. Subsequent aggregates start
// from the reset date; the ledger is not modified.
func (s *PostgresService) ResetMonthlyMinutes(ctx context.Context, orgID, resetBy int64, reason string) (*Reset, error) {
	if reason == "" {
		return nil, fmt.Errorf("reset reason is required")
	}

	summary, err := s.ComputeMonthlyMinutesUsage(ctx, orgID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO usage_resets (organization_id, reset_date, reason, previous_usage, reset_by)
		VALUES ($1, NOW(), $2, $3, $4)
		RETURNING id, reset_date, created_at
	`
	reset := &Reset{
		OrganizationID: orgID,
		Reason:         reason,
		PreviousUsage:  summary.MinutesUsed,
		ResetBy:        resetBy,
	}
	err = s.db.QueryRowContext(ctx, query, orgID, reason, summary.MinutesUsed, resetBy).
		Scan(&reset.ID, &reset.ResetDate, &reset.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record reset: %w", err)
	}
	return reset, nil
}

// ListEvents returns recent ledger rows for an organization, newest first
func (s *PostgresService) ListEvents(ctx context.Context, orgID int64, limit int) ([]*UsageEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, organization_id, user_id, event_type, quantity, created_at
		FROM usage_events
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}
	defer rows.Close()

	var events []*UsageEvent
	for rows.Next() {
		event := &UsageEvent{}
		var userID sql.NullInt64
		if err := rows.Scan(&event.ID, &event.OrganizationID, &userID,
			&event.EventType, &event.Quantity, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		if userID.Valid {
			event.UserID = &userID.Int64
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
