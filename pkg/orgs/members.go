package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// GetMembership returns the active membership for a user in an organization,
// or nil when the user does not belong to it. This is the single lookup the
// membership guard performs per request.
func (s *PostgresService) GetMembership(ctx context.Context, orgID, userID int64) (*Membership, error) {
	query := `
		SELECT id, user_id, organization_id, team_id, is_active, created_at, updated_at
		FROM user_organizations
		WHERE organization_id = $1 AND user_id = $2 AND is_active = TRUE
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.ID, &m.UserID, &m.OrganizationID, &m.TeamID, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMemberships lists all active memberships in an organization
func (s *PostgresService) ListMemberships(ctx context.Context, orgID int64) ([]*Membership, error) {
	query := `
		SELECT id, user_id, organization_id, team_id, is_active, created_at, updated_at
		FROM user_organizations
		WHERE organization_id = $1 AND is_active = TRUE
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.TeamID, &m.IsActive,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// AddMembership adds a user to an organization through a team. The team must
// belong to the same organization.
func (s *PostgresService) AddMembership(ctx context.Context, orgID, userID, teamID int64) (*Membership, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OrganizationID != orgID {
		return nil, fmt.Errorf("team %d does not belong to organization %d", teamID, orgID)
	}

	query := `
		INSERT INTO user_organizations (user_id, organization_id, team_id, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (user_id, organization_id) DO UPDATE
		SET team_id = EXCLUDED.team_id, is_active = TRUE, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	m := &Membership{
		UserID:         userID,
		OrganizationID: orgID,
		TeamID:         teamID,
		IsActive:       true,
	}
	err = s.db.QueryRowContext(ctx, query, userID, orgID, teamID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add membership: %w", err)
	}
	return m, nil
}

// DeactivateMembership soft-disables a membership. The row is kept for
// history; seat accounting ignores inactive rows.
func (s *PostgresService) DeactivateMembership(ctx context.Context, orgID, userID int64) error {
	query := `
		UPDATE user_organizations
		SET is_active = FALSE, updated_at = NOW()
		WHERE organization_id = $1 AND user_id = $2 AND is_active = TRUE
	`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate membership: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("membership not found")
	}
	return nil
}
