package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateInvite creates a new invitation. The seat limit guard runs before
// this on seat-consuming routes; the insert itself is not re-checked against
// the limit (check-then-act, see ComputeSeatUsage).
func (s *PostgresService) CreateInvite(ctx context.Context, invite *Invite) error {
	if invite.Token == "" {
		invite.Token = uuid.NewString()
	}
	if invite.ExpiresAt.IsZero() {
		invite.ExpiresAt = time.Now().Add(InviteTTL)
	}

	team, err := s.GetTeam(ctx, invite.TeamID)
	if err != nil {
		return err
	}
	if team.OrganizationID != invite.OrganizationID {
		return fmt.Errorf("team %d does not belong to organization %d", invite.TeamID, invite.OrganizationID)
	}

	query := `
		INSERT INTO organization_invites (organization_id, team_id, email, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, email) WHERE NOT is_accepted DO UPDATE
		SET team_id = EXCLUDED.team_id, token = EXCLUDED.token,
		    invited_by = EXCLUDED.invited_by, expires_at = EXCLUDED.expires_at
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query, invite.OrganizationID, invite.TeamID,
		invite.Email, invite.Token, invite.InvitedBy, invite.ExpiresAt).
		Scan(&invite.ID, &invite.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// GetInviteByToken retrieves an invitation by its token
func (s *PostgresService) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	query := `
		SELECT id, organization_id, team_id, email, token, invited_by, expires_at,
		       is_accepted, accepted_by_user_id, accepted_at, created_at
		FROM organization_invites
		WHERE token = $1
	`
	invite := &Invite{}
	var acceptedBy sql.NullInt64
	var acceptedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&invite.ID, &invite.OrganizationID, &invite.TeamID, &invite.Email,
		&invite.Token, &invite.InvitedBy, &invite.ExpiresAt,
		&invite.IsAccepted, &acceptedBy, &acceptedAt, &invite.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invite not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	if acceptedBy.Valid {
		invite.AcceptedByUserID = &acceptedBy.Int64
	}
	if acceptedAt.Valid {
		invite.AcceptedAt = &acceptedAt.Time
	}
	return invite, nil
}

// ListPendingInvites lists un-expired, unaccepted invitations. These are the
// rows that count toward seat usage.
func (s *PostgresService) ListPendingInvites(ctx context.Context, orgID int64) ([]*Invite, error) {
	query := `
		SELECT id, organization_id, team_id, email, token, invited_by, expires_at,
		       is_accepted, accepted_by_user_id, accepted_at, created_at
		FROM organization_invites
		WHERE organization_id = $1 AND is_accepted = FALSE AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*Invite
	for rows.Next() {
		invite := &Invite{}
		var acceptedBy sql.NullInt64
		var acceptedAt sql.NullTime
		if err := rows.Scan(&invite.ID, &invite.OrganizationID, &invite.TeamID, &invite.Email,
			&invite.Token, &invite.InvitedBy, &invite.ExpiresAt,
			&invite.IsAccepted, &acceptedBy, &acceptedAt, &invite.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		if acceptedBy.Valid {
			invite.AcceptedByUserID = &acceptedBy.Int64
		}
		if acceptedAt.Valid {
			invite.AcceptedAt = &acceptedAt.Time
		}
		invites = append(invites, invite)
	}

	return invites, rows.Err()
}

// AcceptInvite accepts an invitation and creates the membership in one
// transaction. The invite row is locked so a token cannot be redeemed twice.
func (s *PostgresService) AcceptInvite(ctx context.Context, token string, userID int64) (*Membership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, organization_id, team_id, expires_at, is_accepted
		FROM organization_invites
		WHERE token = $1
		FOR UPDATE
	`
	var id, orgID, teamID int64
	var expiresAt time.Time
	var isAccepted bool
	err = tx.QueryRowContext(ctx, query, token).Scan(&id, &orgID, &teamID, &expiresAt, &isAccepted)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invite not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}

	if isAccepted {
		return nil, fmt.Errorf("invite already accepted")
	}
	if time.Now().After(expiresAt) {
		return nil, fmt.Errorf("invite expired")
	}

	query = `
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
	if err := tx.QueryRowContext(ctx, query, userID, orgID, teamID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	query = `
		UPDATE organization_invites
		SET is_accepted = TRUE, accepted_by_user_id = $1, accepted_at = NOW()
		WHERE id = $2
	`
	if _, err := tx.ExecContext(ctx, query, userID, id); err != nil {
		return nil, fmt.Errorf("failed to update invite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return m, nil
}

// RevokeInvite deletes an unaccepted invitation
func (s *PostgresService) RevokeInvite(ctx context.Context, id int64) error {
	query := `DELETE FROM organization_invites WHERE id = $1 AND is_accepted = FALSE`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invite not found or already accepted")
	}
	return nil
}

// CleanupExpiredInvites removes expired invitations. Run periodically; this
// is what frees the seats pending invites reserve.
func (s *PostgresService) CleanupExpiredInvites(ctx context.Context) (int64, error) {
	query := `DELETE FROM organization_invites WHERE expires_at < NOW() AND is_accepted = FALSE`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invites: %w", err)
	}
	return result.RowsAffected()
}
