package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateOrganization creates a new organization together with its admin team
// and the owner's membership.
func (s *PostgresService) CreateOrganization(ctx context.Context, org *Organization) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO organizations (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, org.Name, org.OwnerID).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	var adminTeamID int64
	query = `
		INSERT INTO teams (organization_id, name, is_admin)
		VALUES ($1, 'Admin', TRUE)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query, org.ID).Scan(&adminTeamID); err != nil {
		return fmt.Errorf("failed to create admin team: %w", err)
	}

	query = `
		INSERT INTO user_organizations (user_id, organization_id, team_id, is_active)
		VALUES ($1, $2, $3, TRUE)
	`
	if _, err := tx.ExecContext(ctx, query, org.OwnerID, org.ID, adminTeamID); err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	return tx.Commit()
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `
		SELECT id, name, owner_id, stripe_customer_id, stripe_subscription_id, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org := &Organization{}
	var stripeCustomer, stripeSub sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.OwnerID, &stripeCustomer, &stripeSub,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if stripeCustomer.Valid {
		org.StripeCustomerID = stripeCustomer.String
	}
	if stripeSub.Valid {
		org.StripeSubscriptionID = stripeSub.String
	}
	return org, nil
}

// ListOrganizations lists organizations the user actively belongs to
func (s *PostgresService) ListOrganizations(ctx context.Context, userID int64) ([]*Organization, error) {
	query := `
		SELECT o.id, o.name, o.owner_id, o.stripe_customer_id, o.stripe_subscription_id, o.created_at, o.updated_at
		FROM organizations o
		JOIN user_organizations uo ON uo.organization_id = o.id
		WHERE uo.user_id = $1 AND uo.is_active = TRUE
		ORDER BY o.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var result []*Organization
	for rows.Next() {
		org := &Organization{}
		var stripeCustomer, stripeSub sql.NullString
		if err := rows.Scan(&org.ID, &org.Name, &org.OwnerID, &stripeCustomer, &stripeSub,
			&org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		if stripeCustomer.Valid {
			org.StripeCustomerID = stripeCustomer.String
		}
		if stripeSub.Valid {
			org.StripeSubscriptionID = stripeSub.String
		}
		result = append(result, org)
	}

	return result, rows.Err()
}

// UpdateOrganization updates mutable organization fields
func (s *PostgresService) UpdateOrganization(ctx context.Context, id int64, updates *UpdateOrgRequest) error {
	if updates.Name == nil {
		return nil
	}
	query := `UPDATE organizations SET name = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, *updates.Name, id)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization not found")
	}
	return nil
}

// CreateTeam creates a non-admin team. The admin team exists from
// organization creation and is unique per org.
func (s *PostgresService) CreateTeam(ctx context.Context, team *Team) error {
	query := `
		INSERT INTO teams (organization_id, name, is_admin)
		VALUES ($1, $2, FALSE)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, team.OrganizationID, team.Name).
		Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	team.IsAdmin = false
	return nil
}

// GetTeam retrieves a team by ID
func (s *PostgresService) GetTeam(ctx context.Context, id int64) (*Team, error) {
	query := `
		SELECT id, organization_id, name, is_admin, created_at, updated_at
		FROM teams
		WHERE id = $1
	`
	team := &Team{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID, &team.OrganizationID, &team.Name, &team.IsAdmin,
		&team.CreatedAt, &team.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("team not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

// ListTeams lists all teams in an organization
func (s *PostgresService) ListTeams(ctx context.Context, orgID int64) ([]*Team, error) {
	query := `
		SELECT id, organization_id, name, is_admin, created_at, updated_at
		FROM teams
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		team := &Team{}
		if err := rows.Scan(&team.ID, &team.OrganizationID, &team.Name, &team.IsAdmin,
			&team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}

	return teams, rows.Err()
}
