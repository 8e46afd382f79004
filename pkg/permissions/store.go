package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetTeamAccessLevel resolves a team's effective org-wide access level for a
// resource type. Resolution happens in one query: the admin team short-circuits
// to readWrite, otherwise the org-wide grant applies, otherwise none.
func (s *PostgresStore) GetTeamAccessLevel(ctx context.Context, teamID int64, resource ResourceType) (AccessLevel, error) {
	query := `
		SELECT CASE
			WHEN t.is_admin THEN 'readWrite'
			ELSE COALESCE(p.access_level, 'none')
		END
		FROM teams t
		LEFT JOIN permissions p
			ON p.team_id = t.id AND p.resource_type = $2 AND p.resource_id IS NULL
		WHERE t.id = $1
	`
	var level AccessLevel
	err := s.db.QueryRowContext(ctx, query, teamID, resource).Scan(&level)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("team %d not found", teamID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get access level: %w", err)
	}
	return level, nil
}

// ListTeamPermissions returns all permission grants for a team
func (s *PostgresStore) ListTeamPermissions(ctx context.Context, teamID int64) ([]*Permission, error) {
	query := `
		SELECT id, team_id, resource_type, resource_id, access_level, created_at, updated_at
		FROM permissions
		WHERE team_id = $1
		ORDER BY resource_type ASC
	`
	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []*Permission
	for rows.Next() {
		perm := &Permission{}
		var resourceID sql.NullInt64
		if err := rows.Scan(&perm.ID, &perm.TeamID, &perm.ResourceType, &resourceID,
			&perm.AccessLevel, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		if resourceID.Valid {
			perm.ResourceID = &resourceID.Int64
		}
		perms = append(perms, perm)
	}

	return perms, rows.Err()
}

// SetTeamPermission creates or updates a team's org-wide grant for a
// resource type. Instance-scoped grants are rejected: resolution only
// consults org-wide rows, so a scoped row would be written but never read.
func (s *PostgresStore) SetTeamPermission(ctx context.Context, teamID int64, req *SetPermissionRequest) error {
	if !ValidResourceType(req.ResourceType) {
		return fmt.Errorf("invalid resource type: %s", req.ResourceType)
	}
	if !ValidAccessLevel(req.AccessLevel) {
		return fmt.Errorf("invalid access level: %s", req.AccessLevel)
	}
	if req.ResourceID != nil {
		return fmt.Errorf("instance-scoped permissions are not supported")
	}

	query := `
		INSERT INTO permissions (team_id, resource_type, access_level)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, resource_type) WHERE resource_id IS NULL DO UPDATE
		SET access_level = EXCLUDED.access_level, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, teamID, req.ResourceType, req.AccessLevel); err != nil {
		return fmt.Errorf("failed to set permission: %w", err)
	}
	return nil
}

// DeleteTeamPermission removes a team's org-wide grant for a resource type
func (s *PostgresStore) DeleteTeamPermission(ctx context.Context, teamID int64, resource ResourceType) error {
	query := `DELETE FROM permissions WHERE team_id = $1 AND resource_type = $2 AND resource_id IS NULL`
	result, err := s.db.ExecContext(ctx, query, teamID, resource)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("permission not found")
	}
	return nil
}
