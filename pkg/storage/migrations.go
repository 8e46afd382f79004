package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full schema, in application order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users and api_keys tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					subject VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL,
					full_name VARCHAR(255),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

				CREATE TABLE IF NOT EXISTS api_keys (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					key_hash VARCHAR(64) NOT NULL UNIQUE,
					key_prefix VARCHAR(16) NOT NULL,
					name VARCHAR(255) NOT NULL,
					expires_at TIMESTAMPTZ,
					last_used_at TIMESTAMPTZ,
					revoked_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys(user_id);
			`,
		},
		{
			Version:     2,
			Description: "Create organizations and teams tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					owner_id BIGINT NOT NULL REFERENCES users(id),
					stripe_customer_id VARCHAR(255),
					stripe_subscription_id VARCHAR(255),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_organizations_stripe_customer
					ON organizations(stripe_customer_id);

				CREATE TABLE IF NOT EXISTS teams (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					is_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, name)
				);
				-- Exactly one admin team per organization.
				CREATE UNIQUE INDEX IF NOT EXISTS idx_teams_one_admin_per_org
					ON teams(organization_id) WHERE is_admin;
			`,
		},
		{
			Version:     3,
			Description: "Create user_organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_organizations (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					team_id BIGINT NOT NULL REFERENCES teams(id),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, organization_id)
				);
				CREATE INDEX IF NOT EXISTS idx_user_organizations_org
					ON user_organizations(organization_id) WHERE is_active;
			`,
		},
		{
			Version:     4,
			Description: "Create organization_invites table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_invites (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					team_id BIGINT NOT NULL REFERENCES teams(id),
					email VARCHAR(255) NOT NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					invited_by BIGINT NOT NULL REFERENCES users(id),
					expires_at TIMESTAMPTZ NOT NULL,
					is_accepted BOOLEAN NOT NULL DEFAULT FALSE,
					accepted_by_user_id BIGINT REFERENCES users(id),
					accepted_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				-- One open invite per address per organization.
				CREATE UNIQUE INDEX IF NOT EXISTS idx_invites_open_per_email
					ON organization_invites(organization_id, email) WHERE NOT is_accepted;
				CREATE INDEX IF NOT EXISTS idx_invites_expiry
					ON organization_invites(expires_at) WHERE NOT is_accepted;
			`,
		},
		{
			Version:     5,
			Description: "Create organization_subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_subscriptions (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					plan VARCHAR(50) NOT NULL,
					seats_count INTEGER NOT NULL DEFAULT 0,
					status VARCHAR(30) NOT NULL,
					stripe_customer_id VARCHAR(255) NOT NULL,
					stripe_subscription_id VARCHAR(255) NOT NULL UNIQUE,
					current_period_start TIMESTAMPTZ,
					current_period_end TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_subscriptions_org
					ON organization_subscriptions(organization_id, status);
			`,
		},
		{
			Version:     6,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					resource_type VARCHAR(50) NOT NULL,
					resource_id BIGINT,
					access_level VARCHAR(20) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_permissions_org_wide
					ON permissions(team_id, resource_type) WHERE resource_id IS NULL;
			`,
		},
		{
			Version:     7,
			Description: "Create usage_events and usage_resets tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS usage_events (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT REFERENCES users(id),
					event_type VARCHAR(50) NOT NULL,
					quantity BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_usage_events_org_type_time
					ON usage_events(organization_id, event_type, created_at);

				CREATE TABLE IF NOT EXISTS usage_resets (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					reset_date TIMESTAMPTZ NOT NULL,
					reason TEXT NOT NULL,
					previous_usage BIGINT NOT NULL,
					reset_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_usage_resets_org
					ON usage_resets(organization_id, reset_date);
			`,
		},
		{
			Version:     8,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMPTZ NOT NULL,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					user_id BIGINT,
					organization_id BIGINT,
					request_id VARCHAR(100),
					method VARCHAR(10),
					path TEXT,
					message TEXT,
					metadata JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_org_time
					ON audit_logs(organization_id, timestamp DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type
					ON audit_logs(event_type);
			`,
		},
	}
}

// Migrate applies all pending migrations in order, tracking the applied
// versions in schema_migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range Migrations() {
		applied, err := migrationApplied(ctx, db, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, version int) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return exists, nil
}
