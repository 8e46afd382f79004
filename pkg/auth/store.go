package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresUserStore implements UserStore using PostgreSQL
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a new PostgresUserStore
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// GetUserBySubject finds the user for a verified OIDC subject claim
func (s *PostgresUserStore) GetUserBySubject(ctx context.Context, subject string) (*User, error) {
	query := `
		SELECT id, subject, email, full_name, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE subject = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, subject))
}

// GetUser finds a user by ID
func (s *PostgresUserStore) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, subject, email, full_name, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresUserStore) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var fullName sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Subject, &user.Email, &fullName,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if fullName.Valid {
		user.FullName = fullName.String
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return user, nil
}

// GetAPIKeyByHash finds an API key by its SHA-256 hash
func (s *PostgresUserStore) GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, name, expires_at, last_used_at, created_at, revoked_at
		FROM api_keys
		WHERE key_hash = $1
	`
	key := &APIKey{}
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, &key.Name,
		&expiresAt, &lastUsedAt, &key.CreatedAt, &revokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("api key not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		key.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		key.RevokedAt = &revokedAt.Time
	}
	return key, nil
}

// CreateAPIKey persists a new API key record
func (s *PostgresUserStore) CreateAPIKey(ctx context.Context, key *APIKey) error {
	query := `
		INSERT INTO api_keys (user_id, key_hash, key_prefix, name, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, key.UserID, key.KeyHash, key.KeyPrefix,
		key.Name, key.ExpiresAt).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// TouchAPIKey records the last use of an API key
func (s *PostgresUserStore) TouchAPIKey(ctx context.Context, id int64) error {
	query := `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}
