// Package auth resolves the authenticated principal for incoming requests.
//
// Verification of bearer tokens is delegated to an external OIDC provider;
// this package only maps a verified identity (or an API key) onto a user
// record. It never makes authorization decisions — that is the guard chain's
// job (pkg/middleware).
package auth

import (
	"context"
	"time"
)

// Principal is the authenticated identity making a request. It is resolved
// per request from a verified token and never persisted.
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`

	// Subject is the identity provider's stable subject claim, set only for
	// bearer-token principals.
	Subject string `json:"-"`

	// APIKeyID is set when the principal was resolved from an API key.
	APIKeyID *int64 `json:"-"`
}

// User is the persisted account an identity maps onto
type User struct {
	ID          int64      `json:"id"`
	Subject     string     `json:"-"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// APIKey represents a long-lived machine credential
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	KeyHash    string     `json:"-"` // Never expose hash
	KeyPrefix  string     `json:"key_prefix"`
	Name       string     `json:"name"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Expired reports whether the key is past its expiry
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// Revoked reports whether the key has been revoked
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// UserStore looks up user records for identity resolution
type UserStore interface {
	// GetUserBySubject finds the user for a verified OIDC subject claim
	GetUserBySubject(ctx context.Context, subject string) (*User, error)

	// GetAPIKeyByHash finds an API key by its SHA-256 hash
	GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error)

	// GetUser finds a user by ID
	GetUser(ctx context.Context, id int64) (*User, error)
}

// Claims are the identity claims extracted from a verified bearer token
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// TokenVerifier verifies a raw bearer token and returns its identity claims.
// The production implementation wraps the external OIDC provider.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}
