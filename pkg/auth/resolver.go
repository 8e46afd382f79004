package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Resolver maps request credentials onto a Principal. It accepts either a
// bearer token (verified by the external provider) or an API key header.
type Resolver struct {
	verifier TokenVerifier
	store    UserStore
	keys     *APIKeyGenerator

	apiKeysDisabled bool
}

// NewResolver creates a new identity resolver
func NewResolver(verifier TokenVerifier, store UserStore) *Resolver {
	return &Resolver{
		verifier: verifier,
		store:    store,
		keys:     NewAPIKeyGenerator(),
	}
}

// DisableAPIKeys turns off X-API-Key resolution, leaving bearer tokens as
// the only accepted credential.
func (r *Resolver) DisableAPIKeys() {
	r.apiKeysDisabled = true
}

// Resolve extracts a Principal from the request, or returns an
// AuthenticationError. A single lookup per credential, no retries.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Principal, error) {
	if apiKey := req.Header.Get("X-API-Key"); apiKey != "" && !r.apiKeysDisabled {
		return r.resolveAPIKey(ctx, apiKey)
	}

	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return nil, NewAuthenticationError("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, NewAuthenticationError("invalid authorization header format")
	}

	return r.resolveBearer(ctx, parts[1])
}

func (r *Resolver) resolveBearer(ctx context.Context, rawToken string) (*Principal, error) {
	if r.verifier == nil {
		return nil, NewAuthenticationError("bearer authentication is not configured")
	}

	claims, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, NewAuthenticationError("invalid or expired token")
	}

	user, err := r.store.GetUserBySubject(ctx, claims.Subject)
	if err != nil || user == nil || !user.IsActive {
		return nil, NewAuthenticationError(MsgInvalidPrincipal)
	}

	return &Principal{
		ID:      user.ID,
		Email:   user.Email,
		Subject: claims.Subject,
	}, nil
}

func (r *Resolver) resolveAPIKey(ctx context.Context, rawKey string) (*Principal, error) {
	if err := r.keys.ValidateKeyFormat(rawKey); err != nil {
		return nil, NewAuthenticationError("invalid API key")
	}

	key, err := r.store.GetAPIKeyByHash(ctx, r.keys.HashKey(rawKey))
	if err != nil || key == nil {
		return nil, NewAuthenticationError("invalid API key")
	}
	if key.Revoked() || key.Expired(time.Now()) {
		return nil, NewAuthenticationError("invalid API key")
	}

	user, err := r.store.GetUser(ctx, key.UserID)
	if err != nil || user == nil || !user.IsActive {
		return nil, NewAuthenticationError(MsgInvalidPrincipal)
	}

	keyID := key.ID
	return &Principal{
		ID:       user.ID,
		Email:    user.Email,
		APIKeyID: &keyID,
	}, nil
}
