// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/knowted/knowted/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.PrincipalKey, principal)
//   principal := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: every guard in the chain and all protected endpoints
	// Type: *auth.Principal
	PrincipalKey Key = "principal"

	// OrgIDKey contains the organization ID resolved from the request
	// Set by: middleware.MembershipGuard after a successful membership check
	// Required by: permission guard, seat limit guard, org-scoped handlers
	// Type: int64
	OrgIDKey Key = "organization_id"

	// MembershipKey contains *orgs.Membership for the principal in the
	// resolved organization
	// Set by: middleware.MembershipGuard
	// Used by: permission guard (team resolution), handlers
	// Type: *orgs.Membership
	MembershipKey Key = "membership"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithOrgID adds the resolved organization ID to the context
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// OrgID retrieves the organization ID from the context, or 0 if unset
func OrgID(ctx context.Context) int64 {
	orgID, ok := ctx.Value(OrgIDKey).(int64)
	if !ok {
		return 0
	}
	return orgID
}

// WithMembership adds the resolved membership to the context
func WithMembership(ctx context.Context, membership interface{}) context.Context {
	return context.WithValue(ctx, MembershipKey, membership)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context, or "" if unset
func RequestID(ctx context.Context) string {
	id, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return id
}
