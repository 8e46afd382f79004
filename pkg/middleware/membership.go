package middleware

import (
	"context"
	"net/http"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/auth"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
)

// MembershipGuard confirms the principal belongs to the organization the
// request is scoped to. It resolves the organization id from the request,
// performs exactly one membership lookup, and on success populates the
// context with the organization id and membership for downstream guards.
//
// This guard fails CLOSED: a lookup error denies the request.
type MembershipGuard struct {
	members  orgs.MembershipChecker
	logger   *observability.Logger
	metrics  *observability.Metrics
	recorder audit.Recorder
}

// NewMembershipGuard creates a new membership guard
func NewMembershipGuard(members orgs.MembershipChecker, logger *observability.Logger, metrics *observability.Metrics, recorder audit.Recorder) *MembershipGuard {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &MembershipGuard{
		members:  members,
		logger:   logger,
		metrics:  metrics,
		recorder: recorder,
	}
}

// Handler wraps an HTTP handler with the membership check
func (g *MembershipGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFromContext(r.Context())
		if principal == nil {
			g.deny(w, r, nil, 0, http.StatusUnauthorized, auth.MsgInvalidPrincipal)
			return
		}

		orgID, ok := ResolveOrgID(r)
		if !ok {
			g.deny(w, r, principal, 0, http.StatusForbidden, orgs.MsgOrgIDRequired)
			return
		}

		membership, err := g.members.GetMembership(r.Context(), orgID, principal.ID)
		if err != nil {
			// Fail closed: an unanswerable membership question is a denial.
			g.logger.WithError(err).
				WithField("organization_id", orgID).
				WithField("user_id", principal.ID).
				Error("membership lookup failed")
			g.metrics.ObserveGuardLookupError(observability.GuardMembership)
			g.deny(w, r, principal, orgID, http.StatusForbidden, orgs.MsgNoAccess)
			return
		}
		if membership == nil {
			g.deny(w, r, principal, orgID, http.StatusForbidden, orgs.MsgNoAccess)
			return
		}

		g.metrics.ObserveGuardDecision(observability.GuardMembership, observability.OutcomeAllow)
		ctx := contextkeys.WithOrgID(r.Context(), orgID)
		ctx = contextkeys.WithMembership(ctx, membership)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *MembershipGuard) deny(w http.ResponseWriter, r *http.Request, principal *auth.Principal, orgID int64, status int, message string) {
	g.metrics.ObserveGuardDecision(observability.GuardMembership, observability.OutcomeDeny)

	event := &audit.Event{
		EventType: audit.EventAccessDenied,
		Status:    audit.StatusDenied,
		RequestID: contextkeys.RequestID(r.Context()),
		Method:    r.Method,
		Path:      r.URL.Path,
		Message:   message,
	}
	if principal != nil {
		event.UserID = &principal.ID
	}
	if orgID != 0 {
		event.OrganizationID = &orgID
	}
	if err := g.recorder.Record(r.Context(), event); err != nil {
		g.logger.WithError(err).Warn("failed to record audit event")
	}

	httputil.WriteErrorMessage(w, status, message)
}

// MembershipFromContext returns the membership resolved by the guard, or nil
func MembershipFromContext(ctx context.Context) *orgs.Membership {
	membership, ok := ctx.Value(contextkeys.MembershipKey).(*orgs.Membership)
	if !ok {
		return nil
	}
	return membership
}
