package middleware

import (
	"context"
	"net/http"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/permissions"
)

// MsgPermissionDenied is surfaced when a team's access level is insufficient
const MsgPermissionDenied = "You don't have permission to perform this action"

// AccessChecker verifies a team holds an access level for a resource type
type AccessChecker interface {
	Check(ctx context.Context, teamID int64, resource permissions.ResourceType, required permissions.AccessLevel) error
}

// Requirement declares the permission a route needs. Routes without a
// requirement skip the permission guard entirely.
type Requirement struct {
	Resource permissions.ResourceType
	Level    permissions.AccessLevel
}

// RequireRead declares a read requirement on a resource type
func RequireRead(resource permissions.ResourceType) *Requirement {
	return &Requirement{Resource: resource, Level: permissions.AccessRead}
}

// RequireReadWrite declares a readWrite requirement on a resource type
func RequireReadWrite(resource permissions.ResourceType) *Requirement {
	return &Requirement{Resource: resource, Level: permissions.AccessReadWrite}
}

// PermissionGuard checks the principal's team holds the access level a route
// declares. It must run after MembershipGuard: the team comes from the
// membership already on the context.
//
// This guard fails CLOSED: an unresolvable team or a lookup error denies.
type PermissionGuard struct {
	checker  AccessChecker
	logger   *observability.Logger
	metrics  *observability.Metrics
	recorder audit.Recorder
}

// NewPermissionGuard creates a new permission guard
func NewPermissionGuard(checker AccessChecker, logger *observability.Logger, metrics *observability.Metrics, recorder audit.Recorder) *PermissionGuard {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &PermissionGuard{
		checker:  checker,
		logger:   logger,
		metrics:  metrics,
		recorder: recorder,
	}
}

// Require wraps an HTTP handler with a permission check for the given
// requirement. A nil requirement returns the handler unchanged.
func (g *PermissionGuard) Require(req *Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if req == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			membership := MembershipFromContext(r.Context())
			if membership == nil {
				g.deny(w, r, req)
				return
			}

			err := g.checker.Check(r.Context(), membership.TeamID, req.Resource, req.Level)
			if err == nil {
				g.metrics.ObserveGuardDecision(observability.GuardPermission, observability.OutcomeAllow)
				next.ServeHTTP(w, r)
				return
			}

			if !permissions.IsPermissionDenied(err) {
				// Fail closed, same as the membership guard.
				g.logger.WithError(err).
					WithField("team_id", membership.TeamID).
					WithField("resource_type", string(req.Resource)).
					Error("permission lookup failed")
				g.metrics.ObserveGuardLookupError(observability.GuardPermission)
			}
			g.deny(w, r, req)
		})
	}
}

func (g *PermissionGuard) deny(w http.ResponseWriter, r *http.Request, req *Requirement) {
	g.metrics.ObserveGuardDecision(observability.GuardPermission, observability.OutcomeDeny)

	event := &audit.Event{
		EventType: audit.EventPermissionDenied,
		Status:    audit.StatusDenied,
		RequestID: contextkeys.RequestID(r.Context()),
		Method:    r.Method,
		Path:      r.URL.Path,
		Metadata: map[string]interface{}{
			"resourceType":  string(req.Resource),
			"requiredLevel": string(req.Level),
		},
	}
	if orgID := contextkeys.OrgID(r.Context()); orgID != 0 {
		event.OrganizationID = &orgID
	}
	if principal := PrincipalFromContext(r.Context()); principal != nil {
		event.UserID = &principal.ID
	}
	if err := g.recorder.Record(r.Context(), event); err != nil {
		g.logger.WithError(err).Warn("failed to record audit event")
	}

	httputil.WriteErrorMessage(w, http.StatusForbidden, MsgPermissionDenied)
}
