package middleware

import (
	"context"
	"net/http"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/auth"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/observability"
)

// PrincipalResolver resolves the authenticated principal from a request
type PrincipalResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*auth.Principal, error)
}

// AuthMiddleware resolves the principal and places it on the context. Every
// failure is a 401 with the standard message; the specific cause is only
// logged, never surfaced.
type AuthMiddleware struct {
	resolver PrincipalResolver
	logger   *observability.Logger
	metrics  *observability.Metrics
	recorder audit.Recorder
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver PrincipalResolver, logger *observability.Logger, metrics *observability.Metrics, recorder audit.Recorder) *AuthMiddleware {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		recorder: recorder,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolver.Resolve(r.Context(), r)
		if err != nil {
			m.logger.WithError(err).
				WithField("path", r.URL.Path).
				Debug("authentication failed")
			m.metrics.ObserveGuardDecision(observability.GuardAuth, observability.OutcomeDeny)
			m.recordFailure(r)
			httputil.WriteUnauthorized(w, auth.MsgInvalidPrincipal)
			return
		}

		m.metrics.ObserveGuardDecision(observability.GuardAuth, observability.OutcomeAllow)
		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) recordFailure(r *http.Request) {
	event := &audit.Event{
		EventType: audit.EventAuthFailed,
		Status:    audit.StatusDenied,
		RequestID: contextkeys.RequestID(r.Context()),
		Method:    r.Method,
		Path:      r.URL.Path,
	}
	if err := m.recorder.Record(r.Context(), event); err != nil {
		m.logger.WithError(err).Warn("failed to record audit event")
	}
}

// PrincipalFromContext returns the authenticated principal, or nil when the
// request did not pass AuthMiddleware
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	principal, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	if !ok {
		return nil
	}
	return principal
}
