package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/billing"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/middleware"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
	"github.com/knowted/knowted/pkg/permissions"
	"github.com/knowted/knowted/pkg/usage"
)

// MaxRequestBody bounds request body size across the API
const MaxRequestBody = 1 << 20 // 1 MiB

// Deps carries everything the server needs. RateLimit and Tracing are
// optional; a nil field disables that layer.
type Deps struct {
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Chain     *middleware.Chain
	RateLimit *middleware.RateLimitMiddleware

	Orgs        orgs.Service
	Permissions permissions.Store
	PermChecker *permissions.Checker
	Billing     billing.Service
	Usage       usage.Service
	Audit       audit.Recorder

	// Tracing enables OTel HTTP instrumentation around the router.
	Tracing bool
}

// Server is the HTTP API server
type Server struct {
	deps   Deps
	router *mux.Router
}

// NewServer creates the server and registers all routes
func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the fully wrapped root handler
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	if s.deps.RateLimit != nil {
		handler = s.deps.RateLimit.Handler(handler)
	}
	handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.deps.Logger),
		s.deps.Metrics.HTTPMetricsMiddleware,
		httputil.MaxBytesMiddleware(MaxRequestBody),
		httputil.RecoveryMiddleware(s.deps.Logger),
	)(handler)
	if s.deps.Tracing {
		handler = otelhttp.NewHandler(handler, "knowted-api")
	}
	return handler
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	orgHandlers := newOrgHandlers(s.deps)
	orgHandlers.register(api, s.deps.Chain)

	inviteHandlers := newInviteHandlers(s.deps)
	inviteHandlers.register(api, s.deps.Chain)

	permHandlers := newPermissionHandlers(s.deps)
	permHandlers.register(api, s.deps.Chain)

	usageHandlers := newUsageHandlers(s.deps)
	usageHandlers.register(api, s.deps.Chain)

	billingHandlers := newBillingHandlers(s.deps)
	billingHandlers.register(api, s.deps.Chain)
}
