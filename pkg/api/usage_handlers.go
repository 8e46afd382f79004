package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/middleware"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/permissions"
	"github.com/knowted/knowted/pkg/usage"
)

// usageHandlers serves the usage ledger endpoints
type usageHandlers struct {
	usage  usage.Service
	audit  audit.Recorder
	logger *observability.Logger
}

func newUsageHandlers(deps Deps) *usageHandlers {
	return &usageHandlers{
		usage:  deps.Usage,
		audit:  deps.Audit,
		logger: deps.Logger,
	}
}

func (h *usageHandlers) register(router *mux.Router, chain *middleware.Chain) {
	router.Handle("/organizations/{id}/usage",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireRead(permissions.ResourceBilling),
		}, h.getUsage)).Methods("GET")
	router.Handle("/organizations/{id}/usage/events",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireRead(permissions.ResourceBilling),
		}, h.listEvents)).Methods("GET")
	router.Handle("/organizations/{id}/usage/reset",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireReadWrite(permissions.ResourceBilling),
		}, h.resetUsage)).Methods("POST")
}

func (h *usageHandlers) getUsage(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	summary, err := h.usage.ComputeMonthlyMinutesUsage(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to compute usage")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

func (h *usageHandlers) listEvents(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	events, err := h.usage.ListEvents(r.Context(), orgID, limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to list usage events")
		httputil.WriteInternalError(w, err)
		return
	}
	if events == nil {
		events = []*usage.UsageEvent{}
	}
	httputil.WriteSuccess(w, events)
}

type resetUsageRequest struct {
	Reason string `json:"reason"`
}

func (h *usageHandlers) resetUsage(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	principal := middleware.PrincipalFromContext(r.Context())

	var req resetUsageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Reason == "" {
		httputil.WriteBadRequest(w, "reason is required")
		return
	}

	reset, err := h.usage.ResetMonthlyMinutes(r.Context(), orgID, principal.ID, req.Reason)
	if err != nil {
		h.logger.WithError(err).Error("failed to reset usage")
		httputil.WriteInternalError(w, err)
		return
	}

	event := &audit.Event{
		EventType:      audit.EventUsageReset,
		Status:         audit.StatusSuccess,
		UserID:         &principal.ID,
		OrganizationID: &orgID,
		RequestID:      contextkeys.RequestID(r.Context()),
		Method:         r.Method,
		Path:           r.URL.Path,
		Metadata: map[string]interface{}{
			"reason":        req.Reason,
			"previousUsage": reset.PreviousUsage,
		},
	}
	if err := h.audit.Record(r.Context(), event); err != nil {
		h.logger.WithError(err).Warn("failed to record audit event")
	}
	httputil.WriteCreated(w, reset)
}
