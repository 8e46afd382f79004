package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/auth"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/middleware"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
	"github.com/knowted/knowted/pkg/permissions"
	"github.com/knowted/knowted/pkg/usage"
)

// inviteHandlers serves invitation endpoints. Creating invites consumes
// seats, so those routes run behind the seat limit guard; the guard admits a
// request when at least one seat is free, and the bulk handler caps the
// batch at the remaining capacity itself.
type inviteHandlers struct {
	orgs   orgs.Service
	usage  usage.Service
	audit  audit.Recorder
	logger *observability.Logger
}

func newInviteHandlers(deps Deps) *inviteHandlers {
	return &inviteHandlers{
		orgs:   deps.Orgs,
		usage:  deps.Usage,
		audit:  deps.Audit,
		logger: deps.Logger,
	}
}

func (h *inviteHandlers) register(router *mux.Router, chain *middleware.Chain) {
	router.Handle("/organizations/{id}/invites",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission:    middleware.RequireReadWrite(permissions.ResourceUsers),
			ConsumesSeats: true,
		}, h.createInvite)).Methods("POST")
	router.Handle("/organizations/{id}/invites/bulk",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission:    middleware.RequireReadWrite(permissions.ResourceUsers),
			ConsumesSeats: true,
		}, h.bulkInvite)).Methods("POST")
	router.Handle("/organizations/{id}/invites",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireRead(permissions.ResourceUsers),
		}, h.listInvites)).Methods("GET")
	router.Handle("/organizations/{id}/invites/{inviteId}",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireReadWrite(permissions.ResourceUsers),
		}, h.revokeInvite)).Methods("DELETE")

	// Accepting an invite happens before the user belongs to the
	// organization, so it skips org scoping.
	router.Handle("/invites/accept",
		chain.ProtectFunc(middleware.RouteOptions{SkipMembership: true}, h.acceptInvite)).Methods("POST")
}

func (h *inviteHandlers) createInvite(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	principal := middleware.PrincipalFromContext(r.Context())

	var req orgs.InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.TeamID <= 0 {
		httputil.WriteBadRequest(w, "email and team_id are required")
		return
	}

	invite := &orgs.Invite{
		OrganizationID: orgID,
		TeamID:         req.TeamID,
		Email:          req.Email,
		InvitedBy:      principal.ID,
	}
	if err := h.orgs.CreateInvite(r.Context(), invite); err != nil {
		h.logger.WithError(err).Error("failed to create invite")
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	h.recordSeatConsumed(r, orgID, principal.ID)
	h.recordEvent(r, audit.EventInviteCreated, orgID, map[string]interface{}{
		"email":  req.Email,
		"teamId": req.TeamID,
	})
	httputil.WriteCreated(w, invite)
}

// bulkInviteResponse reports how a bulk request was split between created
// invites and emails skipped for lack of seats.
type bulkInviteResponse struct {
	Created []*orgs.Invite `json:"created"`
	Skipped []string       `json:"skipped,omitempty"`
}

func (h *inviteHandlers) bulkInvite(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	principal := middleware.PrincipalFromContext(r.Context())

	var req orgs.BulkInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Emails) == 0 || req.TeamID <= 0 {
		httputil.WriteBadRequest(w, "emails and team_id are required")
		return
	}

	// The seat guard admitted this request with at least one seat free.
	// Cap the batch at what is actually available now.
	seatUsage, err := h.orgs.ComputeSeatUsage(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to compute seat usage")
		httputil.WriteInternalError(w, err)
		return
	}
	allowed := len(req.Emails)
	if remaining := seatUsage.Remaining(); remaining != orgs.UnlimitedSeats && remaining < allowed {
		allowed = remaining
	}

	resp := bulkInviteResponse{Created: []*orgs.Invite{}}
	for i, email := range req.Emails {
		if i >= allowed {
			resp.Skipped = append(resp.Skipped, email)
			continue
		}
		invite := &orgs.Invite{
			OrganizationID: orgID,
			TeamID:         req.TeamID,
			Email:          email,
			InvitedBy:      principal.ID,
		}
		if err := h.orgs.CreateInvite(r.Context(), invite); err != nil {
			h.logger.WithError(err).WithField("email", email).Warn("failed to create invite")
			resp.Skipped = append(resp.Skipped, email)
			continue
		}
		resp.Created = append(resp.Created, invite)
		h.recordSeatConsumed(r, orgID, principal.ID)
	}

	h.recordEvent(r, audit.EventInviteCreated, orgID, map[string]interface{}{
		"requested": len(req.Emails),
		"created":   len(resp.Created),
		"skipped":   len(resp.Skipped),
		"teamId":    req.TeamID,
	})
	httputil.WriteCreated(w, resp)
}

func (h *inviteHandlers) listInvites(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	invites, err := h.orgs.ListPendingInvites(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list invites")
		httputil.WriteInternalError(w, err)
		return
	}
	if invites == nil {
		invites = []*orgs.Invite{}
	}
	httputil.WriteSuccess(w, invites)
}

func (h *inviteHandlers) revokeInvite(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	inviteID, ok := httputil.ParsePathInt64OrError(w, r, "inviteId")
	if !ok {
		return
	}

	if err := h.orgs.RevokeInvite(r.Context(), inviteID); err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}

	h.recordEvent(r, audit.EventInviteRevoked, orgID, map[string]interface{}{
		"inviteId": inviteID,
	})
	httputil.WriteNoContent(w)
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

func (h *inviteHandlers) acceptInvite(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, auth.MsgInvalidPrincipal)
		return
	}

	var req acceptInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	membership, err := h.orgs.AcceptInvite(r.Context(), req.Token, principal.ID)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	h.recordEvent(r, audit.EventInviteAccepted, membership.OrganizationID, map[string]interface{}{
		"teamId": membership.TeamID,
	})
	httputil.WriteSuccess(w, membership)
}

// recordSeatConsumed appends a seat_added row to the usage ledger. Failure
// to record never fails the request.
func (h *inviteHandlers) recordSeatConsumed(r *http.Request, orgID, userID int64) {
	event := &usage.UsageEvent{
		OrganizationID: orgID,
		UserID:         &userID,
		EventType:      usage.EventSeatAdded,
		Quantity:       1,
	}
	if err := h.usage.RecordEvent(r.Context(), event); err != nil {
		h.logger.WithError(err).Warn("failed to record seat usage event")
	}
}

func (h *inviteHandlers) recordEvent(r *http.Request, eventType audit.EventType, orgID int64, metadata map[string]interface{}) {
	event := &audit.Event{
		EventType:      eventType,
		Status:         audit.StatusSuccess,
		OrganizationID: &orgID,
		RequestID:      contextkeys.RequestID(r.Context()),
		Method:         r.Method,
		Path:           r.URL.Path,
		Metadata:       metadata,
	}
	if principal := middleware.PrincipalFromContext(r.Context()); principal != nil {
		event.UserID = &principal.ID
	}
	if err := h.audit.Record(r.Context(), event); err != nil {
		h.logger.WithError(err).Warn("failed to record audit event")
	}
}
