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
)

// orgHandlers serves organization, team, member and seat endpoints
type orgHandlers struct {
	orgs   orgs.Service
	audit  audit.Recorder
	logger *observability.Logger
}

func newOrgHandlers(deps Deps) *orgHandlers {
	return &orgHandlers{
		orgs:   deps.Orgs,
		audit:  deps.Audit,
		logger: deps.Logger,
	}
}

func (h *orgHandlers) register(router *mux.Router, chain *middleware.Chain) {
	// Creating and listing organizations happens before the caller belongs
	// to one, so these skip org scoping.
	router.Handle("/organizations",
		chain.ProtectFunc(middleware.RouteOptions{SkipMembership: true}, h.createOrganization)).Methods("POST")
	router.Handle("/organizations",
		chain.ProtectFunc(middleware.RouteOptions{SkipMembership: true}, h.listOrganizations)).Methods("GET")

	router.Handle("/organizations/{id}",
		chain.ProtectFunc(middleware.RouteOptions{}, h.getOrganization)).Methods("GET")
	router.Handle("/organizations/{id}",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireReadWrite(permissions.ResourceOrganization),
		}, h.updateOrganization)).Methods("PATCH")

	router.Handle("/organizations/{id}/teams",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireRead(permissions.ResourceTeams),
		}, h.listTeams)).Methods("GET")
	router.Handle("/organizations/{id}/teams",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireReadWrite(permissions.ResourceTeams),
		}, h.createTeam)).Methods("POST")

	router.Handle("/organizations/{id}/members",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireRead(permissions.ResourceUsers),
		}, h.listMembers)).Methods("GET")
	router.Handle("/organizations/{id}/members",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission:    middleware.RequireReadWrite(permissions.ResourceUsers),
			ConsumesSeats: true,
		}, h.addMember)).Methods("POST")
	router.Handle("/organizations/{id}/members/{userId}",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireReadWrite(permissions.ResourceUsers),
		}, h.removeMember)).Methods("DELETE")

	router.Handle("/organizations/{id}/seats",
		chain.ProtectFunc(middleware.RouteOptions{}, h.getSeats)).Methods("GET")
}

func (h *orgHandlers) createOrganization(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, auth.MsgInvalidPrincipal)
		return
	}

	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	org := &orgs.Organization{
		Name:    req.Name,
		OwnerID: principal.ID,
	}
	if err := h.orgs.CreateOrganization(r.Context(), org); err != nil {
		h.logger.WithError(err).Error("failed to create organization")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, org)
}

func (h *orgHandlers) listOrganizations(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, auth.MsgInvalidPrincipal)
		return
	}

	result, err := h.orgs.ListOrganizations(r.Context(), principal.ID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list organizations")
		httputil.WriteInternalError(w, err)
		return
	}
	if result == nil {
		result = []*orgs.Organization{}
	}
	httputil.WriteSuccess(w, result)
}

func (h *orgHandlers) getOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	org, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteNotFound(w, "organization not found")
		return
	}
	httputil.WriteSuccess(w, org)
}

func (h *orgHandlers) updateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())

	var req orgs.UpdateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.orgs.UpdateOrganization(r.Context(), orgID, &req); err != nil {
		h.logger.WithError(err).Error("failed to update organization")
		httputil.WriteInternalError(w, err)
		return
	}

	org, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

func (h *orgHandlers) listTeams(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	teams, err := h.orgs.ListTeams(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list teams")
		httputil.WriteInternalError(w, err)
		return
	}
	if teams == nil {
		teams = []*orgs.Team{}
	}
	httputil.WriteSuccess(w, teams)
}

func (h *orgHandlers) createTeam(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())

	var req orgs.CreateTeamRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	team := &orgs.Team{
		OrganizationID: orgID,
		Name:           req.Name,
	}
	if err := h.orgs.CreateTeam(r.Context(), team); err != nil {
		h.logger.WithError(err).Error("failed to create team")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, team)
}

func (h *orgHandlers) listMembers(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	members, err := h.orgs.ListMemberships(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list members")
		httputil.WriteInternalError(w, err)
		return
	}
	if members == nil {
		members = []*orgs.Membership{}
	}
	httputil.WriteSuccess(w, members)
}

type addMemberRequest struct {
	UserID int64 `json:"user_id"`
	TeamID int64 `json:"team_id"`
}

func (h *orgHandlers) addMember(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())

	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID <= 0 || req.TeamID <= 0 {
		httputil.WriteBadRequest(w, "user_id and team_id are required")
		return
	}

	membership, err := h.orgs.AddMembership(r.Context(), orgID, req.UserID, req.TeamID)
	if err != nil {
		h.logger.WithError(err).Error("failed to add member")
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	h.recordEvent(r, audit.EventMemberAdded, orgID, map[string]interface{}{
		"memberUserId": req.UserID,
		"teamId":       req.TeamID,
	})
	httputil.WriteCreated(w, membership)
}

func (h *orgHandlers) removeMember(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	if err := h.orgs.DeactivateMembership(r.Context(), orgID, userID); err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}

	h.recordEvent(r, audit.EventMemberRemoved, orgID, map[string]interface{}{
		"memberUserId": userID,
	})
	httputil.WriteNoContent(w)
}

func (h *orgHandlers) getSeats(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	usage, err := h.orgs.ComputeSeatUsage(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to compute seat usage")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, usage)
}

func (h *orgHandlers) recordEvent(r *http.Request, eventType audit.EventType, orgID int64, metadata map[string]interface{}) {
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
