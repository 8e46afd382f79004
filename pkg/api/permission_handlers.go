package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/middleware"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
	"github.com/knowted/knowted/pkg/permissions"
)

// permissionHandlers serves the team permission management endpoints. Writes
// invalidate the checker's cache for the affected team so the next request
// through the permission guard sees the change.
type permissionHandlers struct {
	store   permissions.Store
	checker *permissions.Checker
	orgs    orgs.Service
	audit   audit.Recorder
	logger  *observability.Logger
}

func newPermissionHandlers(deps Deps) *permissionHandlers {
	return &permissionHandlers{
		store:   deps.Permissions,
		checker: deps.PermChecker,
		orgs:    deps.Orgs,
		audit:   deps.Audit,
		logger:  deps.Logger,
	}
}

func (h *permissionHandlers) register(router *mux.Router, chain *middleware.Chain) {
	router.Handle("/organizations/{id}/teams/{teamId}/permissions",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireRead(permissions.ResourcePermissions),
		}, h.listPermissions)).Methods("GET")
	router.Handle("/organizations/{id}/teams/{teamId}/permissions",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireReadWrite(permissions.ResourcePermissions),
		}, h.setPermission)).Methods("PUT")
	router.Handle("/organizations/{id}/teams/{teamId}/permissions/{resourceType}",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireReadWrite(permissions.ResourcePermissions),
		}, h.deletePermission)).Methods("DELETE")
}

// teamInOrg resolves the path team and verifies it belongs to the request's
// organization. Cross-org team ids are reported as not found.
func (h *permissionHandlers) teamInOrg(w http.ResponseWriter, r *http.Request) (*orgs.Team, bool) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamId")
	if !ok {
		return nil, false
	}
	team, err := h.orgs.GetTeam(r.Context(), teamID)
	if err != nil || team.OrganizationID != contextkeys.OrgID(r.Context()) {
		httputil.WriteNotFound(w, "team not found")
		return nil, false
	}
	return team, true
}

func (h *permissionHandlers) listPermissions(w http.ResponseWriter, r *http.Request) {
	team, ok := h.teamInOrg(w, r)
	if !ok {
		return
	}

	perms, err := h.store.ListTeamPermissions(r.Context(), team.ID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list permissions")
		httputil.WriteInternalError(w, err)
		return
	}
	if perms == nil {
		perms = []*permissions.Permission{}
	}
	httputil.WriteSuccess(w, perms)
}

func (h *permissionHandlers) setPermission(w http.ResponseWriter, r *http.Request) {
	team, ok := h.teamInOrg(w, r)
	if !ok {
		return
	}
	if team.IsAdmin {
		httputil.WriteBadRequest(w, "admin team permissions cannot be changed")
		return
	}

	var req permissions.SetPermissionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.store.SetTeamPermission(r.Context(), team.ID, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	h.checker.InvalidateTeam(team.ID)

	h.recordChange(r, team.ID, map[string]interface{}{
		"resourceType": req.ResourceType,
		"accessLevel":  req.AccessLevel,
	})
	httputil.WriteSuccess(w, req)
}

func (h *permissionHandlers) deletePermission(w http.ResponseWriter, r *http.Request) {
	team, ok := h.teamInOrg(w, r)
	if !ok {
		return
	}

	resource := permissions.ResourceType(mux.Vars(r)["resourceType"])
	if !permissions.ValidResourceType(resource) {
		httputil.WriteBadRequest(w, "invalid resource type")
		return
	}

	if err := h.store.DeleteTeamPermission(r.Context(), team.ID, resource); err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}
	h.checker.InvalidateTeam(team.ID)

	h.recordChange(r, team.ID, map[string]interface{}{
		"resourceType": resource,
		"accessLevel":  permissions.AccessNone,
	})
	httputil.WriteNoContent(w)
}

func (h *permissionHandlers) recordChange(r *http.Request, teamID int64, metadata map[string]interface{}) {
	orgID := contextkeys.OrgID(r.Context())
	metadata["teamId"] = teamID
	event := &audit.Event{
		EventType:      audit.EventPermissionChanged,
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
