package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/knowted/knowted/pkg/auth"
	"github.com/knowted/knowted/pkg/billing"
	"github.com/knowted/knowted/pkg/middleware"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
	"github.com/knowted/knowted/pkg/permissions"
	"github.com/knowted/knowted/pkg/usage"
)

// fakeResolver maps bearer tokens to principals
type fakeResolver struct {
	principals map[string]*auth.Principal
}

func (r *fakeResolver) Resolve(_ context.Context, req *http.Request) (*auth.Principal, error) {
	token := req.Header.Get("Authorization")
	if p, ok := r.principals[token]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown token")
}

// fakeOrgs is an in-memory orgs.Service
type fakeOrgs struct {
	nextID      int64
	orgsByID    map[int64]*orgs.Organization
	teams       map[int64]*orgs.Team
	memberships map[int64]map[int64]*orgs.Membership
	seatUsage   map[int64]*orgs.SeatUsage
	invites     []*orgs.Invite
	acceptable  map[string]*orgs.Membership
}

func newFakeOrgs() *fakeOrgs {
	return &fakeOrgs{
		nextID:      1000,
		orgsByID:    make(map[int64]*orgs.Organization),
		teams:       make(map[int64]*orgs.Team),
		memberships: make(map[int64]map[int64]*orgs.Membership),
		seatUsage:   make(map[int64]*orgs.SeatUsage),
		acceptable:  make(map[string]*orgs.Membership),
	}
}

func (f *fakeOrgs) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeOrgs) addMembership(orgID, userID, teamID int64) {
	if f.memberships[orgID] == nil {
		f.memberships[orgID] = make(map[int64]*orgs.Membership)
	}
	f.memberships[orgID][userID] = &orgs.Membership{
		ID:             f.id(),
		UserID:         userID,
		OrganizationID: orgID,
		TeamID:         teamID,
		IsActive:       true,
	}
}

func (f *fakeOrgs) GetMembership(_ context.Context, orgID, userID int64) (*orgs.Membership, error) {
	return f.memberships[orgID][userID], nil
}

func (f *fakeOrgs) ComputeSeatUsage(_ context.Context, orgID int64) (*orgs.SeatUsage, error) {
	if u, ok := f.seatUsage[orgID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("no seat usage configured for org %d", orgID)
}

func (f *fakeOrgs) CreateOrganization(_ context.Context, org *orgs.Organization) error {
	org.ID = f.id()
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	f.orgsByID[org.ID] = org
	return nil
}

func (f *fakeOrgs) GetOrganization(_ context.Context, id int64) (*orgs.Organization, error) {
	if org, ok := f.orgsByID[id]; ok {
		return org, nil
	}
	return nil, fmt.Errorf("organization not found")
}

func (f *fakeOrgs) ListOrganizations(_ context.Context, userID int64) ([]*orgs.Organization, error) {
	var result []*orgs.Organization
	for orgID, members := range f.memberships {
		if m, ok := members[userID]; ok && m.IsActive {
			if org, exists := f.orgsByID[orgID]; exists {
				result = append(result, org)
			}
		}
	}
	return result, nil
}

func (f *fakeOrgs) UpdateOrganization(_ context.Context, id int64, updates *orgs.UpdateOrgRequest) error {
	org, ok := f.orgsByID[id]
	if !ok {
		return fmt.Errorf("organization not found")
	}
	if updates.Name != nil {
		org.Name = *updates.Name
	}
	return nil
}

func (f *fakeOrgs) CreateTeam(_ context.Context, team *orgs.Team) error {
	team.ID = f.id()
	f.teams[team.ID] = team
	return nil
}

func (f *fakeOrgs) GetTeam(_ context.Context, id int64) (*orgs.Team, error) {
	if team, ok := f.teams[id]; ok {
		return team, nil
	}
	return nil, fmt.Errorf("team not found")
}

func (f *fakeOrgs) ListTeams(_ context.Context, orgID int64) ([]*orgs.Team, error) {
	var result []*orgs.Team
	for _, team := range f.teams {
		if team.OrganizationID == orgID {
			result = append(result, team)
		}
	}
	return result, nil
}

func (f *fakeOrgs) ListMemberships(_ context.Context, orgID int64) ([]*orgs.Membership, error) {
	var result []*orgs.Membership
	for _, m := range f.memberships[orgID] {
		result = append(result, m)
	}
	return result, nil
}

func (f *fakeOrgs) AddMembership(_ context.Context, orgID, userID, teamID int64) (*orgs.Membership, error) {
	f.addMembership(orgID, userID, teamID)
	return f.memberships[orgID][userID], nil
}

func (f *fakeOrgs) DeactivateMembership(_ context.Context, orgID, userID int64) error {
	m, ok := f.memberships[orgID][userID]
	if !ok {
		return fmt.Errorf("membership not found")
	}
	m.IsActive = false
	delete(f.memberships[orgID], userID)
	return nil
}

func (f *fakeOrgs) CreateInvite(_ context.Context, invite *orgs.Invite) error {
	invite.ID = f.id()
	invite.Token = fmt.Sprintf("token-%d", invite.ID)
	invite.ExpiresAt = time.Now().Add(orgs.InviteTTL)
	f.invites = append(f.invites, invite)
	return nil
}

func (f *fakeOrgs) GetInviteByToken(_ context.Context, token string) (*orgs.Invite, error) {
	for _, inv := range f.invites {
		if inv.Token == token {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("invite not found")
}

func (f *fakeOrgs) ListPendingInvites(_ context.Context, orgID int64) ([]*orgs.Invite, error) {
	var result []*orgs.Invite
	for _, inv := range f.invites {
		if inv.OrganizationID == orgID && !inv.IsAccepted {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (f *fakeOrgs) AcceptInvite(_ context.Context, token string, userID int64) (*orgs.Membership, error) {
	m, ok := f.acceptable[token]
	if !ok {
		return nil, fmt.Errorf("invite not found")
	}
	m.UserID = userID
	f.addMembership(m.OrganizationID, userID, m.TeamID)
	return m, nil
}

func (f *fakeOrgs) RevokeInvite(_ context.Context, id int64) error {
	for i, inv := range f.invites {
		if inv.ID == id && !inv.IsAccepted {
			f.invites = append(f.invites[:i], f.invites[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("invite not found or already accepted")
}

func (f *fakeOrgs) CleanupExpiredInvites(context.Context) (int64, error) {
	return 0, nil
}

// fakePermStore holds access levels in memory
type fakePermStore struct {
	levels map[int64]map[permissions.ResourceType]permissions.AccessLevel
}

func newFakePermStore() *fakePermStore {
	return &fakePermStore{levels: make(map[int64]map[permissions.ResourceType]permissions.AccessLevel)}
}

func (f *fakePermStore) grant(teamID int64, resource permissions.ResourceType, level permissions.AccessLevel) {
	if f.levels[teamID] == nil {
		f.levels[teamID] = make(map[permissions.ResourceType]permissions.AccessLevel)
	}
	f.levels[teamID][resource] = level
}

func (f *fakePermStore) GetTeamAccessLevel(_ context.Context, teamID int64, resource permissions.ResourceType) (permissions.AccessLevel, error) {
	if level, ok := f.levels[teamID][resource]; ok {
		return level, nil
	}
	return permissions.AccessNone, nil
}

func (f *fakePermStore) ListTeamPermissions(_ context.Context, teamID int64) ([]*permissions.Permission, error) {
	var result []*permissions.Permission
	for resource, level := range f.levels[teamID] {
		result = append(result, &permissions.Permission{
			TeamID:       teamID,
			ResourceType: resource,
			AccessLevel:  level,
		})
	}
	return result, nil
}

func (f *fakePermStore) SetTeamPermission(_ context.Context, teamID int64, req *permissions.SetPermissionRequest) error {
	if !permissions.ValidResourceType(req.ResourceType) || !permissions.ValidAccessLevel(req.AccessLevel) {
		return fmt.Errorf("invalid permission request")
	}
	if req.ResourceID != nil {
		return fmt.Errorf("instance-scoped permissions are not supported")
	}
	f.grant(teamID, req.ResourceType, req.AccessLevel)
	return nil
}

func (f *fakePermStore) DeleteTeamPermission(_ context.Context, teamID int64, resource permissions.ResourceType) error {
	if _, ok := f.levels[teamID][resource]; !ok {
		return fmt.Errorf("permission not found")
	}
	delete(f.levels[teamID], resource)
	return nil
}

// fakeBilling returns canned subscription data
type fakeBilling struct {
	sub        *billing.OrganizationSubscription
	webhookErr error
	webhooks   [][]byte
}

func (f *fakeBilling) GetSubscription(context.Context, int64) (*billing.OrganizationSubscription, error) {
	return f.sub, nil
}

func (f *fakeBilling) UpsertSubscription(context.Context, *billing.OrganizationSubscription) error {
	return nil
}

func (f *fakeBilling) HandleWebhook(_ context.Context, payload []byte, _ string) error {
	if f.webhookErr != nil {
		return f.webhookErr
	}
	f.webhooks = append(f.webhooks, payload)
	return nil
}

// fakeUsage records events and returns canned aggregates
type fakeUsage struct {
	events  []*usage.UsageEvent
	summary *usage.MonthlyMinutesSummary
}

func (f *fakeUsage) RecordEvent(_ context.Context, event *usage.UsageEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeUsage) ComputeMonthlyMinutesUsage(_ context.Context, orgID int64) (*usage.MonthlyMinutesSummary, error) {
	if f.summary != nil {
		return f.summary, nil
	}
	return &usage.MonthlyMinutesSummary{OrganizationID: orgID}, nil
}

func (f *fakeUsage) ResetMonthlyMinutes(_ context.Context, orgID, resetBy int64, reason string) (*usage.Reset, error) {
	var previous int64
	if f.summary != nil {
		previous = f.summary.MinutesUsed
	}
	return &usage.Reset{
		OrganizationID: orgID,
		ResetDate:      time.Now(),
		Reason:         reason,
		PreviousUsage:  previous,
		ResetBy:        resetBy,
	}, nil
}

func (f *fakeUsage) ListEvents(context.Context, int64, int) ([]*usage.UsageEvent, error) {
	return f.events, nil
}

// testEnv bundles the fakes behind a running server handler
type testEnv struct {
	handler  http.Handler
	orgs     *fakeOrgs
	perms    *fakePermStore
	billing  *fakeBilling
	usage    *fakeUsage
	resolver *fakeResolver
}

func newTestEnv() *testEnv {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	env := &testEnv{
		orgs:     newFakeOrgs(),
		perms:    newFakePermStore(),
		billing:  &fakeBilling{},
		usage:    &fakeUsage{},
		resolver: &fakeResolver{principals: make(map[string]*auth.Principal)},
	}

	checker := permissions.NewChecker(env.perms, 0, 0)
	chain := &middleware.Chain{
		Auth:           middleware.NewAuthMiddleware(env.resolver, logger, metrics, nil),
		Membership:     middleware.NewMembershipGuard(env.orgs, logger, metrics, nil),
		Permission:     middleware.NewPermissionGuard(checker, logger, metrics, nil),
		SeatLimit:      middleware.NewSeatLimitGuard(env.orgs, logger, metrics, nil),
		Feature:        middleware.NewFeatureGuard("", metrics),
		Quota:          middleware.NewQuotaGuard("", metrics),
		MonthlyMinutes: middleware.NewMonthlyMinutesGuard(metrics),
	}

	server := NewServer(Deps{
		Logger:      logger,
		Metrics:     metrics,
		Chain:       chain,
		Orgs:        env.orgs,
		Permissions: env.perms,
		PermChecker: checker,
		Billing:     env.billing,
		Usage:       env.usage,
	})
	env.handler = server.Handler()
	return env
}

// addUser registers a principal and returns the auth header value to use
func (env *testEnv) addUser(userID int64) string {
	token := fmt.Sprintf("token-user-%d", userID)
	env.resolver.principals[token] = &auth.Principal{
		ID:    userID,
		Email: fmt.Sprintf("user%d@example.com", userID),
	}
	return token
}
