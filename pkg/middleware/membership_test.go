package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowted/knowted/pkg/auth"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/orgs"
)

func membershipFixture() *stubMembers {
	return &stubMembers{memberships: map[int64]map[int64]*orgs.Membership{
		123: {42: {ID: 1, UserID: 42, OrganizationID: 123, TeamID: 7, IsActive: true}},
	}}
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestMembershipGuard_ActiveMemberPasses(t *testing.T) {
	members := membershipFixture()
	guard := NewMembershipGuard(members, testLogger(), testMetrics(), nil)

	var gotOrgID int64
	var gotMembership *orgs.Membership
	handler := guard.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrgID = contextkeys.OrgID(r.Context())
		gotMembership = MembershipFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/api/reports?organization_id=123", nil)
	w := serveWithPrincipal(handler, r, &auth.Principal{ID: 42})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(123), gotOrgID)
	require.NotNil(t, gotMembership)
	assert.Equal(t, int64(7), gotMembership.TeamID)
}

func TestMembershipGuard_ForeignOrgRejected(t *testing.T) {
	members := membershipFixture()
	guard := NewMembershipGuard(members, testLogger(), testMetrics(), nil)

	called := false
	handler := guard.Handler(okHandler(&called))

	// Same principal, different organization.
	r := httptest.NewRequest("GET", "/api/reports?organization_id=999", nil)
	w := serveWithPrincipal(handler, r, &auth.Principal{ID: 42})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
	assert.Equal(t, orgs.MsgNoAccess, errorBody(t, w))
}

func TestMembershipGuard_MissingOrgIDRejectedBeforeLookup(t *testing.T) {
	members := membershipFixture()
	guard := NewMembershipGuard(members, testLogger(), testMetrics(), nil)

	called := false
	handler := guard.Handler(okHandler(&called))

	r := httptest.NewRequest("GET", "/api/reports", nil)
	w := serveWithPrincipal(handler, r, &auth.Principal{ID: 42})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
	assert.Equal(t, orgs.MsgOrgIDRequired, errorBody(t, w))
	assert.Zero(t, members.lookups)
}

func TestMembershipGuard_LookupErrorFailsClosed(t *testing.T) {
	members := &stubMembers{err: errors.New("connection refused")}
	guard := NewMembershipGuard(members, testLogger(), testMetrics(), nil)

	called := false
	handler := guard.Handler(okHandler(&called))

	r := httptest.NewRequest("GET", "/api/reports?organization_id=123", nil)
	w := serveWithPrincipal(handler, r, &auth.Principal{ID: 42})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
	assert.Equal(t, orgs.MsgNoAccess, errorBody(t, w))
}

func TestMembershipGuard_NoPrincipalIs401(t *testing.T) {
	guard := NewMembershipGuard(membershipFixture(), testLogger(), testMetrics(), nil)

	called := false
	w := httptest.NewRecorder()
	// Guard invoked without AuthMiddleware upstream.
	guard.Handler(okHandler(&called)).
		ServeHTTP(w, httptest.NewRequest("GET", "/api/reports?organization_id=123", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestMembershipGuard_RepeatedChecksAreIdempotent(t *testing.T) {
	members := membershipFixture()
	guard := NewMembershipGuard(members, testLogger(), testMetrics(), nil)
	handler := guard.Handler(okHandler(nil))

	for i := 0; i < 3; i++ {
		r := httptest.NewRequest("GET", "/api/reports?organization_id=123", nil)
		w := serveWithPrincipal(handler, r, &auth.Principal{ID: 42})
		assert.Equal(t, http.StatusOK, w.Code)
	}
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest("GET", "/api/reports?organization_id=999", nil)
		w := serveWithPrincipal(handler, r, &auth.Principal{ID: 42})
		assert.Equal(t, http.StatusForbidden, w.Code)
	}
	assert.Equal(t, 6, members.lookups)
}
