package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/orgs"
)

func orgScopedRequest(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	return r.WithContext(contextkeys.WithOrgID(r.Context(), 123))
}

func TestSeatLimitGuard_UnderLimitPasses(t *testing.T) {
	seats := &stubSeats{usage: &orgs.SeatUsage{
		CurrentSeats: 3, SeatLimit: 5, PlanTier: orgs.TierBusiness,
	}}
	guard := NewSeatLimitGuard(seats, testLogger(), testMetrics(), nil)

	called := false
	w := httptest.NewRecorder()
	guard.Handler(okHandler(&called)).ServeHTTP(w, orgScopedRequest("POST", "/api/invites"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestSeatLimitGuard_AtLimitRejectedWithUpgradeGuidance(t *testing.T) {
	seats := &stubSeats{usage: &orgs.SeatUsage{
		CurrentSeats: 5, SeatLimit: 5, PlanTier: orgs.TierBusiness,
	}}
	guard := NewSeatLimitGuard(seats, testLogger(), testMetrics(), nil)

	called := false
	w := httptest.NewRecorder()
	guard.Handler(okHandler(&called)).ServeHTTP(w, orgScopedRequest("POST", "/api/invites"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SEAT_LIMIT_EXCEEDED", body["error"])
	assert.EqualValues(t, 5, body["currentSeats"])
	assert.EqualValues(t, 5, body["currentSeatLimit"])
	assert.Equal(t, "business", body["currentPlan"])
	assert.Equal(t, "company", body["recommendedPlan"])
	assert.NotEmpty(t, body["upgradeReason"])
}

func TestSeatLimitGuard_LookupErrorFailsOpen(t *testing.T) {
	seats := &stubSeats{err: errors.New("connection refused")}
	guard := NewSeatLimitGuard(seats, testLogger(), testMetrics(), nil)

	called := false
	w := httptest.NewRecorder()
	guard.Handler(okHandler(&called)).ServeHTTP(w, orgScopedRequest("POST", "/api/invites"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestSeatLimitGuard_NoOrgIDFailsOpen(t *testing.T) {
	seats := &stubSeats{usage: &orgs.SeatUsage{CurrentSeats: 5, SeatLimit: 5, PlanTier: orgs.TierBusiness}}
	guard := NewSeatLimitGuard(seats, testLogger(), testMetrics(), nil)

	called := false
	w := httptest.NewRecorder()
	guard.Handler(okHandler(&called)).ServeHTTP(w, httptest.NewRequest("POST", "/api/invites", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Zero(t, seats.lookups)
}

func TestSeatLimitGuard_CustomTierUnlimited(t *testing.T) {
	seats := &stubSeats{usage: &orgs.SeatUsage{
		CurrentSeats: 900, SeatLimit: orgs.UnlimitedSeats, PlanTier: orgs.TierCustom,
	}}
	guard := NewSeatLimitGuard(seats, testLogger(), testMetrics(), nil)

	called := false
	w := httptest.NewRecorder()
	guard.Handler(okHandler(&called)).ServeHTTP(w, orgScopedRequest("POST", "/api/invites"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
