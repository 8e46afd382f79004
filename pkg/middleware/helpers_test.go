package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/knowted/knowted/pkg/auth"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
	"github.com/knowted/knowted/pkg/permissions"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

type stubResolver struct {
	principal *auth.Principal
	err       error
}

func (s *stubResolver) Resolve(context.Context, *http.Request) (*auth.Principal, error) {
	return s.principal, s.err
}

type stubMembers struct {
	memberships map[int64]map[int64]*orgs.Membership // orgID -> userID -> membership
	err         error
	lookups     int
}

func (s *stubMembers) GetMembership(_ context.Context, orgID, userID int64) (*orgs.Membership, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	return s.memberships[orgID][userID], nil
}

type stubAccess struct {
	err     error
	lookups int
}

func (s *stubAccess) Check(context.Context, int64, permissions.ResourceType, permissions.AccessLevel) error {
	s.lookups++
	return s.err
}

type stubSeats struct {
	usage   *orgs.SeatUsage
	err     error
	lookups int
}

func (s *stubSeats) ComputeSeatUsage(context.Context, int64) (*orgs.SeatUsage, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	return s.usage, nil
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serveWithPrincipal(h http.Handler, r *http.Request, principal *auth.Principal) *httptest.ResponseRecorder {
	resolver := &stubResolver{principal: principal}
	authMW := NewAuthMiddleware(resolver, testLogger(), testMetrics(), nil)
	w := httptest.NewRecorder()
	authMW.Handler(h).ServeHTTP(w, r)
	return w
}
