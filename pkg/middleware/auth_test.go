package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowted/knowted/pkg/auth"
)

func TestAuthMiddleware_ResolvedPrincipalOnContext(t *testing.T) {
	principal := &auth.Principal{ID: 42, Email: "a@b.com"}
	resolver := &stubResolver{principal: principal}
	authMW := NewAuthMiddleware(resolver, testLogger(), testMetrics(), nil)

	var seen *auth.Principal
	handler := authMW.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/organizations", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(42), seen.ID)
}

func TestAuthMiddleware_FailureIs401WithStandardMessage(t *testing.T) {
	resolver := &stubResolver{err: auth.NewAuthenticationError("")}
	authMW := NewAuthMiddleware(resolver, testLogger(), testMetrics(), nil)

	called := false
	w := httptest.NewRecorder()
	authMW.Handler(okHandler(&called)).ServeHTTP(w, httptest.NewRequest("GET", "/api/organizations", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, auth.MsgInvalidPrincipal, body["error"])
}
