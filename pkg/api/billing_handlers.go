package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/knowted/knowted/pkg/billing"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/middleware"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/permissions"
)

// billingHandlers serves subscription reads and the Stripe webhook intake
type billingHandlers struct {
	billing billing.Service
	logger  *observability.Logger
}

func newBillingHandlers(deps Deps) *billingHandlers {
	return &billingHandlers{
		billing: deps.Billing,
		logger:  deps.Logger,
	}
}

func (h *billingHandlers) register(router *mux.Router, chain *middleware.Chain) {
	router.Handle("/organizations/{id}/subscription",
		chain.ProtectFunc(middleware.RouteOptions{
			Permission: middleware.RequireRead(permissions.ResourceBilling),
		}, h.getSubscription)).Methods("GET")

	// Stripe authenticates with its signature header, not a principal.
	router.Handle("/webhooks/stripe",
		chain.ProtectFunc(middleware.RouteOptions{Public: true}, h.stripeWebhook)).Methods("POST")
}

func (h *billingHandlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	orgID := contextkeys.OrgID(r.Context())
	sub, err := h.billing.GetSubscription(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to get subscription")
		httputil.WriteInternalError(w, err)
		return
	}
	if sub == nil {
		httputil.WriteNotFound(w, "no subscription found")
		return
	}
	httputil.WriteSuccess(w, sub)
}

func (h *billingHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read payload")
		return
	}

	err = h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrInvalidSignature) {
		h.logger.Warn("rejected webhook with invalid signature")
		httputil.WriteBadRequest(w, "invalid signature")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to process webhook")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"received": true})
}
