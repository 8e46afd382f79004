package middleware

import (
	"net/http"

	"github.com/knowted/knowted/pkg/observability"
)

// The feature, quota and monthly-minutes guards are declared product
// surface without enforcement yet: they always allow. They keep the same
// constructor-plus-Handler shape as the enforcing guards so call sites do
// not change when enforcement lands, and they emit bypass metrics so the
// pass-through volume stays visible.

// FeatureGuard gates routes behind a plan feature flag. Not enforced.
type FeatureGuard struct {
	feature string
	metrics *observability.Metrics
}

// NewFeatureGuard creates a feature guard for the named feature flag
func NewFeatureGuard(feature string, metrics *observability.Metrics) *FeatureGuard {
	return &FeatureGuard{feature: feature, metrics: metrics}
}

// Handler passes every request through
func (g *FeatureGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.metrics.ObserveGuardDecision(observability.GuardFeature, observability.OutcomeBypass)
		next.ServeHTTP(w, r)
	})
}

// QuotaGuard gates routes behind a plan quota. Not enforced.
type QuotaGuard struct {
	quota   string
	metrics *observability.Metrics
}

// NewQuotaGuard creates a quota guard for the named quota
func NewQuotaGuard(quota string, metrics *observability.Metrics) *QuotaGuard {
	return &QuotaGuard{quota: quota, metrics: metrics}
}

// Handler passes every request through
func (g *QuotaGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.metrics.ObserveGuardDecision(observability.GuardQuota, observability.OutcomeBypass)
		next.ServeHTTP(w, r)
	})
}

// MonthlyMinutesGuard gates call-minute-consuming routes behind the plan's
// monthly minutes allowance. Not enforced; usage is recorded and displayed
// but never blocks.
type MonthlyMinutesGuard struct {
	metrics *observability.Metrics
}

// NewMonthlyMinutesGuard creates a monthly minutes guard
func NewMonthlyMinutesGuard(metrics *observability.Metrics) *MonthlyMinutesGuard {
	return &MonthlyMinutesGuard{metrics: metrics}
}

// Handler passes every request through
func (g *MonthlyMinutesGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.metrics.ObserveGuardDecision(observability.GuardMonthlyMinutes, observability.OutcomeBypass)
		next.ServeHTTP(w, r)
	})
}
