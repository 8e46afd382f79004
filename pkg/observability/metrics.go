package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Guard chain metrics
	GuardDecisionsTotal  *prometheus.CounterVec
	GuardLookupErrors    *prometheus.CounterVec
	SeatLimitRejections  *prometheus.CounterVec

	// Seat and usage metrics
	SeatsInUse        *prometheus.GaugeVec
	SeatLimit         *prometheus.GaugeVec
	MonthlyMinutesUsed *prometheus.GaugeVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Rate limiter metrics
	RateLimitRejections *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowted_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "knowted_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowted_guard_decisions_total",
				Help: "Guard chain decisions by guard and outcome",
			},
			[]string{"guard", "outcome"},
		),
		GuardLookupErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowted_guard_lookup_errors_total",
				Help: "Infrastructure errors during guard data lookups",
			},
			[]string{"guard"},
		),
		SeatLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowted_seat_limit_rejections_total",
				Help: "Requests rejected because the plan seat limit was reached",
			},
			[]string{"plan"},
		),
		SeatsInUse: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "knowted_seats_in_use",
				Help: "Seats in use per organization (active memberships plus pending invites)",
			},
			[]string{"organization_id"},
		),
		SeatLimit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "knowted_seat_limit",
				Help: "Plan seat limit per organization",
			},
			[]string{"organization_id"},
		),
		MonthlyMinutesUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "knowted_monthly_minutes_used",
				Help: "Call minutes used in the current billing period per organization",
			},
			[]string{"organization_id"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "knowted_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "knowted_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowted_rate_limit_rejections_total",
				Help: "Requests rejected by the per-organization rate limiter",
			},
			[]string{"organization_id"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GuardDecisionsTotal,
		m.GuardLookupErrors,
		m.SeatLimitRejections,
		m.SeatsInUse,
		m.SeatLimit,
		m.MonthlyMinutesUsed,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.RateLimitRejections,
	)

	return m
}

// Guard decision outcomes
const (
	OutcomeAllow  = "allow"
	OutcomeDeny   = "deny"
	OutcomeBypass = "bypass"
)

// Guard names used as metric label values
const (
	GuardAuth           = "auth"
	GuardMembership     = "membership"
	GuardPermission     = "permission"
	GuardSeatLimit      = "seat_limit"
	GuardFeature        = "feature"
	GuardQuota          = "quota"
	GuardMonthlyMinutes = "monthly_minutes"
	GuardRateLimit      = "rate_limit"
)

// ObserveGuardDecision records a single guard decision
func (m *Metrics) ObserveGuardDecision(guard, outcome string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(guard, outcome).Inc()
}

// ObserveGuardLookupError records an infrastructure failure inside a guard
func (m *Metrics) ObserveGuardLookupError(guard string) {
	if m == nil {
		return
	}
	m.GuardLookupErrors.WithLabelValues(guard).Inc()
}

// ObserveSeatUsage records current seat usage for an organization
func (m *Metrics) ObserveSeatUsage(orgID int64, current, limit int) {
	if m == nil {
		return
	}
	label := strconv.FormatInt(orgID, 10)
	m.SeatsInUse.WithLabelValues(label).Set(float64(current))
	if limit >= 0 {
		m.SeatLimit.WithLabelValues(label).Set(float64(limit))
	}
}

// Handler returns the Prometheus metrics HTTP handler for a registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// HTTPMetricsMiddleware records request counts and latencies
func (m *Metrics) HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
