package middleware

import (
	"net/http"

	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/contextkeys"
	"github.com/knowted/knowted/pkg/httputil"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
)

// SeatLimitGuard rejects seat-consuming operations once an organization's
// plan seat limit is reached. Attach it only to routes that consume seats
// (invite creation); everything else skips it.
//
// This guard fails OPEN, unlike the membership and permission guards: when
// seat usage cannot be computed, or when no organization id reached the
// context, the request is allowed and the failure is logged. Billing
// enforcement is not worth an outage.
type SeatLimitGuard struct {
	seats    orgs.SeatAccountant
	logger   *observability.Logger
	metrics  *observability.Metrics
	recorder audit.Recorder
}

// NewSeatLimitGuard creates a new seat limit guard
func NewSeatLimitGuard(seats orgs.SeatAccountant, logger *observability.Logger, metrics *observability.Metrics, recorder audit.Recorder) *SeatLimitGuard {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &SeatLimitGuard{
		seats:    seats,
		logger:   logger,
		metrics:  metrics,
		recorder: recorder,
	}
}

// Handler wraps a seat-consuming HTTP handler with the capacity check. The
// check requires at least one free seat; handlers performing bulk operations
// cap their batch at the remaining availability themselves.
func (g *SeatLimitGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := contextkeys.OrgID(r.Context())
		if orgID == 0 {
			// No resolved organization means nothing to enforce against.
			g.metrics.ObserveGuardDecision(observability.GuardSeatLimit, observability.OutcomeBypass)
			next.ServeHTTP(w, r)
			return
		}

		usage, err := g.seats.ComputeSeatUsage(r.Context(), orgID)
		if err != nil {
			// Fail open: log and allow.
			g.logger.WithError(err).
				WithField("organization_id", orgID).
				Error("seat usage lookup failed, allowing request")
			g.metrics.ObserveGuardLookupError(observability.GuardSeatLimit)
			g.metrics.ObserveGuardDecision(observability.GuardSeatLimit, observability.OutcomeAllow)
			next.ServeHTTP(w, r)
			return
		}

		g.metrics.ObserveSeatUsage(orgID, usage.CurrentSeats, usage.SeatLimit)

		if !usage.HasCapacity(1) {
			g.reject(w, r, orgID, usage)
			return
		}

		g.metrics.ObserveGuardDecision(observability.GuardSeatLimit, observability.OutcomeAllow)
		next.ServeHTTP(w, r)
	})
}

func (g *SeatLimitGuard) reject(w http.ResponseWriter, r *http.Request, orgID int64, usage *orgs.SeatUsage) {
	seatErr := orgs.NewSeatLimitExceededError(usage, 1)

	g.metrics.ObserveGuardDecision(observability.GuardSeatLimit, observability.OutcomeDeny)
	if m := g.metrics; m != nil && m.SeatLimitRejections != nil {
		m.SeatLimitRejections.WithLabelValues(string(usage.PlanTier)).Inc()
	}

	event := &audit.Event{
		EventType:      audit.EventSeatLimitExceeded,
		Status:         audit.StatusDenied,
		OrganizationID: &orgID,
		RequestID:      contextkeys.RequestID(r.Context()),
		Method:         r.Method,
		Path:           r.URL.Path,
		Metadata: map[string]interface{}{
			"currentPlan":      string(seatErr.CurrentPlan),
			"currentSeats":     seatErr.CurrentSeats,
			"currentSeatLimit": seatErr.CurrentSeatLimit,
		},
	}
	if principal := PrincipalFromContext(r.Context()); principal != nil {
		event.UserID = &principal.ID
	}
	if err := g.recorder.Record(r.Context(), event); err != nil {
		g.logger.WithError(err).Warn("failed to record audit event")
	}

	WriteSeatLimitError(w, seatErr)
}

// WriteSeatLimitError writes the structured 403 body for a seat limit
// rejection: the machine-readable error code plus the upgrade guidance the
// client renders.
func WriteSeatLimitError(w http.ResponseWriter, seatErr *orgs.SeatLimitExceededError) {
	httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
		"error":                orgs.ErrorCodeSeatLimitExceeded,
		"currentPlan":          seatErr.CurrentPlan,
		"currentSeats":         seatErr.CurrentSeats,
		"currentSeatLimit":     seatErr.CurrentSeatLimit,
		"recommendedPlan":      seatErr.RecommendedPlan,
		"recommendedSeatLimit": seatErr.RecommendedSeatLimit,
		"upgradeReason":        seatErr.UpgradeReason,
	})
}
