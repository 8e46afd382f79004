package billing

import (
	"context"
	"time"
)

// SubscriptionStatus mirrors Stripe's subscription status enum
type SubscriptionStatus string

const (
	StatusActive            SubscriptionStatus = "active"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusUnpaid            SubscriptionStatus = "unpaid"
	StatusPaused            SubscriptionStatus = "paused"
)

var subscriptionStatuses = map[SubscriptionStatus]bool{
	StatusActive:            true,
	StatusCanceled:          true,
	StatusPastDue:           true,
	StatusTrialing:          true,
	StatusIncomplete:        true,
	StatusIncompleteExpired: true,
	StatusUnpaid:            true,
	StatusPaused:            true,
}

// ValidStatus reports whether s is a known subscription status
func ValidStatus(s SubscriptionStatus) bool {
	return subscriptionStatuses[s]
}

// Usable reports whether a subscription in this status grants its plan's
// entitlements. past_due keeps access while Stripe retries payment.
func (s SubscriptionStatus) Usable() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue:
		return true
	default:
		return false
	}
}

// OrganizationSubscription is the local mirror of an organization's Stripe
// subscription. SeatsCount is Stripe's billed quantity and is display-only;
// seat enforcement derives its limit from Plan.
type OrganizationSubscription struct {
	ID                   int64              `json:"id"`
	OrganizationID       int64              `json:"organizationId"`
	Plan                 string             `json:"plan"`
	SeatsCount           int                `json:"seatsCount"`
	Status               SubscriptionStatus `json:"status"`
	StripeCustomerID     string             `json:"stripeCustomerId"`
	StripeSubscriptionID string             `json:"stripeSubscriptionId"`
	CurrentPeriodStart   time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time          `json:"currentPeriodEnd"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// WebhookEvent is the subset of a Stripe event envelope the intake reads
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object WebhookObject `json:"object"`
	} `json:"data"`
}

// WebhookObject is the subset of a Stripe subscription/invoice object the
// intake reads. Subscription and invoice events share the envelope; unused
// fields stay zero.
type WebhookObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Subscription       string `json:"subscription"`
	Status             string `json:"status"`
	Quantity           int    `json:"quantity"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Quantity int `json:"quantity"`
			Price    struct {
				LookupKey string `json:"lookup_key"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// Service reads and maintains the subscription mirror
type Service interface {
	// GetSubscription returns the organization's most recent subscription,
	// or nil when none exists
	GetSubscription(ctx context.Context, orgID int64) (*OrganizationSubscription, error)

	// UpsertSubscription creates or replaces the mirror row keyed by the
	// Stripe subscription id
	UpsertSubscription(ctx context.Context, sub *OrganizationSubscription) error

	// HandleWebhook verifies the signature and applies the event
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}
