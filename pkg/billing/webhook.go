package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureTolerance is the maximum age of a signed webhook payload. Stripe
// recommends five minutes to limit replay.
const SignatureTolerance = 5 * time.Minute

// ErrInvalidSignature is returned when a webhook signature does not verify
var ErrInvalidSignature = fmt.Errorf("invalid webhook signature")

// VerifySignature checks a Stripe-Signature header (t=<unix>,v1=<hmac>)
// against the payload using the endpoint secret.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}
	age := now.Sub(time.Unix(timestamp, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return fmt.Errorf("webhook timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// HandleWebhook verifies the signature and applies the event to the local
// subscription mirror. Event types outside the handled set are ignored.
func (s *PostgresService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("webhook intake disabled: no secret configured")
	}
	if err := VerifySignature(payload, signatureHeader, s.webhookSecret, time.Now()); err != nil {
		return err
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook: %w", err)
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return s.applySubscription(ctx, event.Data.Object)
	case "customer.subscription.deleted":
		return s.updateSubscriptionStatus(ctx, event.Data.Object.ID, StatusCanceled)
	case "invoice.paid":
		return s.updateSubscriptionStatus(ctx, event.Data.Object.Subscription, StatusActive)
	case "invoice.payment_failed":
		return s.updateSubscriptionStatus(ctx, event.Data.Object.Subscription, StatusPastDue)
	default:
		return nil
	}
}

func (s *PostgresService) applySubscription(ctx context.Context, obj WebhookObject) error {
	orgID, err := s.orgIDForCustomer(ctx, obj.Customer)
	if err != nil {
		return err
	}

	status := SubscriptionStatus(obj.Status)
	if !ValidStatus(status) {
		return fmt.Errorf("unknown subscription status: %s", obj.Status)
	}

	plan := ""
	seats := obj.Quantity
	if len(obj.Items.Data) > 0 {
		plan = obj.Items.Data[0].Price.LookupKey
		if seats == 0 {
			seats = obj.Items.Data[0].Quantity
		}
	}
	if plan == "" {
		return fmt.Errorf("subscription %s has no plan lookup key", obj.ID)
	}

	sub := &OrganizationSubscription{
		OrganizationID:       orgID,
		Plan:                 plan,
		SeatsCount:           seats,
		Status:               status,
		StripeCustomerID:     obj.Customer,
		StripeSubscriptionID: obj.ID,
		CurrentPeriodStart:   time.Unix(obj.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(obj.CurrentPeriodEnd, 0).UTC(),
	}
	return s.UpsertSubscription(ctx, sub)
}
