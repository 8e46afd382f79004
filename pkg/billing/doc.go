// Package billing consumes the Stripe-driven subscription feed.
//
// Knowted does not compute invoices or amounts; Stripe does. This package
// keeps a local organization_subscriptions mirror current (one logical
// subscription per organization) so the seat limit guard and the usage
// accounting can read plan, seat count, status and period bounds without
// calling out to Stripe on the request path. The mirror is updated by the
// webhook intake, which verifies Stripe's HMAC signature before applying
// subscription lifecycle and invoice events.
package billing
