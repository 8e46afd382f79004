// Package usage maintains the append-only ledger of billable actions.
//
// Usage events are only ever inserted, never updated or deleted; every
// aggregate is recomputed from the ledger. Monthly minutes usage is the sum
// of call_minutes_used quantities since the later of the billing period
// start and the last manual reset. Resets do not touch event rows; they are
// themselves append-only audit records, so the full history stays
// reconstructible.
package usage
