// Package storage opens the backing stores and owns the schema.
//
// PostgreSQL holds all durable state (identities, organizations,
// memberships, invites, permissions, subscriptions, the usage ledger and the
// audit trail); Redis backs only the distributed rate limiter and is
// optional. Migrations are versioned SQL applied in order at startup.
package storage
