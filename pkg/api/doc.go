// Package api wires the HTTP surface: the router, the guard chain, and the
// handlers for organizations, teams, members, invites, permissions, seats,
// usage and webhook intake.
//
// Every route is registered through middleware.Chain.Protect with explicit
// RouteOptions, so a route's guard configuration is visible at its
// registration site. Handlers assume the guards already ran: an
// organization-scoped handler reads the organization id and membership from
// the context and never re-checks access.
package api
