// Package orgs provides multi-tenant organization management for Knowted.
//
// # Overview
//
// This package manages organizations, teams, memberships, invitations, and
// seat accounting. An organization is the tenant boundary: the unit of
// billing, membership, and data isolation. Users join an organization through
// a team, and exactly one team per organization is the admin team.
//
// # Seats
//
// A seat is one billable membership slot. Seat usage counts active
// memberships plus pending (un-expired, unaccepted) invitations, because an
// outstanding invitation reserves a slot. Seat limits come from a fixed
// per-tier table:
//
//	personal  1 seat
//	business  5 seats
//	company   25 seats
//	custom    unbounded (contact sales)
//
// # Usage Example
//
// Seat check before inviting:
//
//	usage, err := service.ComputeSeatUsage(ctx, orgID)
//	if err == nil && usage.SeatLimit >= 0 && usage.CurrentSeats >= usage.SeatLimit {
//		return orgs.NewSeatLimitExceededError(usage, 1)
//	}
//
// # Related Packages
//
//   - pkg/permissions: team-level access control
//   - pkg/billing: subscription state consumed for plan tiers
//   - pkg/middleware: the guard chain enforcing membership and seat limits
package orgs
