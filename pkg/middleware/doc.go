// Package middleware implements the guard chain that gates every API request.
//
// # CRITICAL: Guard Ordering Requirements
//
// Guards have strict ordering dependencies. Incorrect order will cause
// checks to run against an unresolved organization (denying everything) or
// to be skipped entirely.
//
// REQUIRED ORDERING (outer to inner):
//  1. AuthMiddleware - resolves the principal from bearer token or API key
//  2. MembershipGuard - resolves the organization id and confirms membership
//  3. PermissionGuard - checks the team's access level (opt-in per route)
//  4. SeatLimitGuard - checks seat capacity (seat-consuming routes only)
//  5. FeatureGuard / QuotaGuard / MonthlyMinutesGuard - currently pass-through
//
// The Chain type composes guards in this order from per-route options; use
// it instead of stacking guards by hand.
//
// Failure semantics differ per guard and are deliberate:
//   - MembershipGuard and PermissionGuard fail CLOSED: an infrastructure
//     error during their lookup denies the request.
//   - SeatLimitGuard fails OPEN: an infrastructure error during seat
//     accounting logs and allows, favoring availability over billing
//     enforcement.
//
// Do not unify these branches through a shared error handler.
package middleware
