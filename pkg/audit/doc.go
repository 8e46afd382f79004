// Package audit records the authorization trail.
//
// Every denial the guard chain produces (failed authentication, membership
// and permission denials, seat-limit rejections) and every sensitive
// administrative action (usage resets, membership changes, invite lifecycle)
// is written as an append-only row. Recording is best-effort: an audit write
// failure is logged but never fails the request that triggered it.
package audit
