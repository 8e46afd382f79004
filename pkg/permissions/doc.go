// Package permissions implements the team-based permission model.
//
// Permissions attach to teams, not users: a user's effective access to a
// resource type within an organization is the access level their team holds
// for that type. Levels are ordered none < read < readWrite; a route
// requiring read is satisfied by read or readWrite, a route requiring
// readWrite only by readWrite. The admin team of an organization always
// resolves to readWrite for every resource type.
//
// The Checker fronts the store with a small expiring LRU cache so the
// permission guard costs at most one database lookup per team/resource pair
// per cache window.
package permissions
