package permissions

import (
	"context"
	"time"
)

// ResourceType identifies a guarded resource type
type ResourceType string

const (
	ResourceReports      ResourceType = "reports"
	ResourcePermissions  ResourceType = "permissions"
	ResourceTeams        ResourceType = "teams"
	ResourceMeetingTypes ResourceType = "meeting_types"
	ResourceReportTypes  ResourceType = "report_types"
	ResourceOrganization ResourceType = "organization"
	ResourceUsers        ResourceType = "users"
	ResourceCalendar     ResourceType = "calendar"
	ResourceBilling      ResourceType = "billing"
)

// resourceTypes is the closed set of valid resource types
var resourceTypes = map[ResourceType]bool{
	ResourceReports:      true,
	ResourcePermissions:  true,
	ResourceTeams:        true,
	ResourceMeetingTypes: true,
	ResourceReportTypes:  true,
	ResourceOrganization: true,
	ResourceUsers:        true,
	ResourceCalendar:     true,
	ResourceBilling:      true,
}

// ValidResourceType reports whether rt is a known resource type
func ValidResourceType(rt ResourceType) bool {
	return resourceTypes[rt]
}

// AccessLevel is the granularity of access a team holds for a resource type
type AccessLevel string

const (
	AccessNone      AccessLevel = "none"
	AccessRead      AccessLevel = "read"
	AccessReadWrite AccessLevel = "readWrite"
)

// rank orders access levels: none < read < readWrite. Unknown levels rank
// below none so a corrupt row can never grant access.
func (l AccessLevel) rank() int {
	switch l {
	case AccessNone:
		return 0
	case AccessRead:
		return 1
	case AccessReadWrite:
		return 2
	default:
		return -1
	}
}

// Satisfies reports whether the level meets or exceeds the required level
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	return l.rank() >= required.rank() && l.rank() >= 0
}

// ValidAccessLevel reports whether l is a known access level
func ValidAccessLevel(l AccessLevel) bool {
	return l.rank() >= 0
}

// Permission grants a team an access level over a resource type. ResourceID,
// when set, scopes the grant to a single resource instance; nil applies it to
// the resource type org-wide.
type Permission struct {
	ID           int64        `json:"id"`
	TeamID       int64        `json:"teamId"`
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   *int64       `json:"resourceId,omitempty"`
	AccessLevel  AccessLevel  `json:"accessLevel"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// SetPermissionRequest is the request body for granting or updating a
// team permission
type SetPermissionRequest struct {
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   *int64       `json:"resourceId,omitempty"`
	AccessLevel  AccessLevel  `json:"accessLevel"`
}

// Store persists team permissions
type Store interface {
	// GetTeamAccessLevel resolves the effective org-wide access level a team
	// holds for a resource type. The admin team always resolves to readWrite;
	// a team with no grant resolves to none.
	GetTeamAccessLevel(ctx context.Context, teamID int64, resource ResourceType) (AccessLevel, error)

	// ListTeamPermissions returns all permission grants for a team
	ListTeamPermissions(ctx context.Context, teamID int64) ([]*Permission, error)

	// SetTeamPermission creates or updates a team's org-wide grant.
	// Instance-scoped requests (ResourceID set) are rejected until access
	// resolution covers scoped rows.
	SetTeamPermission(ctx context.Context, teamID int64, req *SetPermissionRequest) error

	// DeleteTeamPermission removes a grant
	DeleteTeamPermission(ctx context.Context, teamID int64, resource ResourceType) error
}
