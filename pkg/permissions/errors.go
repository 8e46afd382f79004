package permissions

import "fmt"

// PermissionDeniedError indicates a team's access level does not meet the
// level a route requires
type PermissionDeniedError struct {
	ResourceType ResourceType `json:"resourceType"`
	Required     AccessLevel  `json:"required"`
	Held         AccessLevel  `json:"held"`
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s requires %s, team holds %s",
		e.ResourceType, e.Required, e.Held)
}

// NewPermissionDeniedError creates a new PermissionDeniedError
func NewPermissionDeniedError(resource ResourceType, required, held AccessLevel) *PermissionDeniedError {
	return &PermissionDeniedError{ResourceType: resource, Required: required, Held: held}
}

// IsPermissionDenied checks if an error is a PermissionDeniedError
func IsPermissionDenied(err error) bool {
	_, ok := err.(*PermissionDeniedError)
	return ok
}
