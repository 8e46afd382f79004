package auth

// MsgInvalidPrincipal is the message surfaced whenever a principal is missing
// or malformed.
const MsgInvalidPrincipal = "Invalid user authentication"

// AuthenticationError indicates the principal could not be resolved. Always
// fatal to the request (401), never retried.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// NewAuthenticationError creates an AuthenticationError with the standard
// message unless a more specific one is given.
func NewAuthenticationError(message string) *AuthenticationError {
	if message == "" {
		message = MsgInvalidPrincipal
	}
	return &AuthenticationError{Message: message}
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	_, ok := err.(*AuthenticationError)
	return ok
}
