package services

import "errors"

var (
	// ErrInvalidCredentials is returned for both unknown usernames and wrong
	// passwords so callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNoActor is returned when a mutating call carries no session identity.
	ErrNoActor = errors.New("an authenticated user is required")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
