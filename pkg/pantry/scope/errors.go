package scope

import "errors"

var (
	// ErrUnauthorized is returned when no identity was resolved for the caller.
	ErrUnauthorized = errors.New("authentication required")
	// ErrNotFound covers both missing records and records owned by someone else.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a missing or malformed payload field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Required returns the ValidationError for an absent field.
func Required(field string) error {
	return &ValidationError{Field: field, Message: "This field is required."}
}

// Invalid returns a ValidationError carrying msg.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
