package content

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBody is returned when the trimmed body has no characters
	ErrEmptyBody = errors.New("body must not be empty")

	// ErrBodyTooLong is returned when the body exceeds MaxBodyGraphemes
	ErrBodyTooLong = errors.New("body must be at most 500 characters")
)

// ValidationError is a request rejected before any network call
type ValidationError struct {
	Err     error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
