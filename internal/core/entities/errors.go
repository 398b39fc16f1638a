package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by every Store implementation
var (
	// ErrNotFound is returned when a post, reply or parent post does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when a mutation has no authenticated caller
	ErrUnauthenticated = errors.New("authentication required")

	// ErrUnauthorized is returned when the caller may not mutate the entity
	// (e.g. deleting someone else's post)
	ErrUnauthorized = errors.New("not authorized")

	// ErrInvalidTarget is returned for malformed like/delete targets
	ErrInvalidTarget = errors.New("invalid target")
)

// NetworkError represents a transport failure between the caller and the store
type NetworkError struct {
	Err error
	Op  string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps err as a transport failure of op
func NewNetworkError(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// IsNetworkError checks if err is (or wraps) a NetworkError
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsNotFound checks if err is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
