package views

import "errors"

var (
	// ErrInvalidContext is returned for malformed view contexts
	ErrInvalidContext = errors.New("invalid view context")

	// ErrNotDisplayed is returned when a target is not shown in any cached view
	ErrNotDisplayed = errors.New("target is not displayed in any view")
)
