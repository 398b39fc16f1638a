package likes

import (
	"errors"

	"Moxie/internal/core/entities"
)

var (
	// ErrAuthRequired is returned instead of a mutation when the actor is anonymous.
	// Callers should prompt for sign-in.
	ErrAuthRequired = errors.New("sign in to like posts and replies")

	// ErrCancelled resolves intents queued behind an intent that failed; the
	// rollback of the failed intent already restored their displayed state.
	ErrCancelled = errors.New("like toggle cancelled after an earlier failure")
)

// failureMessage is the notice shown in the originating view
func failureMessage(err error) string {
	switch {
	case entities.IsNetworkError(err):
		return "Could not reach the server. Your like was not saved."
	case errors.Is(err, entities.ErrNotFound):
		return "This item no longer exists."
	case errors.Is(err, entities.ErrUnauthenticated):
		return "Your session has expired. Sign in to like posts and replies."
	default:
		return "Your like could not be saved."
	}
}
