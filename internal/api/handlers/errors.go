package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"Moxie/internal/core/content"
	"Moxie/internal/core/entities"
	"Moxie/internal/core/likes"
	"Moxie/internal/core/media"
	"Moxie/internal/core/views"
)

// WriteError writes a standardized JSON error response
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   errorType,
		"message": message,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// WriteServiceError maps core errors to HTTP responses.
// Error names are UpperCamelCase and stable; clients switch on them.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, media.ErrPayloadTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "PayloadTooLarge",
			"Media must be smaller than 5MB")

	case errors.Is(err, content.ErrEmptyBody):
		WriteError(w, http.StatusBadRequest, "EmptyBody", "Body must not be empty")

	case errors.Is(err, content.ErrBodyTooLong):
		WriteError(w, http.StatusBadRequest, "BodyTooLong", "Body must be at most 500 characters")

	case content.IsValidationError(err),
		errors.Is(err, entities.ErrInvalidTarget),
		errors.Is(err, views.ErrInvalidContext),
		errors.Is(err, media.ErrInvalidKey):
		WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())

	case errors.Is(err, likes.ErrAuthRequired):
		WriteError(w, http.StatusUnauthorized, "AuthRequired", likes.ErrAuthRequired.Error())

	case errors.Is(err, entities.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")

	case errors.Is(err, entities.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "NotAuthorized",
			"You can only delete your own posts and replies")

	case errors.Is(err, entities.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NotFound", "Post or reply not found")

	case errors.Is(err, views.ErrNotDisplayed):
		WriteError(w, http.StatusNotFound, "NotDisplayed", err.Error())

	case errors.Is(err, likes.ErrCancelled):
		WriteError(w, http.StatusConflict, "Cancelled", likes.ErrCancelled.Error())

	case entities.IsNetworkError(err), media.IsStorageError(err):
		// Don't leak backend details to clients
		log.Printf("Upstream failure in handler: %v", err)
		WriteError(w, http.StatusBadGateway, "UpstreamUnavailable",
			"A backing service is unavailable. Please try again.")

	default:
		log.Printf("Unexpected error in handler: %v", err)
		WriteError(w, http.StatusInternalServerError, "InternalServerError",
			"An internal error occurred")
	}
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log encoding errors but don't return error response (headers already sent)
		log.Printf("Failed to encode response: %v", err)
	}
}
