package post

import (
	"net/http"

	"Moxie/internal/api/handlers"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/content"
	"Moxie/internal/core/entities"
)

// DeletePostInput is the request body of moxie.post.delete
type DeletePostInput struct {
	Origin *handlers.OriginInput `json:"origin,omitempty"`
	ID     string                `json:"id"`
}

// DeleteHandler handles post deletion requests
type DeleteHandler struct {
	coordinator *content.Coordinator
}

// NewDeleteHandler creates a new delete handler
func NewDeleteHandler(coordinator *content.Coordinator) *DeleteHandler {
	return &DeleteHandler{coordinator: coordinator}
}

// HandleDelete handles POST /xrpc/moxie.post.delete
// Deleting a post also deletes its replies, likes and media
func (h *DeleteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var input DeletePostInput
	if err := handlers.DecodeJSON(w, r, &input); err != nil {
		handlers.WriteDecodeError(w, err)
		return
	}
	if input.ID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "id is required")
		return
	}

	origin, err := input.Origin.Context()
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	actor := entities.Actor{UserID: middleware.GetUserID(r)}
	if err := h.coordinator.DeletePost(r.Context(), actor, origin, input.ID); err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{})
}
