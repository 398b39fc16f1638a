package reply

import (
	"net/http"

	"Moxie/internal/api/handlers"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/content"
	"Moxie/internal/core/entities"
)

// DeleteReplyInput is the request body of moxie.reply.delete
type DeleteReplyInput struct {
	Origin *handlers.OriginInput `json:"origin,omitempty"`
	ID     string                `json:"id"`
}

// DeleteHandler handles reply deletion requests
type DeleteHandler struct {
	coordinator *content.Coordinator
}

// NewDeleteHandler creates a new delete handler
func NewDeleteHandler(coordinator *content.Coordinator) *DeleteHandler {
	return &DeleteHandler{coordinator: coordinator}
}

// HandleDelete handles POST /xrpc/moxie.reply.delete
func (h *DeleteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var input DeleteReplyInput
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
	if err := h.coordinator.DeleteReply(r.Context(), actor, origin, input.ID); err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{})
}
