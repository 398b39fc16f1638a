package reply

import (
	"net/http"

	"Moxie/internal/api/handlers"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/content"
	"Moxie/internal/core/entities"
)

// CreateReplyInput is the request body of moxie.reply.create
type CreateReplyInput struct {
	Media  *handlers.MediaInput  `json:"media,omitempty"`
	Origin *handlers.OriginInput `json:"origin,omitempty"`
	PostID string                `json:"postId"`
	Body   string                `json:"body"`
}

// CreateHandler handles reply creation requests
type CreateHandler struct {
	coordinator *content.Coordinator
}

// NewCreateHandler creates a new create handler
func NewCreateHandler(coordinator *content.Coordinator) *CreateHandler {
	return &CreateHandler{coordinator: coordinator}
}

// HandleCreate handles POST /xrpc/moxie.reply.create
func (h *CreateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateReplyInput
	if err := handlers.DecodeJSON(w, r, &input); err != nil {
		handlers.WriteDecodeError(w, err)
		return
	}
	if input.PostID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "postId is required")
		return
	}

	origin, err := input.Origin.Context()
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}
	upload, err := input.Media.Upload()
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	actor := entities.Actor{UserID: middleware.GetUserID(r)}
	reply, err := h.coordinator.CreateReply(r.Context(), actor, origin, input.PostID, input.Body, upload)
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, reply)
}
