package post

import (
	"net/http"

	"Moxie/internal/api/handlers"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/content"
	"Moxie/internal/core/entities"
)

// CreatePostInput is the request body of moxie.post.create
type CreatePostInput struct {
	Media  *handlers.MediaInput  `json:"media,omitempty"`
	Origin *handlers.OriginInput `json:"origin,omitempty"`
	Body   string                `json:"body"`
}

// CreateHandler handles post creation requests
type CreateHandler struct {
	coordinator *content.Coordinator
}

// NewCreateHandler creates a new create handler
func NewCreateHandler(coordinator *content.Coordinator) *CreateHandler {
	return &CreateHandler{coordinator: coordinator}
}

// HandleCreate handles POST /xrpc/moxie.post.create
func (h *CreateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreatePostInput
	if err := handlers.DecodeJSON(w, r, &input); err != nil {
		handlers.WriteDecodeError(w, err)
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
	post, err := h.coordinator.CreatePost(r.Context(), actor, origin, input.Body, upload)
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, post)
}
