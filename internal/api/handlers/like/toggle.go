package like

import (
	"net/http"

	"Moxie/internal/api/handlers"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/entities"
	"Moxie/internal/core/likes"
	"Moxie/internal/core/views"
)

// ToggleLikeInput is the request body of moxie.like.toggle
type ToggleLikeInput struct {
	Origin     *handlers.OriginInput `json:"origin,omitempty"`
	TargetID   string                `json:"targetId"`
	TargetType string                `json:"targetType"`
	// Wait blocks the response until the toggle settles
	Wait bool `json:"wait,omitempty"`
}

// ToggleLikeOutput is the displayed state after the optimistic flip
type ToggleLikeOutput struct {
	Target    entities.Target `json:"target"`
	Liked     bool            `json:"liked"`
	LikeCount int             `json:"likeCount"`
	Settled   bool            `json:"settled"`
}

// ToggleHandler handles like toggles
type ToggleHandler struct {
	coordinator *likes.Coordinator
	registry    *views.Registry
}

// NewToggleHandler creates a new toggle handler
func NewToggleHandler(coordinator *likes.Coordinator, registry *views.Registry) *ToggleHandler {
	return &ToggleHandler{coordinator: coordinator, registry: registry}
}

// HandleToggle handles POST /xrpc/moxie.like.toggle
//
// Responds with the optimistic state immediately unless wait is set. With wait,
// a failed toggle responds with the error after its rollback was applied.
func (h *ToggleHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var input ToggleLikeInput
	if err := handlers.DecodeJSON(w, r, &input); err != nil {
		handlers.WriteDecodeError(w, err)
		return
	}

	targetType, err := entities.ParseTargetType(input.TargetType)
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}
	target := entities.Target{Type: targetType, ID: input.TargetID}

	origin, err := input.Origin.Context()
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}
	if origin == (views.Context{}) {
		origin = views.Feed()
	}

	actor := entities.Actor{UserID: middleware.GetUserID(r)}
	pending, err := h.coordinator.Toggle(r.Context(), actor, h.registry.For(actor.UserID), origin, target)
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	settled := false
	if input.Wait {
		if err := pending.Wait(r.Context()); err != nil {
			handlers.WriteServiceError(w, err)
			return
		}
		settled = true
	}

	displayed := pending.Displayed()
	handlers.WriteJSON(w, http.StatusOK, ToggleLikeOutput{
		Target:    target,
		Liked:     displayed.Liked,
		LikeCount: displayed.LikeCount,
		Settled:   settled,
	})
}
