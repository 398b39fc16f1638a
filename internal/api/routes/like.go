package routes

import (
	"Moxie/internal/api/handlers/like"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/likes"
	"Moxie/internal/core/views"

	"github.com/go-chi/chi/v5"
)

// RegisterLikeRoutes registers like endpoints on the router
func RegisterLikeRoutes(r chi.Router, coordinator *likes.Coordinator, registry *views.Registry, auth *middleware.Authenticator) {
	toggleHandler := like.NewToggleHandler(coordinator, registry)

	// moxie.like.toggle - optimistic like/unlike of a post or reply
	r.With(auth.RequireAuth).Post("/xrpc/moxie.like.toggle", toggleHandler.HandleToggle)
}
