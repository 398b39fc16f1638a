package routes

import (
	"Moxie/internal/api/handlers/view"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/views"

	"github.com/go-chi/chi/v5"
)

// RegisterViewRoutes registers the read endpoints backed by the view cache
// Public endpoints with optional auth for viewer-specific state (liked flags)
func RegisterViewRoutes(r chi.Router, registry *views.Registry, auth *middleware.Authenticator) {
	h := view.NewHandler(registry)

	r.With(auth.OptionalAuth).Get("/xrpc/moxie.feed.get", h.HandleFeed)
	r.With(auth.OptionalAuth).Get("/xrpc/moxie.profile.get", h.HandleProfile)
	r.With(auth.OptionalAuth).Get("/xrpc/moxie.post.getThread", h.HandleThread)
	r.With(auth.OptionalAuth).Get("/xrpc/moxie.reply.list", h.HandleReplies)

	// Failure notices belong to the signed-in viewer
	r.With(auth.RequireAuth).Get("/xrpc/moxie.view.getFailures", h.HandleFailures)
}
