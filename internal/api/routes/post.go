package routes

import (
	"Moxie/internal/api/handlers/post"
	"Moxie/internal/api/handlers/reply"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/content"

	"github.com/go-chi/chi/v5"
)

// RegisterPostRoutes registers post and reply mutation endpoints on the router
// Implements moxie.post.* and moxie.reply.* procedures
func RegisterPostRoutes(r chi.Router, coordinator *content.Coordinator, auth *middleware.Authenticator) {
	// Initialize handlers
	createPostHandler := post.NewCreateHandler(coordinator)
	deletePostHandler := post.NewDeleteHandler(coordinator)
	createReplyHandler := reply.NewCreateHandler(coordinator)
	deleteReplyHandler := reply.NewDeleteHandler(coordinator)

	// Procedure endpoints (POST) - require authentication
	// moxie.post.create - create a post with optional media
	r.With(auth.RequireAuth).Post("/xrpc/moxie.post.create", createPostHandler.HandleCreate)

	// moxie.post.delete - delete a post, its replies and their media
	// Only post authors can delete their own posts
	r.With(auth.RequireAuth).Post("/xrpc/moxie.post.delete", deletePostHandler.HandleDelete)

	// moxie.reply.create - reply to a post
	r.With(auth.RequireAuth).Post("/xrpc/moxie.reply.create", createReplyHandler.HandleCreate)

	// moxie.reply.delete - delete a reply
	r.With(auth.RequireAuth).Post("/xrpc/moxie.reply.delete", deleteReplyHandler.HandleDelete)
}
