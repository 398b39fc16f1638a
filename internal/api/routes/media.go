package routes

import (
	"Moxie/internal/api/handlers/mediaref"
	"Moxie/internal/core/media"

	"github.com/go-chi/chi/v5"
)

// RegisterMediaRoutes registers media retrieval endpoints
// Keys are unguessable, so resolution is public
func RegisterMediaRoutes(r chi.Router, service media.Service) {
	resolveHandler := mediaref.NewResolveHandler(service)

	// GET /xrpc/moxie.media.resolve?key=<hex>
	r.Get("/xrpc/moxie.media.resolve", resolveHandler.HandleResolve)
}
