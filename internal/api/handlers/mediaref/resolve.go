package mediaref

import (
	"net/http"
	"strconv"
	"time"

	"Moxie/internal/api/handlers"
	"Moxie/internal/core/media"
)

// ResolveOutput is the JSON form of a retrieval reference
type ResolveOutput struct {
	ExpiresAt time.Time `json:"expiresAt"`
	URL       string    `json:"url"`
}

// ResolveHandler exchanges media keys for short-lived retrieval URLs
type ResolveHandler struct {
	service media.Service
}

// NewResolveHandler creates a new resolve handler
func NewResolveHandler(service media.Service) *ResolveHandler {
	return &ResolveHandler{service: service}
}

// HandleResolve handles GET /xrpc/moxie.media.resolve?key=
// Redirects to the signed URL, or returns it as JSON with format=json
func (h *ResolveHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "key parameter is required")
		return
	}

	ref, err := h.service.Resolve(r.Context(), key)
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		handlers.WriteJSON(w, http.StatusOK, ResolveOutput{URL: ref.URL, ExpiresAt: ref.ExpiresAt})
		return
	}

	// The redirect may be cached only as long as the signature stays valid
	maxAge := int(time.Until(ref.ExpiresAt).Seconds()) - 60
	if maxAge < 0 {
		maxAge = 0
	}
	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(maxAge))
	http.Redirect(w, r, ref.URL, http.StatusFound)
}
