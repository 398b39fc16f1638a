package view

import (
	"net/http"

	"Moxie/internal/api/handlers"
	"Moxie/internal/api/middleware"
	"Moxie/internal/core/entities"
	"Moxie/internal/core/views"
)

// ItemsOutput is the response of every view read
type ItemsOutput struct {
	Context views.Context       `json:"context"`
	Items   []entities.ItemView `json:"items"`
}

// FailuresOutput is the response of moxie.view.getFailures
type FailuresOutput struct {
	Context  views.Context   `json:"context"`
	Failures []views.Failure `json:"failures"`
}

// Handler serves the cached view collections of the calling viewer
type Handler struct {
	registry *views.Registry
}

// NewHandler creates a new view handler
func NewHandler(registry *views.Registry) *Handler {
	return &Handler{registry: registry}
}

// HandleFeed handles GET /xrpc/moxie.feed.get
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, views.Feed())
}

// HandleProfile handles GET /xrpc/moxie.profile.get?user=
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	h.serveParam(w, r, "user", views.Profile)
}

// HandleThread handles GET /xrpc/moxie.post.getThread?id=
func (h *Handler) HandleThread(w http.ResponseWriter, r *http.Request) {
	h.serveParam(w, r, "id", views.PostThread)
}

// HandleReplies handles GET /xrpc/moxie.reply.list?post=
func (h *Handler) HandleReplies(w http.ResponseWriter, r *http.Request) {
	h.serveParam(w, r, "post", views.ReplyList)
}

// HandleFailures handles GET /xrpc/moxie.view.getFailures?kind=&id=
// Failure notices are drained: each is returned once
func (h *Handler) HandleFailures(w http.ResponseWriter, r *http.Request) {
	vc, err := views.Parse(r.URL.Query().Get("kind"), r.URL.Query().Get("id"))
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}

	failures := h.registry.For(middleware.GetUserID(r)).Failures(vc)
	if failures == nil {
		failures = []views.Failure{}
	}
	handlers.WriteJSON(w, http.StatusOK, FailuresOutput{Context: vc, Failures: failures})
}

func (h *Handler) serveParam(w http.ResponseWriter, r *http.Request, param string, build func(string) views.Context) {
	value := r.URL.Query().Get(param)
	if value == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", param+" parameter is required")
		return
	}
	h.serve(w, r, build(value))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, vc views.Context) {
	items, err := h.registry.For(middleware.GetUserID(r)).Get(r.Context(), vc)
	if err != nil {
		handlers.WriteServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, ItemsOutput{Context: vc, Items: items})
}
