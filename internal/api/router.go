package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Organize pass.
	r.Post("/organize", h.Organize)

	// Refinement validation.
	r.Post("/refine", h.Refine)

	// Destination namespace.
	r.Get("/tree", h.Tree)
	r.Get("/entities/{id}", h.GetEntity)
	r.Get("/entities/{id}/suggestions", h.Suggestions)

	// History and revert.
	r.Get("/history", h.ListHistory)
	r.Get("/history/{id}/preview", h.PreviewRevert)
	r.Post("/history/{id}/revert", h.Revert)

	// Cache state machine.
	r.Get("/state", h.State)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
