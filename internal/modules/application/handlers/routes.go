package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers program and treaty application routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/programs/apply", h.HandleApplyProgram)
	r.Post("/bordereau/apply", h.HandleApplyBordereau)

	r.Route("/treaties", func(r chi.Router) {
		r.Post("/apply", h.HandleApplyTreaty)
		r.Post("/bordereau", h.HandleApplyTreatyBordereau)
	})
}
