package expenses

import (
	"github.com/go-chi/chi/v5"

	"github.com/crewdesk/crewdesk/internal/capabilities"
)

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAny())
		r.Post("/expenses", h.create)
		r.Get("/expenses", h.list)
		r.Get("/expenses/{id}", h.get)
		r.Put("/expenses/{id}", h.update)
		r.Delete("/expenses/{id}", h.delete)
		r.Post("/expenses/{id}/submit", h.submit)
		r.Post("/expenses/{id}/recall", h.recall)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAny(capabilities.CapTimeApprover, capabilities.CapExpenseApprover))
		r.Post("/expenses/{id}/approve", h.approve)
		r.Post("/expenses/{id}/reject", h.reject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAll(capabilities.CapCommit))
		r.Post("/expenses/{id}/commit", h.commit)
	})
}
