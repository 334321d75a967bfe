package timekeeping

import (
	"github.com/go-chi/chi/v5"

	"github.com/crewdesk/crewdesk/internal/capabilities"
)

// MountRoutes registers timekeeping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAll(capabilities.CapTime))
		r.Post("/time/entries", h.createEntry)
		r.Get("/time/entries", h.listWeekEntries)
		r.Put("/time/entries/{id}", h.updateEntry)
		r.Delete("/time/entries/{id}", h.deleteEntry)
		r.Post("/timesheets/submit", h.submit)
		r.Post("/timesheets/{id}/recall", h.recall)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAny())
		r.Get("/timesheets", h.list)
		r.Get("/timesheets/{id}", h.get)
		r.Post("/timesheets/{id}/reviewed", h.markReviewed)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAny(capabilities.CapTimeApprover, capabilities.CapTimesheetRejecter))
		r.Post("/timesheets/{id}/approve", h.approve)
		r.Post("/timesheets/{id}/reject", h.reject)
		r.Post("/timesheets/{id}/share", h.share)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAll(capabilities.CapAdmin))
		r.Post("/timesheets/{id}/lock", h.lock)
	})
}
