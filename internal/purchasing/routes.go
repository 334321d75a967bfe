package purchasing

import (
	"github.com/go-chi/chi/v5"

	"github.com/crewdesk/crewdesk/internal/capabilities"
)

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAll(capabilities.CapPurchaseOrder))
		r.Post("/purchase-orders/requests", h.createRequest)
		r.Put("/purchase-orders/requests/{id}", h.updateRequest)
		r.Delete("/purchase-orders/requests/{id}", h.deleteRequest)
		r.Post("/purchase-orders/requests/{id}/submit", h.submitRequest)
		r.Post("/purchase-orders/requests/{id}/recall", h.recallRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAny())
		r.Get("/purchase-orders/requests", h.listRequests)
		r.Get("/purchase-orders/requests/{id}", h.getRequest)
		r.Get("/purchase-orders", h.listOrders)
		r.Get("/purchase-orders/{number}", h.getOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAll(capabilities.CapTimeApprover))
		r.Post("/purchase-orders/requests/{id}/approve", h.approveManager)
		r.Post("/purchase-orders/requests/{id}/reject", h.rejectRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAny(capabilities.CapVP, capabilities.CapSMG))
		r.Post("/purchase-orders/requests/{id}/approve-tier", h.approveTier)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.caps.RequireAny(capabilities.CapVP, capabilities.CapSMG, capabilities.CapTimeApprover))
		r.Post("/purchase-orders/{number}/cancel", h.cancelOrder)
	})
}
