package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/platform/httpx"
)

// RejectFunc rejects one document with a reviewer reason.
type RejectFunc func(ctx context.Context, caller capabilities.Caller, id uuid.UUID, reason string) error

// RejectDispatcher exposes a single rejection endpoint that fans out over the
// document collections. Reviewer UIs send every rejection through here so the
// reason-length rule and audit trail behave the same for all document kinds.
type RejectDispatcher struct {
	logger *slog.Logger
	caps   capabilities.Middleware
	routes map[string]RejectFunc
}

// NewRejectDispatcher wires the per-collection reject operations.
func NewRejectDispatcher(logger *slog.Logger, caps capabilities.Middleware, timesheets, expenses, requests RejectFunc) *RejectDispatcher {
	return &RejectDispatcher{
		logger: logger,
		caps:   caps,
		routes: map[string]RejectFunc{
			"timesheets":              timesheets,
			"expenses":                expenses,
			"purchase-order-requests": requests,
		},
	}
}

// MountRoutes registers the dispatcher endpoint.
func (d *RejectDispatcher) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(d.caps.RequireAny(capabilities.CapTimeApprover, capabilities.CapTimesheetRejecter))
		r.Post("/reject/{collection}/{id}", d.reject)
	})
}

type rejectPayload struct {
	Reason string `json:"reason"`
}

func (d *RejectDispatcher) reject(w http.ResponseWriter, r *http.Request) {
	fn, ok := d.routes[chi.URLParam(r, "collection")]
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown document collection")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "document id must be a uuid")
		return
	}
	var payload rejectPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	caller, ok := capabilities.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Permission Denied", "caller identity missing")
		return
	}
	if err := fn(r.Context(), caller, id, payload.Reason); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
