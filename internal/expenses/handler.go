package expenses

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/platform/httpx"
	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
)

// Handler manages expense endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	shapes  *schema.Validator
	caps    capabilities.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, shapes *schema.Validator, caps capabilities.Middleware) *Handler {
	return &Handler{logger: logger, service: service, shapes: shapes, caps: caps}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, input, ok := h.decodeClaim(w, r)
	if !ok {
		return
	}
	claim, err := h.service.Create(r.Context(), caller, input, r.Header.Get("Idempotency-Key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewClaimResponse(claim))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.claimID(w, r)
	if !ok {
		return
	}
	caller, input, decoded := h.decodeClaim(w, r)
	if !decoded {
		return
	}
	claim, err := h.service.Update(r.Context(), caller, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewClaimResponse(claim))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	claim, err := h.service.Submit(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewClaimResponse(claim))
}

func (h *Handler) recall(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Recall)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Commit)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.service.Reject(r.Context(), caller, id, req.RejectionReason); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id.String(), "rejected": true})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	claim, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewClaimResponse(claim))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filters := ListFilters{
		UID:         r.URL.Query().Get("uid"),
		ManagerUID:  r.URL.Query().Get("manager_uid"),
		PaymentType: r.URL.Query().Get("payment_type"),
	}
	if raw := r.URL.Query().Get("submitted"); raw != "" {
		v := raw == "true"
		filters.Submitted = &v
	}
	if raw := r.URL.Query().Get("approved"); raw != "" {
		v := raw == "true"
		filters.Approved = &v
	}
	if raw := r.URL.Query().Get("committed"); raw != "" {
		v := raw == "true"
		filters.Committed = &v
	}
	claims, total, err := h.service.List(r.Context(), caller, filters, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]ClaimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, NewClaimResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"expenses":   out,
		"pagination": shared.NewPagination(offset/limit+1, limit, total),
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, capabilities.Caller, uuid.UUID) error) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), caller, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id.String()})
}

func (h *Handler) claimID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "invalid expense id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) callerAndID(w http.ResponseWriter, r *http.Request) (capabilities.Caller, uuid.UUID, bool) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	id, ok := h.claimID(w, r)
	return caller, id, ok
}

func (h *Handler) decodeClaim(w http.ResponseWriter, r *http.Request) (capabilities.Caller, ClaimInput, bool) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	var req ClaimRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return caller, ClaimInput{}, false
	}
	if err := h.shapes.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return caller, ClaimInput{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "date must be formatted YYYY-MM-DD")
		return caller, ClaimInput{}, false
	}
	return caller, ClaimInput{
		Date:        date,
		PaymentType: req.PaymentType,
		Total:       req.Total,
		Distance:    req.Distance,
		Description: req.Description,
		Vendor:      req.Vendor,
		Job:         req.Job,
		Division:    req.Division,
	}, true
}
