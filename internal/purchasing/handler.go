package purchasing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/platform/httpx"
	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
)

// Handler manages purchasing endpoints.
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

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	caller, input, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	req, err := h.service.Create(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewRequestResponse(req))
}

func (h *Handler) updateRequest(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	caller, input, decoded := h.decodeRequest(w, r)
	if !decoded {
		return
	}
	req, err := h.service.Update(r.Context(), caller, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRequestResponse(req))
}

func (h *Handler) deleteRequest(w http.ResponseWriter, r *http.Request) {
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

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Submit(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRequestResponse(req))
}

func (h *Handler) recallRequest(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Recall(r.Context(), caller, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id.String()})
}

func (h *Handler) approveManager(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.ApproveManager(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRequestResponse(req))
}

func (h *Handler) approveTier(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.ApproveTier(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRequestResponse(req))
}

func (h *Handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
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

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetRequest(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRequestResponse(req))
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	limit, offset := pageParams(r)
	filters := RequestFilters{
		UID:        r.URL.Query().Get("uid"),
		ManagerUID: r.URL.Query().Get("manager_uid"),
		Type:       r.URL.Query().Get("type"),
	}
	if raw := r.URL.Query().Get("submitted"); raw != "" {
		v := raw == "true"
		filters.Submitted = &v
	}
	if raw := r.URL.Query().Get("fully_approved"); raw != "" {
		v := raw == "true"
		filters.FullyApproved = &v
	}
	requests, total, err := h.service.ListRequests(r.Context(), caller, filters, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]RequestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, NewRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requests":   out,
		"pagination": shared.NewPagination(offset/limit+1, limit, total),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	po, err := h.service.GetOrder(r.Context(), caller, chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderResponse(po))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	limit, offset := pageParams(r)
	filters := OrderFilters{
		UID:    r.URL.Query().Get("uid"),
		Status: r.URL.Query().Get("status"),
		Prefix: r.URL.Query().Get("prefix"),
	}
	orders, total, err := h.service.ListOrders(r.Context(), caller, filters, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for _, po := range orders {
		out = append(out, NewOrderResponse(po))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     out,
		"pagination": shared.NewPagination(offset/limit+1, limit, total),
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	number := chi.URLParam(r, "number")
	if err := h.service.CancelOrder(r.Context(), caller, number); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"number": number, "status": StatusCancelled})
}

func (h *Handler) callerAndID(w http.ResponseWriter, r *http.Request) (capabilities.Caller, uuid.UUID, bool) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "invalid request id")
		return caller, uuid.Nil, false
	}
	return caller, id, true
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (capabilities.Caller, RequestInput, bool) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	var req RequestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return caller, RequestInput{}, false
	}
	if err := h.shapes.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return caller, RequestInput{}, false
	}
	return caller, RequestInput{
		Description: req.Description,
		VendorName:  req.VendorName,
		Total:       req.Total,
		Type:        req.Type,
		Job:         req.Job,
		Division:    req.Division,
	}, true
}

func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
