package timekeeping

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

// Handler manages timekeeping endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	shapes  *schema.Validator
	weeks   *WeekClock
	caps    capabilities.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, shapes *schema.Validator, weeks *WeekClock, caps capabilities.Middleware) *Handler {
	return &Handler{logger: logger, service: service, shapes: shapes, weeks: weeks, caps: caps}
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	caller, input, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewEntryResponse(entry))
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "invalid entry id")
		return
	}
	caller, input, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	if err := h.service.UpdateEntry(r.Context(), caller, id, input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "invalid entry id")
		return
	}
	caller, _ := capabilities.CallerFromContext(r.Context())
	if err := h.service.DeleteEntry(r.Context(), caller, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listWeekEntries(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	day := time.Now()
	if raw := r.URL.Query().Get("week"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.weeks.Location())
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "week must be formatted YYYY-MM-DD")
			return
		}
		day = parsed
	}
	entries, err := h.service.ListWeekEntries(r.Context(), caller, day)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.shapes.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	weekEnding, err := time.ParseInLocation("2006-01-02", req.WeekEnding, h.weeks.Location())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "weekEnding must be formatted YYYY-MM-DD")
		return
	}
	ts, err := h.service.Submit(r.Context(), caller, weekEnding)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewTimesheetResponse(ts, h.weeks))
}

func (h *Handler) recall(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Recall)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Lock)
}

func (h *Handler) markReviewed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkReviewed)
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

func (h *Handler) share(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req ShareRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.shapes.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Share(r.Context(), caller, id, req.ViewerUID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id.String(), "viewer": req.ViewerUID})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	ts, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewTimesheetResponse(ts, h.weeks))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filters := ListFilters{
		UID:        r.URL.Query().Get("uid"),
		ManagerUID: r.URL.Query().Get("manager_uid"),
	}
	if raw := r.URL.Query().Get("submitted"); raw != "" {
		v := raw == "true"
		filters.Submitted = &v
	}
	if raw := r.URL.Query().Get("approved"); raw != "" {
		v := raw == "true"
		filters.Approved = &v
	}
	sheets, total, err := h.service.List(r.Context(), caller, filters, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]TimesheetResponse, 0, len(sheets))
	for _, ts := range sheets {
		out = append(out, NewTimesheetResponse(ts, h.weeks))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"timesheets": out,
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

func (h *Handler) callerAndID(w http.ResponseWriter, r *http.Request) (capabilities.Caller, uuid.UUID, bool) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "invalid timesheet id")
		return caller, uuid.Nil, false
	}
	return caller, id, true
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (capabilities.Caller, EntryInput, bool) {
	caller, _ := capabilities.CallerFromContext(r.Context())
	var req EntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return caller, EntryInput{}, false
	}
	if err := h.shapes.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return caller, EntryInput{}, false
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, h.weeks.Location())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "date must be formatted YYYY-MM-DD")
		return caller, EntryInput{}, false
	}
	return caller, EntryInput{
		Date:                date,
		TimeType:            req.TimeType,
		Division:            req.Division,
		Job:                 req.Job,
		WorkDescription:     req.WorkDescription,
		Hours:               req.Hours,
		JobHours:            req.JobHours,
		MealsHours:          req.MealsHours,
		PayoutRequestAmount: req.PayoutRequestAmount,
	}, true
}
