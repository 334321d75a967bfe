package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crewdesk/crewdesk/internal/auth"
	"github.com/crewdesk/crewdesk/internal/expenses"
	"github.com/crewdesk/crewdesk/internal/purchasing"
	"github.com/crewdesk/crewdesk/internal/shared"
	"github.com/crewdesk/crewdesk/internal/timekeeping"
	"github.com/crewdesk/crewdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	TimekeepingHandler *timekeeping.Handler
	ExpensesHandler    *expenses.Handler
	PurchasingHandler  *purchasing.Handler
	RejectDispatcher   *RejectDispatcher
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with crewdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.TimekeepingHandler.MountRoutes(r)
		params.ExpensesHandler.MountRoutes(r)
		params.PurchasingHandler.MountRoutes(r)
		if params.RejectDispatcher != nil {
			params.RejectDispatcher.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
