package capabilities

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crewdesk/crewdesk/internal/shared"
)

// Resolver loads the capability set for an authenticated user id.
type Resolver interface {
	Resolve(ctx context.Context, uid string) (Caller, error)
}

// Middleware wires capability authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver Resolver
	Logger   *slog.Logger
}

// RequireAny ensures the current caller holds at least one of the flags and
// stashes the resolved caller into the request context.
func (m Middleware) RequireAny(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := m.resolveCaller(w, r)
			if !ok {
				return
			}
			if len(caps) > 0 && !caller.Caps.HasAny(caps...) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
		})
	}
}

// RequireAll ensures the current caller holds every flag.
func (m Middleware) RequireAll(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := m.resolveCaller(w, r)
			if !ok {
				return
			}
			for _, c := range caps {
				if !caller.Caps.Has(c) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
		})
	}
}

func (m Middleware) resolveCaller(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return Caller{}, false
	}
	uid := strings.TrimSpace(sess.User())
	if uid == "" {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return Caller{}, false
	}
	caller, err := m.Resolver.Resolve(r.Context(), uid)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("resolve caller", slog.String("uid", uid), slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return Caller{}, false
	}
	return caller, true
}
