package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/crewdesk/crewdesk/internal/auth"
	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/shared"
	_ "github.com/crewdesk/crewdesk/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type stubRepo struct {
	user     *auth.User
	sessions map[string]string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.NotFoundf("user not found")
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id, uid string, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]string)
	}
	s.sessions[id] = uid
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{
		UID:          "u100",
		Email:        "dispatch@test.local",
		DisplayName:  "Dana Dispatch",
		PasswordHash: string(hashed),
		Caps:         capabilities.NewSet(capabilities.CapTime),
		IsActive:     true,
	}
}

func newAuthRouter(t *testing.T, repo auth.Repository) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	handler := auth.NewHandler(testLogger(), auth.NewService(repo), sessionManager)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			next.ServeHTTP(w, req.WithContext(ctx))
			if err := sessionManager.Commit(ctx, w, sess); err != nil {
				t.Fatalf("commit session: %v", err)
			}
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correct-horse")}
	router, sessionManager := newAuthRouter(t, repo)

	body := `{"email":"dispatch@test.local","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		UID         string   `json:"uid"`
		DisplayName string   `json:"displayName"`
		Caps        []string `json:"caps"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.UID != "u100" || payload.DisplayName != "Dana Dispatch" {
		t.Fatalf("unexpected identity: %+v", payload)
	}

	var cookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionManager.CookieName() {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected session cookie in response")
	}
	if _, ok := repo.sessions[cookie.Value]; !ok {
		t.Fatalf("expected session %q registered for auditing", cookie.Value)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t, "correct-horse")})

	body := `{"email":"dispatch@test.local","password":"wrong-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	user := activeUser(t, "correct-horse")
	user.IsActive = false
	router, _ := newAuthRouter(t, &stubRepo{user: user})

	body := `{"email":"dispatch@test.local","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correct-horse")}
	router, sessionManager := newAuthRouter(t, repo)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"dispatch@test.local","password":"correct-horse"}`))
	loginRes := httptest.NewRecorder()
	router.ServeHTTP(loginRes, loginReq)
	if loginRes.Code != http.StatusOK {
		t.Fatalf("login failed: %d", loginRes.Code)
	}

	var sessionCookie *http.Cookie
	for _, c := range loginRes.Result().Cookies() {
		if c.Name == sessionManager.CookieName() && c.Value != "" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatalf("login did not set a session cookie")
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(sessionCookie)
	logoutRes := httptest.NewRecorder()
	router.ServeHTTP(logoutRes, logoutReq)

	if logoutRes.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", logoutRes.Code)
	}
	if _, ok := repo.sessions[sessionCookie.Value]; ok {
		t.Fatalf("expected session record removed on logout")
	}
}
