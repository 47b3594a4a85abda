package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/brokerage/internal/auth"
	"github.com/atmx/brokerage/internal/model"
	"github.com/atmx/brokerage/internal/store"
)

func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router, *auth.Sessions) {
	t.Helper()
	ms := store.NewMemoryStore()
	sessions := auth.NewSessions([]byte("test-secret"), time.Hour)
	svc := auth.NewService(ms, sessions)

	r := chi.NewRouter()
	r.Post("/api/v1/register", svc.Register)
	r.Post("/api/v1/login", svc.Login)
	r.Post("/api/v1/logout", svc.Logout)
	r.Group(func(r chi.Router) {
		r.Use(sessions.RequireUser)
		r.Get("/api/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.UserID(r.Context())
			json.NewEncoder(w).Encode(map[string]int64{"user_id": id})
		})
	})

	return ms, r, sessions
}

func post(t *testing.T, router chi.Router, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, router chi.Router, username, password, confirmation string) *httptest.ResponseRecorder {
	t.Helper()
	return post(t, router, "/api/v1/register", auth.RegisterRequest{
		Username:     username,
		Password:     password,
		Confirmation: confirmation,
	})
}

// --- Registration ---

func TestRegister_Success(t *testing.T) {
	ms, router, _ := newTestEnv(t)

	w := register(t, router, "alice", "hunter22", "hunter22")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Registration does not establish a session.
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			t.Error("register should not set a session cookie")
		}
	}

	user, err := ms.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("user should exist: %v", err)
	}
	if !user.Cash.Equal(model.StartingCash) {
		t.Errorf("expected starting cash %s, got %s", model.StartingCash, user.Cash)
	}
	if user.PasswordHash == "hunter22" || user.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}

	// The hash never leaks into the response body.
	if bytes.Contains(w.Body.Bytes(), []byte(user.PasswordHash)) {
		t.Error("response leaks password hash")
	}
}

func TestRegister_Validation(t *testing.T) {
	_, router, _ := newTestEnv(t)

	cases := []struct {
		name                             string
		username, password, confirmation string
	}{
		{"short username", "abc", "hunter22", "hunter22"},
		{"short password", "alice", "abc", "abc"},
		{"mismatch", "alice", "hunter22", "hunter23"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := register(t, router, tc.username, tc.password, tc.confirmation)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestRegister_RejectedInputCreatesNoUser(t *testing.T) {
	ms, router, _ := newTestEnv(t)

	register(t, router, "abc", "hunter22", "hunter22")
	if _, err := ms.GetUserByUsername(context.Background(), "abc"); err == nil {
		t.Error("rejected registration must not create a user")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	_, router, _ := newTestEnv(t)

	if w := register(t, router, "alice", "hunter22", "hunter22"); w.Code != http.StatusCreated {
		t.Fatalf("first registration failed: %d", w.Code)
	}
	w := register(t, router, "alice", "other999", "other999")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", w.Code)
	}
}

func TestRegister_UsernameCaseSensitive(t *testing.T) {
	_, router, _ := newTestEnv(t)

	register(t, router, "alice", "hunter22", "hunter22")
	// Exact-match duplicate check: different case is a different user.
	w := register(t, router, "Alice", "hunter22", "hunter22")
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 for different-case username, got %d", w.Code)
	}
}

// --- Login ---

func TestLogin_WrongPassword(t *testing.T) {
	_, router, _ := newTestEnv(t)
	register(t, router, "alice", "hunter22", "hunter22")

	w := post(t, router, "/api/v1/login", auth.LoginRequest{Username: "alice", Password: "wrong999"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	_, router, _ := newTestEnv(t)

	w := post(t, router, "/api/v1/login", auth.LoginRequest{Username: "nobody", Password: "hunter22"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestLogin_EstablishesSession(t *testing.T) {
	ms, router, _ := newTestEnv(t)
	register(t, router, "alice", "hunter22", "hunter22")

	w := post(t, router, "/api/v1/login", auth.LoginRequest{Username: "alice", Password: "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie on login")
	}

	// The session resolves to the right user through the middleware.
	req := httptest.NewRequest("GET", "/api/v1/whoami", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from whoami, got %d", rec.Code)
	}
	var resp map[string]int64
	json.Unmarshal(rec.Body.Bytes(), &resp)

	user, _ := ms.GetUserByUsername(context.Background(), "alice")
	if resp["user_id"] != user.ID {
		t.Errorf("session user %d != registered user %d", resp["user_id"], user.ID)
	}
}

func TestRequireUser_RejectsMissingAndForgedSessions(t *testing.T) {
	_, router, _ := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without cookie, got %d", w.Code)
	}

	// A token signed with a different secret must be rejected.
	other := auth.NewSessions([]byte("other-secret"), time.Hour)
	rec := httptest.NewRecorder()
	if err := other.Issue(rec, 1); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	req = httptest.NewRequest("GET", "/api/v1/whoami", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for forged session, got %d", w.Code)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	_, router, _ := newTestEnv(t)
	register(t, router, "alice", "hunter22", "hunter22")
	login := post(t, router, "/api/v1/login", auth.LoginRequest{Username: "alice", Password: "hunter22"})

	var cookie *http.Cookie
	for _, c := range login.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cookie = c
		}
	}

	w := post(t, router, "/api/v1/logout", nil, cookie)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	var cleared *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Error("logout should expire the session cookie")
	}
}

// The opening balance is part of the external contract; guard against
// accidental change.
func TestStartingCash(t *testing.T) {
	if !model.StartingCash.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("starting cash should be 10000, got %s", model.StartingCash)
	}
}
