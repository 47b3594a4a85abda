package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atmx/brokerage/internal/metrics"
	"github.com/atmx/brokerage/internal/model"
	"github.com/atmx/brokerage/internal/store"
)

// Minimum lengths for registration input.
const (
	MinUsernameLen = 4
	MinPasswordLen = 4
)

var (
	// ErrUsernameTooShort is returned when the username has fewer than
	// MinUsernameLen characters.
	ErrUsernameTooShort = errors.New("auth: username too short")

	// ErrPasswordTooShort is returned when the password has fewer than
	// MinPasswordLen characters.
	ErrPasswordTooShort = errors.New("auth: password too short")

	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("auth: passwords do not match")

	// ErrInvalidCredentials is returned on login when the username is
	// unknown or the password does not match. The two cases are not
	// distinguished to the caller.
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
)

// Service handles account creation and session establishment.
type Service struct {
	store    store.Store
	sessions *Sessions
}

// NewService creates a new auth service.
func NewService(st store.Store, sessions *Sessions) *Service {
	return &Service{store: st, sessions: sessions}
}

// RegisterRequest is the JSON body for POST /register.
type RegisterRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// LoginRequest is the JSON body for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account with the starting cash balance.
// Validation follows the original flow: 4-char minimums, exact-match
// duplicate check, password confirmation. A successful registration does
// NOT establish a session; the client logs in separately.
func (s *Service) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Username) < MinUsernameLen {
		writeError(w, ErrUsernameTooShort.Error(), http.StatusBadRequest)
		return
	}
	if req.Password != req.Confirmation {
		writeError(w, ErrPasswordMismatch.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Password) < MinPasswordLen {
		writeError(w, ErrPasswordTooShort.Error(), http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Cash:         model.StartingCash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			writeError(w, "username already taken", http.StatusConflict)
			return
		}
		writeError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	metrics.RegistrationsTotal.Inc()
	slog.Info("user registered",
		"user_id", user.ID,
		"username", user.Username,
		"starting_cash", user.Cash.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login verifies credentials and establishes a session.
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		// Hash comparison is skipped but the response is identical to a
		// wrong password, so usernames cannot be enumerated.
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeError(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeError(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	if err := s.sessions.Issue(w, user.ID); err != nil {
		writeError(w, "failed to establish session", http.StatusInternalServerError)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// Logout clears the session.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
