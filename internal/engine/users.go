package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gasdex/settlement-engine/internal/model"
)

// RegisterRequest is the JSON body for POST /users/register.
type RegisterRequest struct {
	Account     string `json:"account"`
	DisplayName string `json:"display_name,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
}

// LoginRequest is the JSON body for POST /users/login.
type LoginRequest struct {
	Account string `json:"account"`
}

// RegisterUser handles POST /api/v1/users/register
//
// Registration is idempotent: re-registering refreshes the display name
// and metadata but keeps the original registration time.
func (s *Service) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	user := &model.User{
		Account:      req.Account,
		Registered:   true,
		DisplayName:  req.DisplayName,
		MetadataURI:  req.MetadataURI,
		RegisteredAt: now,
	}
	if existing, err := s.store.GetUser(ctx, req.Account); err == nil {
		user.RegisteredAt = existing.RegisteredAt
		user.LastLoginAt = existing.LastLoginAt
	}

	if err := s.store.UpsertUser(ctx, user); err != nil {
		writeError(w, "failed to register user", http.StatusInternalServerError)
		return
	}

	slog.Info("user registered", "account", req.Account)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{Type: EventUserRegistered, Account: req.Account})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login handles POST /api/v1/users/login
// Records the login time on an existing registration.
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.GetUser(ctx, req.Account)
	if err != nil {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}

	user.LastLoginAt = s.now()
	if err := s.store.UpsertUser(ctx, user); err != nil {
		writeError(w, "failed to record login", http.StatusInternalServerError)
		return
	}

	slog.Info("user logged in", "account", req.Account)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{Type: EventUserLoggedIn, Account: req.Account})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
