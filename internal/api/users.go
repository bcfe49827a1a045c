package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/chat2test/internal/auth"
	"github.com/ashureev/chat2test/internal/domain"
	"github.com/go-chi/chi/v5"
)

// UserHandler handles signup, login and profile endpoints.
type UserHandler struct {
	*Handler
	auth *auth.Service
}

// NewUserHandler creates a new user handler.
func NewUserHandler(base *Handler, authSvc *auth.Service) *UserHandler {
	return &UserHandler{Handler: base, auth: authSvc}
}

// RegisterPublicRoutes registers routes that do not need a token.
func (h *UserHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)
}

// RegisterRoutes registers authenticated profile routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/user/me", h.GetMe)
	r.Put("/user/me", h.UpdateMe)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	*domain.User
	HasJiraToken bool `json:"has_jira_token"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{User: u, HasJiraToken: u.HasJiraToken()}
}

// Signup registers a user.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
		if err := h.repo.UpdateUser(r.Context(), user); err != nil {
			writeError(w, r, fmt.Errorf("store display name: %w", err))
			return
		}
	}

	JSON(w, http.StatusCreated, newUserResponse(user))
}

// Login exchanges credentials for a bearer token. Form-encoded
// username/password bodies are accepted as well as JSON.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		req.Email = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, token)
}

// GetMe returns the current user's profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.loadUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, newUserResponse(user))
}

// UpdateMe updates the display name and issue-tracker credentials.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var update domain.UserUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.loadUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	update.Apply(user)
	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("User profile updated", "user_id", user.ID, "has_jira_token", user.HasJiraToken())
	JSON(w, http.StatusOK, newUserResponse(user))
}

func (h *UserHandler) loadUser(r *http.Request) (*domain.User, error) {
	userID := currentUser(r)
	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
	}
	return user, nil
}
