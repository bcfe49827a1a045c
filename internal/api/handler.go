// Package api provides HTTP handlers for the chat2test API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/identity"
	"github.com/ashureev/chat2test/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxJSONBodySize = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository) *Handler {
	return &Handler{repo: repo}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrDisabled):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. Internal errors are logged
// and replaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
		Error(w, status, "internal server error")
		return
	}
	Error(w, status, err.Error())
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	return nil
}

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return id, nil
}

// currentUser returns the authenticated user ID. The identity middleware
// guarantees it is set on protected routes.
func currentUser(r *http.Request) int64 {
	return identity.UserIDFromContext(r.Context())
}
