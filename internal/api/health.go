package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/chat2test/internal/agent"
	"github.com/ashureev/chat2test/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// StatsProvider reports language-model call counters.
type StatsProvider interface {
	GetStats() agent.Stats
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo  store.Repository
	agent StatsProvider
	cases interface{ Len() int }
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, agentStats StatsProvider, cases interface{ Len() int }) *HealthHandler {
	return &HealthHandler{repo: repo, agent: agentStats, cases: cases}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.agent != nil {
		status["agent"] = h.agent.GetStats()
	}
	if h.cases != nil {
		status["test_cases"] = h.cases.Len()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
