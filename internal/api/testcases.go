package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/testcase"
	"github.com/go-chi/chi/v5"
)

// TestCaseHandler exposes the shared test case store.
type TestCaseHandler struct {
	cases *testcase.Store
}

// NewTestCaseHandler creates a new test case handler.
func NewTestCaseHandler(cases *testcase.Store) *TestCaseHandler {
	return &TestCaseHandler{cases: cases}
}

// RegisterRoutes registers test case routes.
func (h *TestCaseHandler) RegisterRoutes(r chi.Router) {
	r.Route("/test-cases", func(r chi.Router) {
		r.Get("/", h.List)
		r.Put("/update", h.Update)
		r.Post("/execute", h.ExecuteBulk)
		r.Get("/{testCaseID}", h.Get)
		r.Post("/{testCaseID}/comment", h.Comment)
		r.Post("/{testCaseID}/execute", h.Execute)
		r.Delete("/{testCaseID}", h.Delete)
	})
}

// List returns every test case.
func (h *TestCaseHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.cases.List())
}

// Get returns one test case by unique or legacy id.
func (h *TestCaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc, err := h.cases.Get(chi.URLParam(r, "testCaseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, tc)
}

// Update replaces a test case's expected result with the given comment.
func (h *TestCaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in domain.TestCaseUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.ChatID <= 0 || in.ProjectID <= 0 {
		writeError(w, r, fmt.Errorf("%w: chat_id and project_id are required", domain.ErrValidation))
		return
	}

	updated, err := h.cases.Update(in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Test case updated", "unique_id", updated.UniqueID, "chat_id", in.ChatID, "user_id", currentUser(r))
	JSON(w, http.StatusOK, updated)
}

// Comment is kept for old clients and always answers 410 Gone.
func (h *TestCaseHandler) Comment(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, h.cases.Comment(chi.URLParam(r, "testCaseID"), ""))
}

// Execute runs one test case.
func (h *TestCaseHandler) Execute(w http.ResponseWriter, r *http.Request) {
	tc, err := h.cases.Execute(r.Context(), chi.URLParam(r, "testCaseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, tc)
}

type bulkExecuteRequest struct {
	IDs []string `json:"ids"`
}

type bulkExecuteResponse struct {
	Executed []domain.TestCase `json:"executed"`
	Count    int               `json:"count"`
}

// ExecuteBulk runs every listed test case that has not run yet.
func (h *TestCaseHandler) ExecuteBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkExecuteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, fmt.Errorf("%w: ids is required", domain.ErrValidation))
		return
	}

	executed, err := h.cases.ExecuteBulk(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, bulkExecuteResponse{Executed: executed, Count: len(executed)})
}

// Delete removes a test case.
func (h *TestCaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "testCaseID")
	if err := h.cases.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Test case deleted", "id", id, "user_id", currentUser(r))
	JSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Test case deleted",
		"remaining": h.cases.Len(),
	})
}
