package api

import (
	"net/http"

	"github.com/ashureev/chat2test/internal/chat"
	"github.com/ashureev/chat2test/internal/tracker"
	"github.com/go-chi/chi/v5"
)

// IntegrationHandler handles issue-tracker handoff and page discovery.
type IntegrationHandler struct {
	tracker *tracker.Service
	chats   *chat.Processor
}

// NewIntegrationHandler creates a new integration handler.
func NewIntegrationHandler(trackerSvc *tracker.Service, chats *chat.Processor) *IntegrationHandler {
	return &IntegrationHandler{tracker: trackerSvc, chats: chats}
}

// RegisterRoutes registers integration routes.
func (h *IntegrationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/jira/push", h.PushToJira)
	r.Post("/page/explore", h.Explore)
}

type pushRequest struct {
	UniqueID  string `json:"unique_id"`
	ProjectID int64  `json:"project_id"`
}

// PushToJira files a test case in the project's linked tracker.
func (h *IntegrationHandler) PushToJira(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.tracker.Push(r.Context(), currentUser(r), req.UniqueID, req.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Explore records a page exploration request and returns the test cases.
func (h *IntegrationHandler) Explore(w http.ResponseWriter, r *http.Request) {
	var req chat.ExploreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.chats.Explore(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}
