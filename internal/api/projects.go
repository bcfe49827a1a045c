package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ProjectHandler handles project CRUD.
type ProjectHandler struct {
	*Handler
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(base *Handler) *ProjectHandler {
	return &ProjectHandler{Handler: base}
}

// RegisterRoutes registers project routes.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{projectID}", h.Get)
		r.Put("/{projectID}", h.Update)
		r.Delete("/{projectID}", h.Delete)
	})
}

// Create creates a project owned by the caller.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := in.Normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	project := &domain.Project{
		Name:          in.Name,
		Description:   in.Description,
		Status:        in.Status,
		JiraProjectID: in.JiraProjectID,
		UserID:        currentUser(r),
	}
	if err := h.repo.CreateProject(r.Context(), project); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Project created", "project_id", project.ID, "user_id", project.UserID)
	JSON(w, http.StatusCreated, project)
}

// List returns the caller's projects, newest first.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.repo.ListProjects(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}
	JSON(w, http.StatusOK, projects)
}

// Get returns one owned project.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.ownedProject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, project)
}

// Update replaces the editable fields of an owned project.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	project, err := h.ownedProject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in domain.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := in.Normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	project.Name = in.Name
	project.Description = in.Description
	project.Status = in.Status
	project.JiraProjectID = in.JiraProjectID
	if err := h.repo.UpdateProject(r.Context(), project); err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, project)
}

// Delete removes an owned project with its chats and messages.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, err := idParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := h.repo.DeleteProject(r.Context(), projectID, currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, fmt.Errorf("%w: project %d", domain.ErrNotFound, projectID))
		return
	}

	slog.Info("Project deleted", "project_id", projectID, "user_id", currentUser(r))
	JSON(w, http.StatusOK, map[string]string{"message": "Project deleted"})
}

func (h *ProjectHandler) ownedProject(r *http.Request) (*domain.Project, error) {
	projectID, err := idParam(r, "projectID")
	if err != nil {
		return nil, err
	}
	project, err := h.repo.GetProject(r.Context(), projectID, currentUser(r))
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %d", domain.ErrNotFound, projectID)
	}
	return project, nil
}
