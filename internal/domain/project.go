package domain

import (
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectArchived  ProjectStatus = "archived"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold, ProjectArchived:
		return true
	}
	return false
}

// Project groups chats and links to an issue-tracker project.
type Project struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Status        ProjectStatus `json:"status"`
	JiraProjectID string        `json:"jira_project_id,omitempty"`
	UserID        int64         `json:"user_id"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ProjectInput is the create/update payload for a project.
type ProjectInput struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Status        ProjectStatus `json:"status"`
	JiraProjectID string        `json:"jira_project_id"`
}

// Normalize fills defaults and validates the payload.
func (in *ProjectInput) Normalize() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Status == "" {
		in.Status = ProjectActive
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown project status %q", ErrValidation, in.Status)
	}
	return nil
}
