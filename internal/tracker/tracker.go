// Package tracker hands test cases off to the user's issue tracker.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/store"
)

// Credentials identify the caller's issue-tracker account.
type Credentials struct {
	Email    string
	APIToken string
	BaseURL  string
}

// IssueCreator files a test case as an issue and returns its key.
type IssueCreator interface {
	CreateIssue(ctx context.Context, creds Credentials, projectKey string, tc domain.TestCase) (string, error)
}

// CaseFinder resolves a test case by unique or legacy id.
type CaseFinder interface {
	Get(id string) (domain.TestCase, error)
}

// SyntheticIssues fabricates sequential issue keys without any network call.
type SyntheticIssues struct {
	seq atomic.Int64
}

// CreateIssue returns <PROJECT>-<n>.
func (s *SyntheticIssues) CreateIssue(ctx context.Context, _ Credentials, projectKey string, _ domain.TestCase) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", strings.ToUpper(projectKey), s.seq.Add(1)), nil
}

// PushResult is returned after a successful handoff.
type PushResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	IssueKey string `json:"issue_key"`
}

// Service pushes test cases to the issue tracker.
type Service struct {
	repo   store.Repository
	cases  CaseFinder
	issues IssueCreator
}

// NewService creates a tracker service. A nil creator uses SyntheticIssues.
func NewService(repo store.Repository, cases CaseFinder, issues IssueCreator) *Service {
	if issues == nil {
		issues = &SyntheticIssues{}
	}
	return &Service{repo: repo, cases: cases, issues: issues}
}

// Push files the test case uniqueID under the tracker project linked to
// projectID. Missing settings are reported in a fixed order: account email,
// API token, API URL, then the project link.
func (s *Service) Push(ctx context.Context, userID int64, uniqueID string, projectID int64) (*PushResult, error) {
	if uniqueID == "" || projectID <= 0 {
		return nil, fmt.Errorf("%w: unique_id and project_id are required", domain.ErrValidation)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
	}

	project, err := s.repo.GetProject(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %d", domain.ErrNotFound, projectID)
	}

	if err := checkSettings(user, project); err != nil {
		return nil, err
	}

	tc, err := s.cases.Get(uniqueID)
	if err != nil {
		return nil, err
	}

	creds := Credentials{Email: user.JiraEmail, APIToken: user.JiraAPIToken, BaseURL: user.JiraAPIURL}
	key, err := s.issues.CreateIssue(ctx, creds, project.JiraProjectID, tc)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	slog.Info("Test case pushed to issue tracker", "user_id", userID, "project_id", projectID, "unique_id", tc.UniqueID, "issue_key", key)
	return &PushResult{
		Success:  true,
		Message:  fmt.Sprintf("Test case %s pushed to Jira", tc.UniqueID),
		IssueKey: key,
	}, nil
}

func checkSettings(user *domain.User, project *domain.Project) error {
	switch {
	case strings.TrimSpace(user.JiraEmail) == "":
		return fmt.Errorf("%w: Jira email (jira_email) is not configured for this user", domain.ErrConfiguration)
	case !user.HasJiraToken():
		return fmt.Errorf("%w: Jira API token (jira_api_token) is not configured for this user", domain.ErrConfiguration)
	case strings.TrimSpace(user.JiraAPIURL) == "":
		return fmt.Errorf("%w: Jira API URL (jira_api_url) is not configured for this user", domain.ErrConfiguration)
	case strings.TrimSpace(project.JiraProjectID) == "":
		return fmt.Errorf("%w: Jira project ID (jira_project_id) is not linked to this project", domain.ErrConfiguration)
	}
	return nil
}
