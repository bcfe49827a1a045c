package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ashureev/chat2test/internal/domain"
)

// ExploreRequest asks for test cases derived from a web page.
type ExploreRequest struct {
	URL        string `json:"url"`
	MaxPages   int    `json:"max_pages"`
	ProjectID  int64  `json:"project_id"`
	ChatID     int64  `json:"chat_id"`
	Suggestion string `json:"suggestion"`
}

// Validate checks the required fields.
func (r ExploreRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	u, err := url.ParseRequestURI(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", domain.ErrValidation)
	}
	if r.MaxPages <= 0 {
		return fmt.Errorf("%w: max_pages must be positive", domain.ErrValidation)
	}
	if r.ProjectID <= 0 || r.ChatID <= 0 {
		return fmt.Errorf("%w: project_id and chat_id are required", domain.ErrValidation)
	}
	return nil
}

// ExploreResult is returned once exploration is recorded.
type ExploreResult struct {
	Message   string            `json:"message"`
	TestCases []domain.TestCase `json:"test_cases"`
}

// Explore records an exploration request in the chat and announces the
// current test cases. No page is fetched.
func (p *Processor) Explore(ctx context.Context, userID int64, req ExploreRequest) (*ExploreResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	project, err := p.repo.GetProject(ctx, req.ProjectID, userID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %d not found or unauthorized", domain.ErrNotFound, req.ProjectID)
	}

	chat, err := p.repo.GetChat(ctx, req.ChatID, userID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat == nil || chat.ProjectID != project.ID {
		return nil, fmt.Errorf("%w: chat %d not found or mismatched with project", domain.ErrNotFound, req.ChatID)
	}

	request := fmt.Sprintf("Explore URL: %s (max_pages=%d) Suggestion: %s", req.URL, req.MaxPages, strings.TrimSpace(req.Suggestion))
	if err := p.repo.AddMessage(ctx, &domain.Message{
		ChatID:   chat.ID,
		Sender:   domain.SenderUser,
		Content:  &request,
		FileType: domain.MediaText,
	}); err != nil {
		return nil, fmt.Errorf("save exploration request: %w", err)
	}

	sentinel := domain.SentinelApproval
	kind := domain.CategoryTestCaseApproval
	if err := p.repo.AddMessage(ctx, &domain.Message{
		ChatID:     chat.ID,
		Sender:     domain.SenderBot,
		Content:    &sentinel,
		InvokeType: &kind,
	}); err != nil {
		return nil, fmt.Errorf("save exploration reply: %w", err)
	}

	slog.Info("Page exploration recorded", "chat_id", chat.ID, "project_id", project.ID, "url", req.URL, "max_pages", req.MaxPages)
	return &ExploreResult{Message: "Exploration completed", TestCases: p.cases.List()}, nil
}
