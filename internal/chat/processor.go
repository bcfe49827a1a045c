// Package chat processes chat turns: it classifies each user message, builds
// the bot reply and persists both as message rows.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/store"
)

// Model answers free-text turns.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Cases exposes the current test case collection.
type Cases interface {
	List() []domain.TestCase
}

// Attachment is a file sent with a turn.
type Attachment struct {
	Name string
	Body io.Reader
}

// Turn is one incoming user message.
type Turn struct {
	ChatID      int64
	UserID      int64
	Content     string
	Mode        domain.InvokeMode
	Attachments []Attachment
}

// Reply is the bot's answer to a turn. TestCases is only set for
// test-case-approval replies.
type Reply struct {
	Type      domain.Category   `json:"type"`
	Response  string            `json:"response"`
	TestCases []domain.TestCase `json:"test_cases"`
}

// Processor handles chat turns.
type Processor struct {
	repo    store.Repository
	cases   Cases
	model   Model
	uploads Uploads
}

// NewProcessor creates a turn processor.
func NewProcessor(repo store.Repository, cases Cases, model Model, uploads Uploads) *Processor {
	return &Processor{repo: repo, cases: cases, model: model, uploads: uploads}
}

// Process handles one turn and returns the bot reply. Model failures are
// returned as reply text, never as an error.
func (p *Processor) Process(ctx context.Context, turn Turn) (*Reply, error) {
	if !turn.Mode.Valid() {
		return nil, fmt.Errorf("%w: invoke_type must be %q or %q", domain.ErrValidation, domain.InvokeNew, domain.InvokeResume)
	}
	hasText := strings.TrimSpace(turn.Content) != ""
	if !hasText && len(turn.Attachments) == 0 {
		return nil, fmt.Errorf("%w: content or upload_files is required", domain.ErrValidation)
	}

	chat, err := p.ownedChat(ctx, turn.ChatID, turn.UserID)
	if err != nil {
		return nil, err
	}

	userMsg, saved, err := p.userMessage(chat.ID, turn, hasText)
	if err != nil {
		return nil, err
	}
	if err := p.repo.AddMessage(ctx, userMsg); err != nil {
		p.discardUploads(saved)
		return nil, fmt.Errorf("save user message: %w", err)
	}

	names := attachmentNames(turn.Attachments)
	reply := p.respond(ctx, turn.Content, hasText, names)

	category := reply.Type
	botMsg := &domain.Message{
		ChatID:     chat.ID,
		Sender:     domain.SenderBot,
		Content:    &reply.Response,
		InvokeType: &category,
	}
	if err := p.repo.AddMessage(ctx, botMsg); err != nil {
		return nil, fmt.Errorf("save bot message: %w", err)
	}

	slog.Info("Chat turn processed",
		"chat_id", chat.ID,
		"user_id", turn.UserID,
		"mode", turn.Mode,
		"file_type", userMsg.FileType,
		"category", reply.Type)
	return reply, nil
}

func (p *Processor) ownedChat(ctx context.Context, chatID, userID int64) (*domain.Chat, error) {
	chat, err := p.repo.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat == nil {
		return nil, fmt.Errorf("%w: chat %d", domain.ErrNotFound, chatID)
	}
	return chat, nil
}

// userMessage stores the attachments and builds the user row. Only the first
// attachment decides the media kind and the locator. It also returns the
// locators of every stored attachment.
func (p *Processor) userMessage(chatID int64, turn Turn, hasText bool) (*domain.Message, []string, error) {
	names := attachmentNames(turn.Attachments)
	msg := &domain.Message{
		ChatID:   chatID,
		Sender:   domain.SenderUser,
		FileType: domain.ClassifyMedia(names),
		FileName: strings.Join(names, ","),
	}
	if hasText {
		content := turn.Content
		msg.Content = &content
	}

	saved := make([]string, 0, len(turn.Attachments))
	for _, a := range turn.Attachments {
		locator, err := p.uploads.Save(chatID, a.Name, a.Body)
		if err != nil {
			p.discardUploads(saved)
			return nil, nil, fmt.Errorf("store attachment: %w", err)
		}
		saved = append(saved, locator)
	}
	if len(saved) > 0 {
		msg.FileURL = saved[0]
	}
	return msg, saved, nil
}

// discardUploads removes attachments stored for a turn that was not saved.
func (p *Processor) discardUploads(locators []string) {
	for _, locator := range locators {
		if err := p.uploads.Remove(locator); err != nil {
			slog.Warn("Failed to remove orphaned upload", "locator", locator, "error", err)
		}
	}
}

func (p *Processor) respond(ctx context.Context, content string, hasText bool, names []string) *Reply {
	category := domain.DecideCategory(content, len(names) > 0)
	reply := &Reply{Type: category}

	switch category {
	case domain.CategoryUserInterrupt:
		reply.Response = fmt.Sprintf("You attached %d file(s): %s. Do you want to proceed with automation using these files?",
			len(names), strings.Join(names, ", "))
	case domain.CategoryTestCaseApproval:
		reply.Response = domain.SentinelApproval
		reply.TestCases = p.cases.List()
	default:
		if !hasText {
			reply.Response = fmt.Sprintf("Received %d file(s): %s", len(names), strings.Join(names, ", "))
			break
		}
		answer, err := p.model.Complete(ctx, content)
		if err != nil {
			reply.Response = "Error: " + err.Error()
			break
		}
		reply.Response = answer
	}
	return reply
}

func attachmentNames(attachments []Attachment) []string {
	if len(attachments) == 0 {
		return nil
	}
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, SanitizeName(a.Name))
	}
	return names
}
