package chat

import (
	"context"
	"fmt"

	"github.com/ashureev/chat2test/internal/domain"
)

// Entry is a message as shown to the client. Approval rows carry the live
// test case collection.
type Entry struct {
	*domain.Message
	InvokeType *domain.Category  `json:"invoke_type"`
	TestCases  []domain.TestCase `json:"test_cases"`
}

// History returns the messages of an owned chat in conversation order.
func (p *Processor) History(ctx context.Context, chatID, userID int64) ([]Entry, error) {
	if _, err := p.ownedChat(ctx, chatID, userID); err != nil {
		return nil, err
	}

	msgs, err := p.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var cases []domain.TestCase
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e := Entry{Message: m}
		if isApproval(m) {
			if cases == nil {
				cases = p.cases.List()
			}
			kind := domain.CategoryTestCaseApproval
			e.InvokeType = &kind
			e.TestCases = cases
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// isApproval reports whether a row announces test cases. A stored kind is
// authoritative; rows written before kinds were stored fall back to the
// sentinel text.
func isApproval(m *domain.Message) bool {
	if m.Sender != domain.SenderBot {
		return false
	}
	if m.InvokeType != nil {
		return *m.InvokeType == domain.CategoryTestCaseApproval
	}
	return m.Text() == domain.SentinelApproval
}
