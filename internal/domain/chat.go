package domain

import (
	"time"
)

// Chat is a conversation inside a project.
type Chat struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProjectID int64     `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one persisted row of a chat log.
type Message struct {
	ID         int64     `json:"id"`
	ChatID     int64     `json:"chat_id"`
	Sender     Sender    `json:"sender"`
	Content    *string   `json:"content"`
	FileType   MediaKind `json:"file_type,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	InvokeType *Category `json:"invoke_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// Text returns the message content, or "" when it is null.
func (m *Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}
