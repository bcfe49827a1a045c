package domain

import (
	"path/filepath"
	"strings"
)

// MediaKind is the coarse classification of a turn's attachments.
type MediaKind string

const (
	MediaText     MediaKind = "text"
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
	MediaFile     MediaKind = "file"
)

// ClassifyMedia returns the media kind for a list of attachment file names.
// Only the first name is inspected.
func ClassifyMedia(names []string) MediaKind {
	if len(names) == 0 {
		return MediaText
	}
	switch strings.ToLower(filepath.Ext(names[0])) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return MediaImage
	case ".pdf":
		return MediaDocument
	case ".webm", ".mp3", ".wav", ".m4a":
		return MediaAudio
	default:
		return MediaFile
	}
}

// Category labels the bot reply of a turn.
type Category string

const (
	CategoryAIResponse       Category = "ai_response"
	CategoryUserInterrupt    Category = "user_interrupt"
	CategoryTestCaseApproval Category = "test-case-approval"
)

// SentinelApproval is the bot text announcing that test cases are ready.
const SentinelApproval = "Test cases available for selection"

// InvokeMode is the client-supplied mode tag of a turn.
type InvokeMode string

const (
	InvokeNew    InvokeMode = "new"
	InvokeResume InvokeMode = "resume"
)

// Valid reports whether m is empty or a known mode.
func (m InvokeMode) Valid() bool {
	return m == "" || m == InvokeNew || m == InvokeResume
}

// DecideCategory picks the reply category for a turn. First match wins.
func DecideCategory(content string, hasAttachments bool) Category {
	lower := strings.ToLower(content)
	if hasAttachments && strings.Contains(lower, "automation") {
		return CategoryUserInterrupt
	}
	if strings.Contains(lower, "show test") {
		return CategoryTestCaseApproval
	}
	return CategoryAIResponse
}
