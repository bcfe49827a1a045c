package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/chat2test/internal/chat"
	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/identity"
	"github.com/ashureev/chat2test/internal/testcase"
	"github.com/go-chi/chi/v5"
)

const multipartMemory = 8 << 20

// ChatHandler handles chat endpoints including the turn endpoint.
type ChatHandler struct {
	*Handler
	chats       *chat.Processor
	cases       *testcase.Store
	rateLimiter *RateLimiter
	maxUpload   int64
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler, chats *chat.Processor, cases *testcase.Store, limiter *RateLimiter, maxUpload int64) *ChatHandler {
	return &ChatHandler{
		Handler:     base,
		chats:       chats,
		cases:       cases,
		rateLimiter: limiter,
		maxUpload:   maxUpload,
	}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Delete("/{chatID}", h.Delete)
		r.Get("/{chatID}/messages", h.Messages)
		r.Post("/{chatID}/send-message", h.SendMessage)
		r.Get("/{chatID}/test-cases", h.TestCases)
	})
}

type createChatRequest struct {
	Title     string `json:"title"`
	ProjectID int64  `json:"project_id"`
}

// Create opens a chat inside an owned project.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProjectID <= 0 {
		writeError(w, r, fmt.Errorf("%w: project_id is required", domain.ErrValidation))
		return
	}

	project, err := h.repo.GetProject(r.Context(), req.ProjectID, currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if project == nil {
		writeError(w, r, fmt.Errorf("%w: project %d", domain.ErrNotFound, req.ProjectID))
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New chat"
	}
	c := &domain.Chat{UserID: project.UserID, ProjectID: project.ID, Title: title}
	if err := h.repo.CreateChat(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Chat created", "chat_id", c.ID, "project_id", c.ProjectID, "user_id", c.UserID)
	JSON(w, http.StatusCreated, c)
}

// List returns the caller's chats, optionally filtered by ?project_id.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	var projectID int64
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, fmt.Errorf("%w: invalid project_id", domain.ErrValidation))
			return
		}
		projectID = id
	}

	chats, err := h.repo.ListChats(r.Context(), currentUser(r), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if chats == nil {
		chats = []*domain.Chat{}
	}
	JSON(w, http.StatusOK, chats)
}

// Delete removes an owned chat and its messages.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := h.repo.DeleteChat(r.Context(), chatID, currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, fmt.Errorf("%w: chat %d", domain.ErrNotFound, chatID))
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}

// Messages returns the chat history with approval payloads attached.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.chats.History(r.Context(), chatID, currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, entries)
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	InvokeType  string `json:"invoke_type"`
	MessageType string `json:"message_type"`
}

// SendMessage processes one chat turn. It accepts multipart form data with
// optional upload_files, or a JSON body for text-only turns.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !h.rateLimiter.Allow(userID) {
		slog.Warn("Chat rate limit exceeded", "user_id", userID, "ip", identity.IPFromRequest(r))
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	turn := chat.Turn{ChatID: chatID, UserID: userID}
	var req sendMessageRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, r, fmt.Errorf("%w: invalid multipart body", domain.ErrValidation))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		req.Content = r.FormValue("content")
		req.InvokeType = r.FormValue("invoke_type")
		req.MessageType = r.FormValue("message_type")

		files, err := openUploads(r.MultipartForm.File["upload_files"])
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer closeUploads(files)
		turn.Attachments = files.attachments
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	turn.Content = req.Content
	turn.Mode = domain.InvokeMode(strings.ToLower(strings.TrimSpace(req.InvokeType)))

	reply, err := h.chats.Process(r.Context(), turn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Debug("Send message handled", "chat_id", chatID, "message_type", req.MessageType, "attachments", len(turn.Attachments))
	JSON(w, http.StatusOK, reply)
}

// TestCases returns the current test cases for an owned chat.
func (h *ChatHandler) TestCases(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.repo.GetChat(r.Context(), chatID, currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c == nil {
		writeError(w, r, fmt.Errorf("%w: chat %d", domain.ErrNotFound, chatID))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"chat_id":    c.ID,
		"test_cases": h.cases.List(),
	})
}

type openedUploads struct {
	attachments []chat.Attachment
	files       []multipart.File
}

func openUploads(headers []*multipart.FileHeader) (*openedUploads, error) {
	out := &openedUploads{}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeUploads(out)
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		out.files = append(out.files, f)
		out.attachments = append(out.attachments, chat.Attachment{Name: fh.Filename, Body: f})
	}
	return out, nil
}

func closeUploads(u *openedUploads) {
	for _, f := range u.files {
		_ = f.Close()
	}
}
