package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/go-chi/chi/v5"
)

// UploadOpener resolves a stored attachment of a chat.
type UploadOpener interface {
	Open(chatID int64, stored string) (*os.File, os.FileInfo, error)
}

// UploadHandler serves chat attachments to the owner of the chat.
type UploadHandler struct {
	*Handler
	files UploadOpener
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(base *Handler, files UploadOpener) *UploadHandler {
	return &UploadHandler{Handler: base, files: files}
}

// RegisterRoutes registers attachment routes relative to the upload prefix.
func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{chatID}/{name}", h.Serve)
}

// Serve streams one attachment. Unknown chats, foreign chats and anything
// that is not a stored file all answer 404.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	chatID, err := idParam(r, "chatID")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: upload", domain.ErrNotFound))
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

	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if name, err = url.PathUnescape(name); err != nil {
			writeError(w, r, fmt.Errorf("%w: upload", domain.ErrNotFound))
			return
		}
	}

	f, info, err := h.files.Open(c.ID, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
