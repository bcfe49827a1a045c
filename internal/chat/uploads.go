package chat

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/google/uuid"
)

// UploadRoute is the URL prefix under which stored attachments are served.
const UploadRoute = "/uploads"

// Uploads persists chat attachments and returns their retrieval locator.
type Uploads interface {
	Save(chatID int64, name string, body io.Reader) (string, error)
	Remove(locator string) error
}

// DiskUploads stores attachments as files under Root/{chat_id}/{prefix}-{name}.
// Every stored name is unique, so a locator never changes content.
type DiskUploads struct {
	Root     string
	MaxBytes int64
}

// NewDiskUploads creates the upload root if needed.
func NewDiskUploads(root string, maxBytes int64) (*DiskUploads, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &DiskUploads{Root: root, MaxBytes: maxBytes}, nil
}

// SanitizeName strips directory components from a client-supplied file name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

func (u *DiskUploads) chatDir(chatID int64) string {
	return filepath.Join(u.Root, strconv.FormatInt(chatID, 10))
}

// Save writes body to disk and returns /uploads/{chat_id}/{stored_name}.
func (u *DiskUploads) Save(chatID int64, name string, body io.Reader) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("%w: invalid file name %q", domain.ErrValidation, name)
	}

	dir := u.chatDir(chatID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create chat upload directory: %w", err)
	}

	stored := strings.SplitN(uuid.NewString(), "-", 2)[0] + "-" + clean
	f, err := os.OpenFile(filepath.Join(dir, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	src := body
	if u.MaxBytes > 0 {
		src = io.LimitReader(body, u.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && u.MaxBytes > 0 && n > u.MaxBytes {
		err = fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrValidation, clean, u.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write upload %s: %w", clean, err)
	}

	return fmt.Sprintf("%s/%d/%s", UploadRoute, chatID, url.PathEscape(stored)), nil
}

// Remove deletes the file behind a locator returned by Save. A missing file
// is not an error.
func (u *DiskUploads) Remove(locator string) error {
	chatID, stored, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(u.chatDir(chatID), stored)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// Open returns the stored file for chatID. Names that are not plain file
// names, missing files and directories all report ErrNotFound.
func (u *DiskUploads) Open(chatID int64, stored string) (*os.File, os.FileInfo, error) {
	if stored == "" || SanitizeName(stored) != stored {
		return nil, nil, fmt.Errorf("%w: upload %q", domain.ErrNotFound, stored)
	}

	f, err := os.Open(filepath.Join(u.chatDir(chatID), stored))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: upload %q", domain.ErrNotFound, stored)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: upload %q", domain.ErrNotFound, stored)
	}
	return f, info, nil
}

// ParseLocator splits /uploads/{chat_id}/{stored_name} into its parts.
func ParseLocator(locator string) (int64, string, error) {
	rest, ok := strings.CutPrefix(locator, UploadRoute+"/")
	if !ok {
		return 0, "", fmt.Errorf("%w: locator %q", domain.ErrValidation, locator)
	}
	idPart, namePart, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, "", fmt.Errorf("%w: locator %q", domain.ErrValidation, locator)
	}
	chatID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || chatID <= 0 {
		return 0, "", fmt.Errorf("%w: locator %q", domain.ErrValidation, locator)
	}
	stored, err := url.PathUnescape(namePart)
	if err != nil || stored == "" || SanitizeName(stored) != stored {
		return 0, "", fmt.Errorf("%w: locator %q", domain.ErrValidation, locator)
	}
	return chatID, stored, nil
}
