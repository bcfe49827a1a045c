package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite opens the database at dbPath and applies pending migrations.
func NewSQLite(dbPath string) (Repository, error) {
	s, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Open opens the database at dbPath without running migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}, nil
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return runMigrations(s.db)
}

// MigrationStatus reports the applied and latest schema versions.
func (s *SQLiteStore) MigrationStatus() (*MigrationStatus, error) {
	return migrationStatus(s.db)
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateUser inserts a user and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO users (email, name, hashed_password, jira_email, jira_api_token, jira_api_url, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		user.Email, nullString(user.Name), user.HashedPassword,
		nullString(user.JiraEmail), nullString(user.JiraAPIToken), nullString(user.JiraAPIURL),
		user.CreatedAt.UnixNano(),
	)
	if err != nil {
		if shared.IsSQLiteUniqueError(err) {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get user id: %w", err)
	}
	user.ID = id
	return nil
}

const userColumns = `id, email, name, hashed_password, jira_email, jira_api_token, jira_api_url, created_at`

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var name, jiraEmail, jiraToken, jiraURL sql.NullString
	var createdAt int64

	err := row.Scan(
		&user.ID, &user.Email, &name, &user.HashedPassword,
		&jiraEmail, &jiraToken, &jiraURL, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Name = name.String
	user.JiraEmail = jiraEmail.String
	user.JiraAPIToken = jiraToken.String
	user.JiraAPIURL = jiraURL.String
	user.CreatedAt = time.Unix(0, createdAt)
	return &user, nil
}

// UpdateUser stores profile and issue-tracker fields of a user.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
	UPDATE users SET name = ?, jira_email = ?, jira_api_token = ?, jira_api_url = ?
	WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		nullString(user.Name), nullString(user.JiraEmail),
		nullString(user.JiraAPIToken), nullString(user.JiraAPIURL),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(result, "user")
}

// CreateProject inserts a project and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO projects (name, description, status, jira_project_id, user_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		project.Name, nullString(project.Description), string(project.Status),
		nullString(project.JiraProjectID), project.UserID, project.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get project id: %w", err)
	}
	project.ID = id
	return nil
}

const projectColumns = `id, name, description, status, jira_project_id, user_id, created_at`

// GetProject retrieves a project owned by userID.
func (s *SQLiteStore) GetProject(ctx context.Context, projectID, userID int64) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`,
		projectID, userID,
	)

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return project, err
}

// ListProjects returns the projects owned by userID, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID int64) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer closeRows(rows, "projects")

	projects := []*domain.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*domain.Project, error) {
	var project domain.Project
	var description, jiraProjectID sql.NullString
	var status string
	var createdAt int64

	err := row.Scan(
		&project.ID, &project.Name, &description, &status,
		&jiraProjectID, &project.UserID, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan project row: %w", err)
	}

	project.Description = description.String
	project.Status = domain.ProjectStatus(status)
	project.JiraProjectID = jiraProjectID.String
	project.CreatedAt = time.Unix(0, createdAt)
	return &project, nil
}

// UpdateProject stores name, description, status and tracker link of an owned project.
func (s *SQLiteStore) UpdateProject(ctx context.Context, project *domain.Project) error {
	query := `
	UPDATE projects SET name = ?, description = ?, status = ?, jira_project_id = ?
	WHERE id = ? AND user_id = ?`

	result, err := s.db.ExecContext(ctx, query,
		project.Name, nullString(project.Description), string(project.Status),
		nullString(project.JiraProjectID), project.ID, project.UserID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireAffected(result, "project")
}

// DeleteProject removes an owned project with its chats and messages.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID, userID int64) (bool, error) {
	var rows int64
	err := shared.RetryOnConflict(ctx, s.retry, "delete_project", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, projectID, userID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	return rows > 0, nil
}

// CreateChat inserts a chat and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *domain.Chat) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (user_id, project_id, title, created_at) VALUES (?, ?, ?, ?)`,
		chat.UserID, chat.ProjectID, nullString(chat.Title), chat.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get chat id: %w", err)
	}
	chat.ID = id
	return nil
}

// GetChat retrieves a chat reachable from a project owned by userID.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID, userID int64) (*domain.Chat, error) {
	query := `
		SELECT c.id, c.user_id, c.project_id, c.title, c.created_at
		FROM chats c
		JOIN projects p ON p.id = c.project_id
		WHERE c.id = ? AND p.user_id = ?`

	chat, err := scanChat(s.db.QueryRowContext(ctx, query, chatID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return chat, err
}

// ListChats returns the chats of userID, newest first.
func (s *SQLiteStore) ListChats(ctx context.Context, userID, projectID int64) ([]*domain.Chat, error) {
	query := `
		SELECT c.id, c.user_id, c.project_id, c.title, c.created_at
		FROM chats c
		JOIN projects p ON p.id = c.project_id
		WHERE p.user_id = ?`
	args := []any{userID}

	if projectID != 0 {
		query += ` AND c.project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY c.created_at DESC, c.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer closeRows(rows, "chats")

	chats := []*domain.Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

func scanChat(row scanner) (*domain.Chat, error) {
	var chat domain.Chat
	var title sql.NullString
	var createdAt int64

	err := row.Scan(&chat.ID, &chat.UserID, &chat.ProjectID, &title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat row: %w", err)
	}

	chat.Title = title.String
	chat.CreatedAt = time.Unix(0, createdAt)
	return &chat, nil
}

// DeleteChat removes an owned chat and its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID, userID int64) (bool, error) {
	query := `
		DELETE FROM chats
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE user_id = ?)`

	var rows int64
	err := shared.RetryOnConflict(ctx, s.retry, "delete_chat", func() error {
		result, err := s.db.ExecContext(ctx, query, chatID, userID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	return rows > 0, nil
}

// AddMessage appends a message to a chat and sets its ID.
func (s *SQLiteStore) AddMessage(ctx context.Context, msg *domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	query := `
	INSERT INTO messages (chat_id, sender, content, file_type, file_name, file_url, invoke_type, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var content, invokeType any
	if msg.Content != nil {
		content = *msg.Content
	}
	if msg.InvokeType != nil {
		invokeType = string(*msg.InvokeType)
	}

	var id int64
	err := shared.RetryOnConflict(ctx, s.retry, "add_message", func() error {
		result, err := s.db.ExecContext(ctx, query,
			msg.ChatID, string(msg.Sender), content,
			nullString(string(msg.FileType)), nullString(msg.FileName), nullString(msg.FileURL),
			invokeType, msg.Timestamp.UnixNano(),
		)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages returns a chat's messages ordered by timestamp, then insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID int64) ([]*domain.Message, error) {
	query := `
		SELECT id, chat_id, sender, content, file_type, file_name, file_url, invoke_type, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	messages := []*domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var sender string
		var content, fileType, fileName, fileURL, invokeType sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&msg.ID, &msg.ChatID, &sender, &content,
			&fileType, &fileName, &fileURL, &invokeType, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.Sender = domain.Sender(sender)
		if content.Valid {
			text := content.String
			msg.Content = &text
		}
		msg.FileType = domain.MediaKind(fileType.String)
		msg.FileName = fileName.String
		msg.FileURL = fileURL.String
		if invokeType.Valid && invokeType.String != "" {
			category := domain.Category(invokeType.String)
			msg.InvokeType = &category
		}
		msg.Timestamp = time.Unix(0, createdAt)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireAffected(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("Update affected 0 rows", "entity", entity)
		return fmt.Errorf("%s: %w", entity, domain.ErrNotFound)
	}
	return nil
}

func closeRows(rows *sql.Rows, name string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", name, "error", err)
	}
}
