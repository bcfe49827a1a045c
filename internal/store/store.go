// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/chat2test/internal/domain"
)

// Repository defines the interface for persisting users, projects, chats and messages.
// Lookups return nil, nil when no row matches.
type Repository interface {
	// CreateUser inserts a user and sets its ID and CreatedAt.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// GetUserByEmail retrieves a user by email address.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateUser stores profile and issue-tracker fields of a user.
	UpdateUser(ctx context.Context, user *domain.User) error

	// CreateProject inserts a project and sets its ID and CreatedAt.
	CreateProject(ctx context.Context, project *domain.Project) error

	// GetProject retrieves a project owned by userID.
	GetProject(ctx context.Context, projectID, userID int64) (*domain.Project, error)

	// ListProjects returns the projects owned by userID, newest first.
	ListProjects(ctx context.Context, userID int64) ([]*domain.Project, error)

	// UpdateProject stores name, description, status and tracker link of an owned project.
	UpdateProject(ctx context.Context, project *domain.Project) error

	// DeleteProject removes an owned project with its chats and messages.
	// It reports whether a row was deleted.
	DeleteProject(ctx context.Context, projectID, userID int64) (bool, error)

	// CreateChat inserts a chat and sets its ID and CreatedAt.
	CreateChat(ctx context.Context, chat *domain.Chat) error

	// GetChat retrieves a chat reachable from a project owned by userID.
	GetChat(ctx context.Context, chatID, userID int64) (*domain.Chat, error)

	// ListChats returns the chats of userID, newest first. A zero projectID lists all projects.
	ListChats(ctx context.Context, userID, projectID int64) ([]*domain.Chat, error)

	// DeleteChat removes an owned chat and its messages.
	DeleteChat(ctx context.Context, chatID, userID int64) (bool, error)

	// AddMessage appends a message to a chat and sets its ID.
	// A zero Timestamp is replaced with the current time.
	AddMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns a chat's messages in conversation order.
	ListMessages(ctx context.Context, chatID int64) ([]*domain.Message, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
