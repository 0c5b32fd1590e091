// Package store owns all persisted chat state: users, chats, and messages.
// The default backend is an in-memory map store; a Postgres-backed
// implementation of the same interface can be selected through configuration.
package store

import (
	"errors"

	"ashteams-intelligence/backend/internal/models"
)

var (
	// ErrDuplicateEmail is returned when registering an email that already exists
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrOwnerRequired is returned when a chat is created with neither a
	// user owner nor a session token, or with both
	ErrOwnerRequired = errors.New("chat requires exactly one of user or session owner")
)

// Store is the persistence contract shared by all backends.
//
// Lookups never fail on absence: a missing entity comes back as a nil
// pointer with a nil error, and callers decide the HTTP-level consequence.
// Mutations on absent entities (DeleteChat, UpdateChatTitle, ClearMessages)
// are no-ops.
type Store interface {
	CreateUser(email, passwordHash string) (*models.User, error)
	GetUser(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)

	CreateChat(userID uint, sessionID, title string) (*models.Chat, error)
	GetChat(id uint) (*models.Chat, error)
	GetChatsByUser(userID uint) ([]models.Chat, error)
	GetChatsBySession(sessionID string) ([]models.Chat, error)
	DeleteChat(id uint) error
	UpdateChatTitle(id uint, title string) error

	CreateMessage(chatID uint, role, content string) (*models.Message, error)
	GetMessagesByChat(chatID uint) ([]models.Message, error)
	ClearMessages(chatID uint) error
}
