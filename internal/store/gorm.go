package store

import (
	"errors"
	"time"

	"ashteams-intelligence/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GormStore is the Postgres-backed Store implementation, selected when
// DATABASE_URL is configured. It preserves the same contract as the
// in-memory store: absent lookups return nil, mutations on absent rows
// are no-ops.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore connects to Postgres and migrates the schema
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.User{}, &models.Chat{}, &models.Message{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// CreateUser registers a new user, rejecting duplicate emails
func (s *GormStore) CreateUser(email, passwordHash string) (*models.User, error) {
	var existing models.User
	result := s.db.Where("email = ?", email).First(&existing)
	if result.RowsAffected > 0 {
		return nil, ErrDuplicateEmail
	}

	user := models.User{Email: email, Password: passwordHash}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser retrieves a user by id
func (s *GormStore) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *GormStore) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateChat provisions a chat owned by either a user or a session token
func (s *GormStore) CreateChat(userID uint, sessionID, title string) (*models.Chat, error) {
	if (userID == 0) == (sessionID == "") {
		return nil, ErrOwnerRequired
	}

	chat := models.Chat{
		UserID:      userID,
		Title:       title,
		IsAnonymous: sessionID != "",
		SessionID:   sessionID,
	}
	if err := s.db.Create(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChat retrieves a chat by id
func (s *GormStore) GetChat(id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := s.db.First(&chat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// GetChatsByUser lists chats owned by a registered user
func (s *GormStore) GetChatsByUser(userID uint) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	err := s.db.Where("user_id = ? AND is_anonymous = ?", userID, false).Find(&chats).Error
	return chats, err
}

// GetChatsBySession lists chats owned by an anonymous session token
func (s *GormStore) GetChatsBySession(sessionID string) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	err := s.db.Where("session_id = ? AND is_anonymous = ?", sessionID, true).Find(&chats).Error
	return chats, err
}

// DeleteChat removes a chat and cascades deletion to its messages
func (s *GormStore) DeleteChat(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Chat{}, id).Error
	})
}

// UpdateChatTitle renames a chat; no-op when the chat is absent
func (s *GormStore) UpdateChatTitle(id uint, title string) error {
	return s.db.Model(&models.Chat{}).Where("id = ?", id).
		Updates(map[string]any{"title": title, "updated_at": time.Now()}).Error
}

// CreateMessage appends a message and refreshes the parent chat's updatedAt
func (s *GormStore) CreateMessage(chatID uint, role, content string) (*models.Message, error) {
	msg := models.Message{ChatID: chatID, Role: role, Content: content}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	// Refresh is best-effort: a concurrently deleted chat simply matches
	// zero rows.
	s.db.Model(&models.Chat{}).Where("id = ?", chatID).
		Update("updated_at", time.Now())
	return &msg, nil
}

// GetMessagesByChat returns a chat's messages oldest first
func (s *GormStore) GetMessagesByChat(chatID uint) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	err := s.db.Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").Find(&messages).Error
	return messages, err
}

// ClearMessages deletes all messages for a chat without deleting the chat
func (s *GormStore) ClearMessages(chatID uint) error {
	return s.db.Where("chat_id = ?", chatID).Delete(&models.Message{}).Error
}
