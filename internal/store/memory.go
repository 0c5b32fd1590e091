package store

import (
	"sort"
	"sync"
	"time"

	"ashteams-intelligence/backend/internal/models"
)

// MemoryStore keeps all entities in process memory. Every method holds the
// store lock for its full body so that id assignment and insertion stay
// atomic under concurrent requests. Identifiers are monotonically
// increasing per entity kind and are never reused.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[uint]models.User
	chats    map[uint]models.Chat
	messages map[uint]models.Message

	nextUserID    uint
	nextChatID    uint
	nextMessageID uint
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uint]models.User),
		chats:         make(map[uint]models.Chat),
		messages:      make(map[uint]models.Message),
		nextUserID:    1,
		nextChatID:    1,
		nextMessageID: 1,
	}
}

// CreateUser registers a new user. Emails are unique across all users.
func (s *MemoryStore) CreateUser(email, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return nil, ErrDuplicateEmail
		}
	}

	user := models.User{
		ID:        s.nextUserID,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: time.Now(),
	}
	s.nextUserID++
	s.users[user.ID] = user
	return &user, nil
}

// GetUser retrieves a user by id
func (s *MemoryStore) GetUser(id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

// GetUserByEmail retrieves a user by email
func (s *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}

// CreateChat provisions a chat owned by either a user or a session token
func (s *MemoryStore) CreateChat(userID uint, sessionID, title string) (*models.Chat, error) {
	if (userID == 0) == (sessionID == "") {
		return nil, ErrOwnerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	chat := models.Chat{
		ID:          s.nextChatID,
		UserID:      userID,
		Title:       title,
		IsAnonymous: sessionID != "",
		SessionID:   sessionID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextChatID++
	s.chats[chat.ID] = chat
	return &chat, nil
}

// GetChat retrieves a chat by id
func (s *MemoryStore) GetChat(id uint) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat, ok := s.chats[id]; ok {
		return &chat, nil
	}
	return nil, nil
}

// GetChatsByUser lists chats owned by a registered user
func (s *MemoryStore) GetChatsByUser(userID uint) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := make([]models.Chat, 0)
	for _, c := range s.chats {
		if !c.IsAnonymous && c.UserID == userID {
			chats = append(chats, c)
		}
	}
	return chats, nil
}

// GetChatsBySession lists chats owned by an anonymous session token
func (s *MemoryStore) GetChatsBySession(sessionID string) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := make([]models.Chat, 0)
	for _, c := range s.chats {
		if c.IsAnonymous && c.SessionID == sessionID {
			chats = append(chats, c)
		}
	}
	return chats, nil
}

// DeleteChat removes a chat and every message that references it. Deleting
// an unknown id is a no-op.
func (s *MemoryStore) DeleteChat(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chats, id)
	for msgID, msg := range s.messages {
		if msg.ChatID == id {
			delete(s.messages, msgID)
		}
	}
	return nil
}

// UpdateChatTitle renames a chat and refreshes its updatedAt. No-op when
// the chat is absent.
func (s *MemoryStore) UpdateChatTitle(id uint, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat, ok := s.chats[id]; ok {
		chat.Title = title
		chat.UpdatedAt = time.Now()
		s.chats[id] = chat
	}
	return nil
}

// CreateMessage appends a message to a chat and refreshes the parent
// chat's updatedAt. If the chat was deleted concurrently the message is
// still recorded and the refresh silently does nothing.
func (s *MemoryStore) CreateMessage(chatID uint, role, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.Message{
		ID:        s.nextMessageID,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.nextMessageID++
	s.messages[msg.ID] = msg

	if chat, ok := s.chats[chatID]; ok {
		chat.UpdatedAt = time.Now()
		s.chats[chatID] = chat
	}
	return &msg, nil
}

// GetMessagesByChat returns a chat's messages oldest first. Timestamp ties
// fall back to insertion order via the monotonic message id.
func (s *MemoryStore) GetMessagesByChat(chatID uint) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.ChatID == chatID {
			messages = append(messages, m)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// ClearMessages deletes all messages for a chat without deleting the chat
func (s *MemoryStore) ClearMessages(chatID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for msgID, msg := range s.messages {
		if msg.ChatID == chatID {
			delete(s.messages, msgID)
		}
	}
	return nil
}
