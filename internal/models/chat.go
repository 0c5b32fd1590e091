package models

import (
	"time"
)

// Message roles. Assistant turns are always relayed from the completion
// provider or substituted by the fallback text.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat represents a conversation. A chat is owned either by a registered
// user (UserID set) or by an anonymous session token (SessionID set),
// never both.
type Chat struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index" json:"userId,omitempty"`
	Title       string    `json:"title"`
	IsAnonymous bool      `json:"isAnonymous"`
	SessionID   string    `gorm:"index" json:"sessionId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Message represents a single turn within a chat
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"index" json:"chatId"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateChatRequest is the request structure for creating a chat
type CreateChatRequest struct {
	Title     string `json:"title"`
	SessionID string `json:"sessionId"`
}

// UpdateChatRequest is the request structure for renaming a chat
type UpdateChatRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest is the request structure for posting a message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse carries both persisted turns of a completed exchange
type SendMessageResponse struct {
	UserMessage Message `json:"userMessage"`
	AIMessage   Message `json:"aiMessage"`
}
