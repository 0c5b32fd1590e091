package service

import (
	"context"
	"errors"
	"strings"

	"ashteams-intelligence/backend/ai"
	"ashteams-intelligence/backend/internal/models"
	"ashteams-intelligence/backend/internal/store"
	"ashteams-intelligence/backend/pkg/logger"
)

var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrChatAccessDenied = errors.New("chat belongs to a different owner")
	ErrAuthRequired     = errors.New("authentication or session id required")
)

// FallbackAssistantMessage is persisted as the assistant turn whenever the
// completion provider fails. The exchange still succeeds from the caller's
// point of view.
const FallbackAssistantMessage = "I apologize, but I'm having trouble generating a response right now. Please try again later."

// ChatService orchestrates chat ownership, history, and the relay of
// conversations to the completion provider.
type ChatService struct {
	store    store.Store
	provider ai.Provider
	log      *logger.Logger
}

// NewChatService creates a new chat service
func NewChatService(st store.Store, provider ai.Provider, log *logger.Logger) *ChatService {
	return &ChatService{store: st, provider: provider, log: log}
}

// ListChats returns the chats visible to the caller
func (s *ChatService) ListChats(userID uint, sessionID string) ([]models.Chat, error) {
	switch {
	case userID != 0:
		return s.store.GetChatsByUser(userID)
	case sessionID != "":
		return s.store.GetChatsBySession(sessionID)
	default:
		return nil, ErrAuthRequired
	}
}

// CreateChat provisions a chat for the caller
func (s *ChatService) CreateChat(userID uint, sessionID, title string) (*models.Chat, error) {
	if userID == 0 && sessionID == "" {
		return nil, ErrAuthRequired
	}
	// An authenticated identity takes precedence over a session token.
	if userID != 0 {
		sessionID = ""
	}
	return s.store.CreateChat(userID, sessionID, title)
}

// AuthorizeChat resolves a chat and checks the caller's claim to it.
// Existence is always decided before ownership, so probing ids with the
// wrong credential still distinguishes 404 from 403.
func (s *ChatService) AuthorizeChat(chatID, userID uint, sessionID string) (*models.Chat, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	switch {
	case userID != 0:
		if chat.IsAnonymous || chat.UserID != userID {
			return nil, ErrChatAccessDenied
		}
	case sessionID != "":
		if !chat.IsAnonymous || chat.SessionID != sessionID {
			return nil, ErrChatAccessDenied
		}
	default:
		return nil, ErrAuthRequired
	}
	return chat, nil
}

// DeleteChat removes an authorized chat and all of its messages
func (s *ChatService) DeleteChat(chatID, userID uint, sessionID string) error {
	if _, err := s.AuthorizeChat(chatID, userID, sessionID); err != nil {
		return err
	}
	return s.store.DeleteChat(chatID)
}

// RenameChat updates an authorized chat's title and returns the fresh chat
func (s *ChatService) RenameChat(chatID, userID uint, sessionID, title string) (*models.Chat, error) {
	if _, err := s.AuthorizeChat(chatID, userID, sessionID); err != nil {
		return nil, err
	}
	if title != "" {
		if err := s.store.UpdateChatTitle(chatID, title); err != nil {
			return nil, err
		}
	}
	return s.store.GetChat(chatID)
}

// ListMessages returns an authorized chat's messages oldest first
func (s *ChatService) ListMessages(chatID, userID uint, sessionID string) ([]models.Message, error) {
	if _, err := s.AuthorizeChat(chatID, userID, sessionID); err != nil {
		return nil, err
	}
	return s.store.GetMessagesByChat(chatID)
}

// ClearMessages removes an authorized chat's messages, keeping the chat
func (s *ChatService) ClearMessages(chatID, userID uint, sessionID string) error {
	if _, err := s.AuthorizeChat(chatID, userID, sessionID); err != nil {
		return err
	}
	return s.store.ClearMessages(chatID)
}

// SendMessage persists the user's turn, relays the full history to the
// completion provider, and persists the reply. Provider failures never
// surface: the assistant turn is substituted with the fallback text and
// the exchange reports success.
func (s *ChatService) SendMessage(ctx context.Context, chatID uint, content string) (*models.SendMessageResponse, error) {
	userMessage, err := s.store.CreateMessage(chatID, models.RoleUser, strings.TrimSpace(content))
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetMessagesByChat(chatID)
	if err != nil {
		return nil, err
	}

	reply, err := s.provider.ChatCompletion(ctx, toProviderMessages(history))
	if err != nil {
		s.log.LogError(err, "completion provider failed, substituting fallback reply", "chat_id", chatID)
		reply = FallbackAssistantMessage
	}

	aiMessage, err := s.store.CreateMessage(chatID, models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}

	return &models.SendMessageResponse{
		UserMessage: *userMessage,
		AIMessage:   *aiMessage,
	}, nil
}

// StreamMessage persists the user's turn and relays the provider's
// incremental reply through onFragment. The accumulated text is persisted
// as the assistant turn once the stream ends; a stream that dies before
// producing anything falls back like SendMessage does.
func (s *ChatService) StreamMessage(ctx context.Context, chatID uint, content string, onFragment func(string) error) (*models.SendMessageResponse, error) {
	userMessage, err := s.store.CreateMessage(chatID, models.RoleUser, strings.TrimSpace(content))
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetMessagesByChat(chatID)
	if err != nil {
		return nil, err
	}

	reply, err := s.relayStream(ctx, toProviderMessages(history), onFragment)
	if err != nil {
		if reply != "" {
			// The consumer already saw these fragments; keep them.
			s.log.LogError(err, "completion stream ended early, persisting partial reply", "chat_id", chatID)
		} else {
			s.log.LogError(err, "completion stream failed, substituting fallback reply", "chat_id", chatID)
			reply = FallbackAssistantMessage
		}
	}

	aiMessage, err := s.store.CreateMessage(chatID, models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}

	return &models.SendMessageResponse{
		UserMessage: *userMessage,
		AIMessage:   *aiMessage,
	}, nil
}

func (s *ChatService) relayStream(ctx context.Context, messages []ai.ChatMessage, onFragment func(string) error) (string, error) {
	stream, err := s.provider.ChatCompletionStream(ctx, messages)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		fragment := stream.Content()
		sb.WriteString(fragment)
		if onFragment != nil {
			if err := onFragment(fragment); err != nil {
				// Consumer abandoned the stream; Close releases the
				// transport via the deferred call.
				return sb.String(), err
			}
		}
	}
	return sb.String(), stream.Err()
}

func toProviderMessages(history []models.Message) []ai.ChatMessage {
	out := make([]ai.ChatMessage, len(history))
	for i, m := range history {
		out[i] = ai.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
