package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ashteams-intelligence/backend/internal/models"
	"ashteams-intelligence/backend/internal/service"
	"ashteams-intelligence/backend/pkg/logger"
	"ashteams-intelligence/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatHandler handles chat and message requests
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{service: chatService, logger: log}
}

// RegisterRoutes registers the chat routes on the given group
func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/anonymous-session", h.CreateAnonymousSession)
	rg.GET("/chats", h.ListChats)
	rg.POST("/chats", h.CreateChat)
	rg.DELETE("/chats/:id", h.DeleteChat)
	rg.PATCH("/chats/:id", h.RenameChat)
	rg.GET("/chats/:id/messages", h.ListMessages)
	rg.POST("/chats/:id/messages", h.SendMessage)
	rg.DELETE("/chats/:id/messages", h.ClearMessages)
	rg.GET("/chats/:id/stream", h.StreamMessage)
}

// CreateAnonymousSession issues an opaque token that scopes chats for
// callers without an account
func (h *ChatHandler) CreateAnonymousSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessionId": uuid.New().String()})
}

// ListChats returns the caller's chats, scoped by identity or session token
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := middleware.AuthenticatedUserID(c)
	sessionID := c.Query("sessionId")

	chats, err := h.service.ListChats(userID, sessionID)
	if err != nil {
		if err == service.ErrAuthRequired {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Authentication or session ID required"})
			return
		}
		h.logger.Error("Error listing chats", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch chats"})
		return
	}

	c.JSON(http.StatusOK, chats)
}

// CreateChat creates a chat owned by the caller's identity or session token
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req models.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title is required"})
		return
	}

	userID := middleware.AuthenticatedUserID(c)

	chat, err := h.service.CreateChat(userID, req.SessionID, req.Title)
	if err != nil {
		if err == service.ErrAuthRequired {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Authentication or session ID required"})
			return
		}
		h.logger.Error("Error creating chat", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create chat"})
		return
	}

	c.JSON(http.StatusCreated, chat)
}

// DeleteChat removes an authorized chat and all of its messages
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteChat(chatID, middleware.AuthenticatedUserID(c), c.Query("sessionId")); err != nil {
		h.writeServiceError(c, err, "Failed to delete chat")
		return
	}

	c.Status(http.StatusNoContent)
}

// RenameChat updates an authorized chat's title
func (h *ChatHandler) RenameChat(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	// An absent or empty title is not an error; the update is simply
	// skipped and the current chat returned.
	var req models.UpdateChatRequest
	_ = c.ShouldBindJSON(&req)

	chat, err := h.service.RenameChat(chatID, middleware.AuthenticatedUserID(c), c.Query("sessionId"), req.Title)
	if err != nil {
		h.writeServiceError(c, err, "Failed to update chat")
		return
	}

	c.JSON(http.StatusOK, chat)
}

// ListMessages returns an authorized chat's messages, oldest first
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(chatID, middleware.AuthenticatedUserID(c), c.Query("sessionId"))
	if err != nil {
		h.writeServiceError(c, err, "Failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage appends the caller's message and the AI reply to an
// authorized chat. Completion failures are absorbed into a fallback
// assistant message, so the response is 200 either way.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	if _, err := h.service.AuthorizeChat(chatID, middleware.AuthenticatedUserID(c), c.Query("sessionId")); err != nil {
		h.writeServiceError(c, err, "Failed to send message")
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message content is required"})
		return
	}

	resp, err := h.service.SendMessage(c.Request.Context(), chatID, req.Content)
	if err != nil {
		h.logger.Error("Error sending message", "chatId", chatID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send message"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ClearMessages removes an authorized chat's messages, keeping the chat
func (h *ChatHandler) ClearMessages(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	if err := h.service.ClearMessages(chatID, middleware.AuthenticatedUserID(c), c.Query("sessionId")); err != nil {
		h.writeServiceError(c, err, "Failed to clear messages")
		return
	}

	c.Status(http.StatusNoContent)
}

// StreamMessage relays the AI reply for a new message as server-sent
// events. Each fragment is sent as a data line; the stream ends with
// a [DONE] marker once the full reply has been persisted.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	if _, err := h.service.AuthorizeChat(chatID, middleware.AuthenticatedUserID(c), c.Query("sessionId")); err != nil {
		h.writeServiceError(c, err, "Failed to send message")
		return
	}

	content := c.Query("message")
	if strings.TrimSpace(content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message content is required"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	flusher, _ := c.Writer.(http.Flusher)
	resp, err := h.service.StreamMessage(c.Request.Context(), chatID, content, func(fragment string) error {
		payload, err := sseDelta(fragment)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are already on the wire; all we can do is end the stream.
		h.logger.Error("Error streaming message", "chatId", chatID, "error", err.Error())
		return
	}

	if final, err := sseFinal(resp); err == nil {
		fmt.Fprintf(c.Writer, "data: %s\n\n", final)
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// chatID parses the :id path parameter, rejecting non-numeric ids
func (h *ChatHandler) chatID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid chat ID"})
		return 0, false
	}
	return uint(id), true
}

// writeServiceError maps chat service errors onto HTTP responses. The
// not-found check runs before ownership in the service, so a miss is
// always a 404 regardless of credentials.
func (h *ChatHandler) writeServiceError(c *gin.Context, err error, fallback string) {
	switch err {
	case service.ErrChatNotFound:
		c.JSON(http.StatusNotFound, gin.H{"message": "Chat not found"})
	case service.ErrChatAccessDenied:
		c.JSON(http.StatusForbidden, gin.H{"message": "Unauthorized"})
	case service.ErrAuthRequired:
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
	default:
		h.logger.Error("Chat request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": fallback})
	}
}
