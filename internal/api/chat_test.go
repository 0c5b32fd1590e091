package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ashteams-intelligence/backend/ai"
	"ashteams-intelligence/backend/internal/models"
	"ashteams-intelligence/backend/internal/service"
	"ashteams-intelligence/backend/internal/store"
	"ashteams-intelligence/backend/pkg/jwt"
	"ashteams-intelligence/backend/pkg/logger"
	"ashteams-intelligence/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	reply     string
	err       error
	fragments []string
}

func (p *scriptedProvider) ChatCompletion(context.Context, []ai.ChatMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *scriptedProvider) ChatCompletionStream(context.Context, []ai.ChatMessage) (ai.Stream, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &scriptedStream{fragments: p.fragments}, nil
}

type scriptedStream struct {
	fragments []string
	pos       int
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *scriptedStream) Content() string { return s.fragments[s.pos-1] }
func (s *scriptedStream) Err() error      { return nil }
func (s *scriptedStream) Close() error    { return nil }

type testEnv struct {
	router     *gin.Engine
	jwtService *jwt.Service
}

func newTestEnv(provider ai.Provider) *testEnv {
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	jwtService := jwt.NewService("test-secret", 0)

	userService := service.NewUserService(st, jwtService)
	chatService := service.NewChatService(st, provider, log)

	router := gin.New()
	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.OptionalAuth(jwtService))
	NewAuthHandler(userService, log).RegisterRoutes(apiGroup)
	NewChatHandler(chatService, log).RegisterRoutes(apiGroup)

	return &testEnv{router: router, jwtService: jwtService}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAnonymousSessionIssuesToken(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodPost, "/api/anonymous-session", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]string](t, w)
	assert.NotEmpty(t, body["sessionId"])
}

func TestCreateAnonymousChat(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "Chat 1", SessionID: "abc"})
	require.Equal(t, http.StatusCreated, w.Code)

	chat := decode[models.Chat](t, w)
	assert.Equal(t, uint(1), chat.ID)
	assert.Equal(t, "Chat 1", chat.Title)
	assert.True(t, chat.IsAnonymous)
	assert.Equal(t, "abc", chat.SessionID)
}

func TestCreateChatWithoutCredential(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "orphan"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "Authentication or session ID required", body["message"])
}

func TestCreateChatWithoutTitle(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{SessionID: "abc"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "Title is required", body["message"])
}

func TestCreateChatAcceptsWhitespaceTitle(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "   ", SessionID: "abc"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "   ", decode[models.Chat](t, w).Title)
}

func TestRenameChatEmptyTitleReturnsUnchangedChat(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "original", SessionID: "abc"})

	// An empty title skips the update rather than failing; the existing
	// chat comes back untouched.
	w := env.do(t, http.MethodPatch, "/api/chats/1?sessionId=abc", "", models.UpdateChatRequest{Title: ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "original", decode[models.Chat](t, w).Title)

	// The ladder still applies before the title is even considered.
	w = env.do(t, http.MethodPatch, "/api/chats/99?sessionId=abc", "", models.UpdateChatRequest{Title: ""})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListChatsScopedBySession(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "mine", SessionID: "abc"})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "theirs", SessionID: "xyz"})

	w := env.do(t, http.MethodGet, "/api/chats?sessionId=abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	chats := decode[[]models.Chat](t, w)
	require.Len(t, chats, 1)
	assert.Equal(t, "mine", chats[0].Title)
}

func TestListChatsWithoutCredential(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodGet, "/api/chats", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageEmptyContent(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "Chat 1", SessionID: "abc"})

	w := env.do(t, http.MethodPost, "/api/chats/1/messages?sessionId=abc", "", models.SendMessageRequest{Content: "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "Message content is required", body["message"])
}

func TestSendMessageMissingChatWithBlankContent(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	// The chat lookup runs before content validation, so a missing chat
	// is a 404 even when the body would also fail validation.
	w := env.do(t, http.MethodPost, "/api/chats/99/messages?sessionId=abc", "", models.SendMessageRequest{Content: "  "})
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "Chat not found", body["message"])
}

func TestSendMessageFallbackOnProviderFailure(t *testing.T) {
	env := newTestEnv(&scriptedProvider{err: &ai.UpstreamError{StatusCode: 500, Body: "boom"}})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "Chat 1", SessionID: "abc"})

	w := env.do(t, http.MethodPost, "/api/chats/1/messages?sessionId=abc", "", models.SendMessageRequest{Content: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.SendMessageResponse](t, w)
	assert.Equal(t, "hello", resp.UserMessage.Content)
	assert.Equal(t, service.FallbackAssistantMessage, resp.AIMessage.Content)

	// Both turns were persisted and retrievable.
	w = env.do(t, http.MethodGet, "/api/chats/1/messages?sessionId=abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := decode[[]models.Message](t, w)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, service.FallbackAssistantMessage, messages[1].Content)
}

func TestSendMessageSuccess(t *testing.T) {
	env := newTestEnv(&scriptedProvider{reply: "hi there"})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "Chat 1", SessionID: "abc"})

	w := env.do(t, http.MethodPost, "/api/chats/1/messages?sessionId=abc", "", models.SendMessageRequest{Content: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.SendMessageResponse](t, w)
	assert.Equal(t, "hi there", resp.AIMessage.Content)
	assert.Equal(t, models.RoleAssistant, resp.AIMessage.Role)
}

func TestChatNotFoundBeforeAuthorization(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	// Missing chat is a 404 even with no credential at all.
	w := env.do(t, http.MethodDelete, "/api/chats/42", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "Chat not found", body["message"])
}

func TestCrossSessionAccessDenied(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "secret", SessionID: "abc"})

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/chats/1/messages?sessionId=other", nil},
		{http.MethodDelete, "/api/chats/1?sessionId=other", nil},
		{http.MethodPatch, "/api/chats/1?sessionId=other", models.UpdateChatRequest{Title: "stolen"}},
		{http.MethodPost, "/api/chats/1/messages?sessionId=other", models.SendMessageRequest{Content: "hi"}},
	} {
		w := env.do(t, tc.method, tc.path, "", tc.body)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestChatAccessWithoutCredential(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "secret", SessionID: "abc"})

	w := env.do(t, http.MethodGet, "/api/chats/1/messages", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "Authentication required", body["message"])
}

func TestAuthenticatedChatLifecycle(t *testing.T) {
	env := newTestEnv(&scriptedProvider{reply: "ok"})

	w := env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{Email: "frank@example.com", Password: "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	registered := decode[map[string]json.RawMessage](t, w)
	var token string
	require.NoError(t, json.Unmarshal(registered["token"], &token))

	w = env.do(t, http.MethodPost, "/api/chats", token, models.CreateChatRequest{Title: "work"})
	require.Equal(t, http.StatusCreated, w.Code)
	chat := decode[models.Chat](t, w)
	assert.False(t, chat.IsAnonymous)
	assert.Equal(t, uint(1), chat.UserID)

	// A session token cannot reach an authenticated chat.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages?sessionId=abc", chat.ID), "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The owner can rename and delete it.
	w = env.do(t, http.MethodPatch, fmt.Sprintf("/api/chats/%d", chat.ID), token, models.UpdateChatRequest{Title: "renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "renamed", decode[models.Chat](t, w).Title)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/chats/%d", chat.ID), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", chat.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearMessagesKeepsChat(t *testing.T) {
	env := newTestEnv(&scriptedProvider{reply: "ok"})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "Chat 1", SessionID: "abc"})
	env.do(t, http.MethodPost, "/api/chats/1/messages?sessionId=abc", "", models.SendMessageRequest{Content: "hello"})

	w := env.do(t, http.MethodDelete, "/api/chats/1/messages?sessionId=abc", "", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/chats/1/messages?sessionId=abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Message](t, w), 0)

	w = env.do(t, http.MethodGet, "/api/chats?sessionId=abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Chat](t, w), 1)
}

func TestStreamMessageEmitsFragmentsAndDone(t *testing.T) {
	env := newTestEnv(&scriptedProvider{fragments: []string{"Hel", "lo"}})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "Chat 1", SessionID: "abc"})

	w := env.do(t, http.MethodGet, "/api/chats/1/stream?sessionId=abc&message=hi", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"content":"Hel"}`)
	assert.Contains(t, body, `data: {"content":"lo"}`)
	assert.Contains(t, body, "data: [DONE]")

	// The accumulated reply was persisted alongside the user turn.
	w = env.do(t, http.MethodGet, "/api/chats/1/messages?sessionId=abc", "", nil)
	messages := decode[[]models.Message](t, w)
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello", messages[1].Content)
}

func TestStreamMessageRequiresContent(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})
	env.do(t, http.MethodPost, "/api/chats", "", models.CreateChatRequest{Title: "Chat 1", SessionID: "abc"})

	w := env.do(t, http.MethodGet, "/api/chats/1/stream?sessionId=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidChatID(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodGet, "/api/chats/abc/messages?sessionId=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
