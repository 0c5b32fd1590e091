package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ashteams-intelligence/backend/ai"
	"ashteams-intelligence/backend/internal/service"
	"ashteams-intelligence/backend/internal/store"
	"ashteams-intelligence/backend/pkg/config"
	"ashteams-intelligence/backend/pkg/jwt"
	"ashteams-intelligence/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopProvider struct{}

func (noopProvider) ChatCompletion(context.Context, []ai.ChatMessage) (string, error) {
	return "ok", nil
}

func (noopProvider) ChatCompletionStream(context.Context, []ai.ChatMessage) (ai.Stream, error) {
	return nil, ai.ErrAPIKeyMissing
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	st := store.NewMemoryStore()
	jwtService := jwt.NewService("test-secret", 0)

	r := New(Deps{
		Logger:      log,
		Config:      config.Get(),
		JWTService:  jwtService,
		UserService: service.NewUserService(st, jwtService),
		ChatService: service.NewChatService(st, noopProvider{}, log),
	})
	r.SetupRoutes()
	return r
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}
