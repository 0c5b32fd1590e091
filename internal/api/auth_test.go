package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"ashteams-intelligence/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{Email: "grace@example.com", Password: "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{Email: "grace@example.com", Password: "other456"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})
	env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{Email: "heidi@example.com", Password: "secret123"})

	w := env.do(t, http.MethodPost, "/api/login", "", models.LoginRequest{Email: "heidi@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(&scriptedProvider{})

	w := env.do(t, http.MethodPost, "/api/register", "", models.RegisterRequest{Email: "ivan@example.com", Password: "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	registered := decode[map[string]json.RawMessage](t, w)
	var token string
	require.NoError(t, json.Unmarshal(registered["token"], &token))

	w = env.do(t, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode[models.UserResponse](t, w)
	assert.Equal(t, "ivan@example.com", user.Email)

	// Password hash never leaks in the response body.
	assert.NotContains(t, w.Body.String(), "password")

	w = env.do(t, http.MethodGet, "/api/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
