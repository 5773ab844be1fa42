package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	token := env.registerUser(t, "alice", "user")

	rec, body := env.request(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := body["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.Nil(t, user["password_hash"], "password hash must never be serialized")

	rec, body = env.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "bob", "user")

	rec, body := env.request(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["code"])
}

func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "carol", "user")

	rec, body := env.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "carol@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["code"])

	// Unknown accounts get the same message as a bad password.
	rec, _ = env.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "nobody@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.request(t, http.MethodGet, "/api/polls", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.request(t, http.MethodGet, "/api/polls", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.registerUser(t, "dave", "user")
	adminToken := env.registerUser(t, "root", "admin")

	rec, _ := env.request(t, http.MethodGet, "/api/stats/admin", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.request(t, http.MethodGet, "/api/stats/admin", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
