package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polling-system-backend/auth"
	"polling-system-backend/cache"
	"polling-system-backend/database"
	"polling-system-backend/realtime"
	"polling-system-backend/routes"
	"polling-system-backend/vote"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv is a fully wired server over an in-memory database, with redis
// absent so the cache always misses and the sweep lock runs unguarded.
type testEnv struct {
	db     *gorm.DB
	hub    *realtime.Hub
	rt     *realtime.Service
	router *gin.Engine
	deps   routes.Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	hub := realtime.NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	tokens := auth.NewService("test-secret", time.Hour)
	results := cache.NewProjectionCache(nil)
	rt := realtime.NewService(hub, results)
	votes := vote.NewProcessor(db, rt)

	deps := routes.Deps{
		DB:      db,
		Tokens:  tokens,
		Hub:     hub,
		RT:      rt,
		Votes:   votes,
		Results: results,
		Locker:  cache.NewLocker(nil),
	}

	return &testEnv{
		db:     db,
		hub:    hub,
		rt:     rt,
		router: routes.SetupRouter(deps),
		deps:   deps,
	}
}

// request performs one JSON request against the router and decodes the body.
func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	// Non-JSON responses (CSV export) simply leave decoded nil.
	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

// registerUser creates an account through the public endpoint and returns
// its token.
func (e *testEnv) registerUser(t *testing.T, username, role string) string {
	t.Helper()
	rec, body := e.request(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "register %s: %s", username, rec.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// createPoll creates a poll over the API and returns its id.
func (e *testEnv) createPoll(t *testing.T, token string, extra gin.H) uint {
	t.Helper()
	payload := gin.H{
		"title":   "favorite language",
		"options": []string{"go", "rust", "zig"},
	}
	for k, v := range extra {
		payload[k] = v
	}
	rec, body := e.request(t, http.MethodPost, "/api/polls", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := body["data"].(map[string]interface{})
	poll := data["poll"].(map[string]interface{})
	return uint(poll["id"].(float64))
}
