package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/socialfeed/feed-services/internal/config"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/socialfeed/feed-services/internal/models"
	"github.com/socialfeed/feed-services/internal/tokens"
	"github.com/socialfeed/feed-services/internal/users"
	"github.com/socialfeed/feed-services/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handlers-secret"

func issue(t *testing.T, u *models.User, ttl time.Duration) string {
	t.Helper()
	tok, err := tokens.GenerateAccessToken(&config.Config{JWT: config.JWTConfig{Secret: testSecret}}, u, ttl)
	require.NoError(t, err)
	return tok
}

func call(g *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestMeAndLogout(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})

	gin.SetMode(gin.TestMode)
	revocations := identity.NewRevocationList(rdb)
	usersSvc := users.NewService(users.NewMemoryUserRepository())
	g := gin.New()
	NewAuthHandler(usersSvc, revocations, 15*time.Minute).
		Register(g, middleware.AuthMiddleware(tokens.NewVerifier(testSecret), revocations))

	tok := issue(t, &models.User{Sub: "alice", Name: "Alice", Email: "a@example.com"}, 10*time.Minute)

	w := call(g, http.MethodGet, "/api/v1/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	var u models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "alice", u.Sub)
	assert.Equal(t, "Alice", u.Name)

	stored, err := usersSvc.GetBySub(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)

	w = call(g, http.MethodPost, "/api/v1/logout", tok)
	require.Equal(t, http.StatusOK, w.Code)
	ttl := m.TTL(m.Keys()[0])
	assert.True(t, ttl > 9*time.Minute && ttl <= 10*time.Minute, "revocation lasts until the token expires, got %s", ttl)

	w = call(g, http.MethodGet, "/api/v1/me", tok)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "token revoked")

	// a fresh token for the same user still works
	w = call(g, http.MethodGet, "/api/v1/me", issue(t, &models.User{Sub: "alice"}, time.Minute))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	NewAuthHandler(users.NewService(users.NewMemoryUserRepository()), nil, time.Minute).
		Register(g, middleware.AuthMiddleware(tokens.NewVerifier(testSecret), nil))

	w := call(g, http.MethodPost, "/api/v1/logout", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpiryOf(t *testing.T) {
	tok := issue(t, &models.User{Sub: "x"}, time.Hour)
	exp, err := expiryOf(tok)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	_, err = expiryOf("not-a-jwt")
	require.Error(t, err)
}
