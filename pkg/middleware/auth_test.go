package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	switch raw {
	case "goodtoken", "black-token":
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "name": "User One", "email": "test@example.com"}}, nil
	case "nosub":
		return &fakeToken{data: map[string]interface{}{"email": "test@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func serveAuth(t *testing.T, revoked RevocationChecker, header string) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, revoked), func(c *gin.Context) {
		p := PrincipalFrom(c)
		claims, _ := c.Get(ClaimsKey)
		c.JSON(http.StatusOK, gin.H{"principal": p, "claims": claims})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, nil, "").Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, nil, "BadHeader").Code)
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, nil, "Basic abc").Code)
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, nil, "Bearer ").Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, nil, "Bearer wrong").Code)
}

func TestAuthMiddleware_MissingSubject(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, nil, "Bearer nosub").Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rw := serveAuth(t, nil, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)

	var got struct {
		Principal *identity.Principal    `json:"principal"`
		Claims    map[string]interface{} `json:"claims"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, &identity.Principal{ID: "user1", DisplayName: "User One", Email: "test@example.com"}, got.Principal)
	require.Equal(t, "user1", got.Claims["sub"])
}

func TestAuthMiddleware_NilVerifier(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(nil, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer goodtoken")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	list := identity.NewRevocationList(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	require.NoError(t, list.Revoke(context.Background(), "black-token", 5*time.Second))

	require.Equal(t, http.StatusUnauthorized, serveAuth(t, list, "Bearer black-token").Code)
	require.Equal(t, http.StatusOK, serveAuth(t, list, "Bearer goodtoken").Code)
}

type failingRevocations struct{}

func (failingRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	return false, fmt.Errorf("redis down")
}

func TestAuthMiddleware_RevocationCheckFailure(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, serveAuth(t, failingRevocations{}, "Bearer goodtoken").Code)
}
