package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/feed-services/internal/comment/service"
	"github.com/socialfeed/feed-services/internal/config"
	"github.com/socialfeed/feed-services/internal/models"
	"github.com/socialfeed/feed-services/internal/store"
	"github.com/socialfeed/feed-services/internal/tokens"
	"github.com/socialfeed/feed-services/pkg/middleware"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const secret = "test-secret"

func setup(t *testing.T, opts ...service.Option) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	require.NoError(t, st.InsertOne(context.Background(), store.Posts, models.Post{ID: "P1", AuthorID: "owner"}))

	g := gin.New()
	RegisterCommentRoutes(g, service.New(st, nil, opts...), middleware.AuthMiddleware(tokens.NewVerifier(secret), nil))
	return g, st
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	cfg := &config.Config{JWT: config.JWTConfig{Secret: secret}}
	tok, err := tokens.GenerateAccessToken(cfg, &models.User{Sub: sub, Name: sub}, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(g *gin.Engine, method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func commentCount(t *testing.T, st store.Store) int64 {
	t.Helper()
	raw, err := st.FindOne(context.Background(), store.Posts, "P1")
	require.NoError(t, err)
	var p models.Post
	require.NoError(t, bson.Unmarshal(raw, &p))
	return p.CommentCount
}

func TestCommentHandler_Lifecycle(t *testing.T) {
	g, st := setup(t)
	alice := bearer(t, "alice")

	// create
	w := do(g, http.MethodPost, "/api/posts/P1/comments", alice, `{"text":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var cr map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cr))
	require.Equal(t, "Comment was successfully created", cr["message"])
	id := cr["id"]
	require.NotEmpty(t, id)
	require.Equal(t, int64(1), commentCount(t, st))

	// list
	w = do(g, http.MethodGet, "/api/posts/P1/comments", alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, id, list[0]["id"])
	require.Equal(t, "hello", list[0]["text"])
	require.Equal(t, "alice", list[0]["userId"])
	require.Nil(t, list[0]["user"])
	post, ok := list[0]["post"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "P1", post["id"])

	// delete
	w = do(g, http.MethodDelete, "/api/posts/P1/comments/"+id, alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Comment deleted successfully")
	require.Equal(t, int64(0), commentCount(t, st))

	// second delete
	w = do(g, http.MethodDelete, "/api/posts/P1/comments/"+id, alice, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "COMMENT_NOT_FOUND")
}

func TestCommentHandler_Errors(t *testing.T) {
	g, st := setup(t)
	alice := bearer(t, "alice")

	w := do(g, http.MethodPost, "/api/posts/P1/comments", "", `{"text":"hello"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(g, http.MethodGet, "/api/posts/P1/comments", "Bearer garbage", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(g, http.MethodPost, "/api/posts/P1/comments", alice, `{"text":"   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "VALIDATION")

	w = do(g, http.MethodPost, "/api/posts/P1/comments", alice, `{"text":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodPost, "/api/posts/nope/comments", alice, `{"text":"hi"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "POST_NOT_FOUND")

	require.Equal(t, int64(0), commentCount(t, st))
}

func TestCommentHandler_OwnerPolicyForbidden(t *testing.T) {
	g, _ := setup(t, service.WithDeletePolicy(service.PolicyAuthorOrPostOwner))

	w := do(g, http.MethodPost, "/api/posts/P1/comments", bearer(t, "alice"), `{"text":"mine"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var cr map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cr))

	w = do(g, http.MethodDelete, "/api/posts/P1/comments/"+cr["id"], bearer(t, "mallory"), "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(g, http.MethodDelete, "/api/posts/P1/comments/"+cr["id"], bearer(t, "owner"), "")
	require.Equal(t, http.StatusOK, w.Code)
}

type failingCounter struct {
	store.Store
}

func (failingCounter) UpdateCounter(context.Context, string, string, string, int64) (store.Counter, error) {
	return store.Counter{}, context.DeadlineExceeded
}

func TestCommentHandler_PartialFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mem := store.NewMemoryStore()
	require.NoError(t, mem.InsertOne(context.Background(), store.Posts, models.Post{ID: "P1"}))
	g := gin.New()
	RegisterCommentRoutes(g, service.New(failingCounter{Store: mem}, nil), middleware.AuthMiddleware(tokens.NewVerifier(secret), nil))

	w := do(g, http.MethodPost, "/api/posts/P1/comments", bearer(t, "alice"), `{"text":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["partial"])
	require.Equal(t, "P1", body["postId"])
	require.NotEmpty(t, body["commentId"])
}

func TestCommentHandler_RateLimitKeyedBySubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	require.NoError(t, st.InsertOne(context.Background(), store.Posts, models.Post{ID: "P1", AuthorID: "owner"}))

	g := gin.New()
	RegisterCommentRoutes(g, service.New(st, nil),
		middleware.AuthMiddleware(tokens.NewVerifier(secret), nil),
		middleware.RateLimitMiddleware(0.5, 1),
	)
	list := func(sub, remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/posts/P1/comments", nil)
		req.Header.Set("Authorization", bearer(t, sub))
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, list("rl-alice", "203.0.113.10:1000"))
	// same subject from another address shares the bucket
	require.Equal(t, http.StatusTooManyRequests, list("rl-alice", "203.0.113.11:1000"))
	// another subject behind the first address is not affected
	require.Equal(t, http.StatusOK, list("rl-bob", "203.0.113.10:1000"))
}
