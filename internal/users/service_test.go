package users

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/socialfeed/feed-services/internal/models"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	*MemoryUserRepository
	batchCalls int
	lastBatch  []string
}

func (c *countingRepo) GetBySubs(ctx context.Context, subs []string) ([]*models.User, error) {
	c.batchCalls++
	c.lastBatch = append([]string(nil), subs...)
	return c.MemoryUserRepository.GetBySubs(ctx, subs)
}

func TestUpsertFromClaims(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo)
	ctx := context.Background()

	u, err := svc.UpsertFromClaims(ctx, map[string]interface{}{
		"sub":   "sub-123",
		"email": "x@example.com",
		"name":  "X User",
	})
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "sub-123", u.Sub)
	require.Equal(t, "X User", u.Name)
	require.False(t, u.CreatedAt.IsZero())
	require.False(t, u.CreatedAt.After(u.UpdatedAt))

	// second upsert keeps createdAt
	time.Sleep(2 * time.Millisecond)
	u2, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "sub-123", "preferred_username": "xu"})
	require.NoError(t, err)
	require.Equal(t, u.CreatedAt, u2.CreatedAt)
	require.Equal(t, "xu", u2.Name)

	// missing sub => nil, no error
	u3, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"email": "y@e.com"})
	require.NoError(t, err)
	require.Nil(t, u3)
}

func TestSummaries_SkipsUnknownUsers(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo)
	ctx := context.Background()
	_, err := repo.UpsertBySub(ctx, &models.User{Sub: "a", Name: "Alice"})
	require.NoError(t, err)

	got, err := svc.Summaries(ctx, []string{"a", "ghost"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Alice", got["a"].Name)
	require.Nil(t, got["ghost"])

	empty, err := svc.Summaries(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSummaries_CacheAside(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	repo := &countingRepo{MemoryUserRepository: NewMemoryUserRepository()}
	svc := NewService(repo, WithCache(client, time.Minute))
	ctx := context.Background()
	_, err = repo.UpsertBySub(ctx, &models.User{Sub: "a", Name: "Alice"})
	require.NoError(t, err)
	_, err = repo.UpsertBySub(ctx, &models.User{Sub: "b", Name: "Bob"})
	require.NoError(t, err)

	got, err := svc.Summaries(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, repo.batchCalls)
	require.True(t, m.Exists("user:a"))

	// both cached now; only the unknown subject reaches the repository
	got, err = svc.Summaries(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 2, repo.batchCalls)
	require.Equal(t, []string{"c"}, repo.lastBatch)

	// profile update invalidates the entry
	_, err = svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "a", "name": "Alicia"})
	require.NoError(t, err)
	require.False(t, m.Exists("user:a"))
	got, err = svc.Summaries(ctx, []string{"a"})
	require.NoError(t, err)
	require.Equal(t, "Alicia", got["a"].Name)

	m.FastForward(2 * time.Minute)
	require.False(t, m.Exists("user:b"))
}

func TestSummaries_CacheDownFallsBackToRepository(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	m.Close()

	repo := NewMemoryUserRepository()
	_, err = repo.UpsertBySub(context.Background(), &models.User{Sub: "a", Name: "Alice"})
	require.NoError(t, err)

	svc := NewService(repo, WithCache(client, time.Minute))
	got, err := svc.Summaries(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Equal(t, "Alice", got["a"].Name)
}
