package users

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/socialfeed/feed-services/internal/models"
	"github.com/socialfeed/feed-services/pkg/logger"
)

const cacheKeyPrefix = "user:"

// Service encapsulates user-related business logic
type Service struct {
	repo     UserRepository
	cache    *redis.Client
	cacheTTL time.Duration
}

type Option func(*Service)

// WithCache enables a Redis cache-aside in front of summary lookups.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = client
		s.cacheTTL = ttl
	}
}

func NewService(r UserRepository, opts ...Option) *Service {
	s := &Service{repo: r, cacheTTL: 5 * time.Minute}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, nil
	}
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}
	u, err := s.repo.UpsertBySub(ctx, &models.User{Sub: sub, Email: email, Name: name})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKeyPrefix+sub).Err(); err != nil {
			logger.Warnf("failed to invalidate cached user(%s): %v", sub, err)
		}
	}
	return u, nil
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// Summaries resolves public summaries for the given subjects in one batch.
// Subjects with no user are absent from the result. Cache failures degrade to
// the repository.
func (s *Service) Summaries(ctx context.Context, subs []string) (map[string]*models.UserSummary, error) {
	out := make(map[string]*models.UserSummary, len(subs))
	if len(subs) == 0 {
		return out, nil
	}
	missing := s.fromCache(ctx, subs, out)
	if len(missing) == 0 {
		return out, nil
	}
	found, err := s.repo.GetBySubs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		sum := u.Summary()
		out[u.Sub] = sum
		s.toCache(ctx, sum)
	}
	return out, nil
}

func (s *Service) fromCache(ctx context.Context, subs []string, out map[string]*models.UserSummary) []string {
	if s.cache == nil {
		return subs
	}
	keys := make([]string, len(subs))
	for i, sub := range subs {
		keys[i] = cacheKeyPrefix + sub
	}
	vals, err := s.cache.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warnf("user cache read failed, falling back to repository: %v", err)
		return subs
	}
	var missing []string
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			missing = append(missing, subs[i])
			continue
		}
		var sum models.UserSummary
		if err := json.Unmarshal([]byte(str), &sum); err != nil {
			missing = append(missing, subs[i])
			continue
		}
		out[subs[i]] = &sum
	}
	return missing
}

// best-effort; a failed write only costs a repository read later
func (s *Service) toCache(ctx context.Context, sum *models.UserSummary) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+sum.ID, b, s.cacheTTL).Err(); err != nil {
		logger.Warnf("failed to cache user(%s): %v", sum.ID, err)
	}
}
