// Package service creates, deletes and lists comments while keeping each
// post's commentCount in step with its live comments.
//
// The store offers no multi-document transactions, so every mutation is two
// single-document writes in a fixed order: insert then increment, delete then
// decrement. When the second write fails the first is kept and a
// *PartialError is returned; the count is repaired by retrying the counter
// step or by a recount.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/socialfeed/feed-services/internal/comment"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/socialfeed/feed-services/internal/models"
	"github.com/socialfeed/feed-services/internal/store"
	"github.com/socialfeed/feed-services/pkg/logger"
	"github.com/socialfeed/feed-services/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opCreate = "create"
	opDelete = "delete"
)

// DeletePolicy decides who may delete a comment.
type DeletePolicy string

const (
	// PolicyAnyAuthenticated lets any authenticated caller delete any comment.
	PolicyAnyAuthenticated DeletePolicy = "any"
	// PolicyAuthorOrPostOwner limits deletion to the comment's author and the
	// author of the post it belongs to.
	PolicyAuthorOrPostOwner DeletePolicy = "owner"
)

// UserLookup resolves public user summaries by subject. Unknown subjects are
// left out of the result.
type UserLookup interface {
	Summaries(ctx context.Context, ids []string) (map[string]*models.UserSummary, error)
}

type Service struct {
	store   store.Store
	users   UserLookup
	policy  DeletePolicy
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

type Option func(*Service)

func WithDeletePolicy(p DeletePolicy) Option {
	return func(s *Service) {
		if p == PolicyAuthorOrPostOwner {
			s.policy = p
			return
		}
		s.policy = PolicyAnyAuthenticated
	}
}

// WithStoreTimeout bounds each individual store call. Zero means no bound
// beyond the caller's context.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// New returns a Service over st. users may be nil, in which case listed
// comments carry no user summary.
func New(st store.Store, users UserLookup, opts ...Option) *Service {
	s := &Service{
		store:  st,
		users:  users,
		policy: PolicyAnyAuthenticated,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Policy() DeletePolicy { return s.policy }

// Create adds a comment by p to postID and increments the post's count.
// On a *PartialError the returned id names the comment that was stored.
func (s *Service) Create(ctx context.Context, p *identity.Principal, postID, text string) (string, error) {
	if !p.Present() {
		record(opCreate, "rejected")
		return "", ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		record(opCreate, "rejected")
		return "", fmt.Errorf("%w: comment text is required", ErrValidation)
	}
	if _, err := s.loadPost(ctx, postID); err != nil {
		record(opCreate, outcome(err))
		return "", err
	}

	now := s.now().UTC()
	c := models.Comment{
		ID:        s.newID(),
		PostID:    postID,
		UserID:    p.ID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.call(ctx, func(ctx context.Context) error {
		return s.store.InsertOne(ctx, store.Comments, c)
	})
	if err != nil {
		record(opCreate, "error")
		return "", storeErr("insert comment", err)
	}

	if _, err := s.adjustCount(ctx, postID, 1); err != nil {
		return c.ID, s.partial(opCreate, postID, c.ID, 1, err)
	}
	record(opCreate, "ok")
	logger.Debugf("comment %s created on post %s by %s", c.ID, postID, p.ID)
	return c.ID, nil
}

// Delete removes commentID from postID and decrements the post's count.
// A second delete of the same comment fails with ErrCommentNotFound.
func (s *Service) Delete(ctx context.Context, p *identity.Principal, postID, commentID string) error {
	if !p.Present() {
		record(opDelete, "rejected")
		return ErrUnauthorized
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		record(opDelete, outcome(err))
		return err
	}
	if s.policy == PolicyAuthorOrPostOwner {
		if err := s.authorize(ctx, p, post, commentID); err != nil {
			record(opDelete, outcome(err))
			return err
		}
	}

	err = s.call(ctx, func(ctx context.Context) error {
		_, err := s.store.FindOneAndDelete(ctx, store.Comments, commentID, store.Fields{"postId": postID})
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			record(opDelete, "rejected")
			return ErrCommentNotFound
		}
		record(opDelete, "error")
		return storeErr("delete comment", err)
	}

	cnt, err := s.adjustCount(ctx, postID, -1)
	if err != nil {
		return s.partial(opDelete, postID, commentID, -1, err)
	}
	if cnt.Clamped() {
		// the comment is gone either way; the caller still sees success
		metrics.CommentCountClamped.Inc()
		logger.Warnf("comment count of post %s was already %d when comment %s was deleted; clamped at zero", postID, cnt.Before, commentID)
	}
	record(opDelete, "ok")
	return nil
}

// List returns the live comments of postID, oldest first, each joined with
// its author and post summaries. Dangling references yield nil summaries.
func (s *Service) List(ctx context.Context, p *identity.Principal, postID string) ([]*comment.View, error) {
	if !p.Present() {
		return nil, ErrUnauthorized
	}
	var raws []bson.Raw
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		raws, err = s.store.FindMany(ctx, store.Comments, store.Fields{"postId": postID})
		return err
	})
	if err != nil {
		return nil, storeErr("list comments", err)
	}

	views := make([]*comment.View, 0, len(raws))
	for _, raw := range raws {
		v := &comment.View{}
		if err := bson.Unmarshal(raw, &v.Comment); err != nil {
			return nil, storeErr("decode comment", err)
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if len(views) == 0 {
		return views, nil
	}

	var (
		users   map[string]*models.UserSummary
		summary *models.PostSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.users == nil {
			return nil
		}
		var err error
		users, err = s.users.Summaries(gctx, distinctUsers(views))
		if err != nil {
			return storeErr("resolve users", err)
		}
		return nil
	})
	g.Go(func() error {
		post, err := s.loadPost(gctx, postID)
		switch {
		case errors.Is(err, ErrPostNotFound):
			return nil
		case err != nil:
			return err
		}
		summary = post.Summary()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, v := range views {
		v.User = users[v.UserID]
		v.Post = summary
	}
	return views, nil
}

func (s *Service) loadPost(ctx context.Context, postID string) (*models.Post, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, ErrPostNotFound
	}
	var raw bson.Raw
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.store.FindOne(ctx, store.Posts, postID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, storeErr("load post", err)
	}
	var post models.Post
	if err := bson.Unmarshal(raw, &post); err != nil {
		return nil, storeErr("decode post", err)
	}
	return &post, nil
}

func (s *Service) authorize(ctx context.Context, p *identity.Principal, post *models.Post, commentID string) error {
	var raw bson.Raw
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.store.FindOne(ctx, store.Comments, commentID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCommentNotFound
		}
		return storeErr("load comment", err)
	}
	var c models.Comment
	if err := bson.Unmarshal(raw, &c); err != nil {
		return storeErr("decode comment", err)
	}
	if c.PostID != post.ID {
		return ErrCommentNotFound
	}
	if c.UserID != p.ID && post.AuthorID != p.ID {
		return fmt.Errorf("%w: only the comment author or the post author may delete this comment", ErrForbidden)
	}
	return nil
}

func (s *Service) adjustCount(ctx context.Context, postID string, delta int64) (store.Counter, error) {
	var cnt store.Counter
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		cnt, err = s.store.UpdateCounter(ctx, store.Posts, postID, models.PostCommentCountField, delta)
		return err
	})
	return cnt, err
}

func (s *Service) partial(op, postID, commentID string, delta int64, err error) error {
	record(op, "partial")
	metrics.CommentPartialFailures.WithLabelValues(op).Inc()
	logger.L().Error("comment count not adjusted, needs reconciliation",
		zap.String("op", op),
		zap.String("postId", postID),
		zap.String("commentId", commentID),
		zap.Int64("delta", delta),
		zap.Error(err),
	)
	return &PartialError{Op: op, PostID: postID, CommentID: commentID, Delta: delta, Err: err}
}

// call runs one store operation under the configured per-call timeout.
func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	if s.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func distinctUsers(views []*comment.View) []string {
	seen := make(map[string]struct{}, len(views))
	ids := make([]string, 0, len(views))
	for _, v := range views {
		if _, ok := seen[v.UserID]; ok {
			continue
		}
		seen[v.UserID] = struct{}{}
		ids = append(ids, v.UserID)
	}
	return ids
}

func outcome(err error) string {
	if errors.Is(err, ErrStore) {
		return "error"
	}
	return "rejected"
}

func record(op, result string) {
	metrics.CommentMutations.WithLabelValues(op, result).Inc()
}
