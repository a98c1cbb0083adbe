package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/socialfeed/feed-services/internal/models"
	"github.com/socialfeed/feed-services/internal/store"
	"github.com/socialfeed/feed-services/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("post not found")
	ErrMedia        = errors.New("media upload failed")
	ErrStore        = errors.New("store error")
)

// MediaUploader stores binary media and returns a stable URL for it.
type MediaUploader interface {
	UploadMedia(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Media is an attachment supplied with a new post.
type Media struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Service struct {
	store store.Store
	media MediaUploader
	now   func() time.Time
	newID func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// New returns a post service. media may be nil, in which case posts with an
// attachment are refused.
func New(st store.Store, media MediaUploader, opts ...Option) *Service {
	s := &Service{store: st, media: media, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new post by p with a zero comment count. An attachment is
// uploaded first; if the upload fails no post is created.
func (s *Service) Create(ctx context.Context, p *identity.Principal, text, location string, m *Media) (*models.Post, error) {
	if !p.Present() {
		return nil, ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" && m == nil {
		return nil, fmt.Errorf("%w: a post needs text or media", ErrValidation)
	}
	if m != nil && !strings.HasPrefix(strings.ToLower(m.ContentType), "image/") {
		return nil, fmt.Errorf("%w: media must be an image, got %q", ErrValidation, m.ContentType)
	}

	now := s.now().UTC()
	post := &models.Post{
		ID:        s.newID(),
		AuthorID:  p.ID,
		Text:      text,
		Location:  strings.TrimSpace(location),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if m != nil {
		if s.media == nil {
			return nil, fmt.Errorf("%w: media storage is not configured", ErrMedia)
		}
		key := "posts/" + post.ID + "/" + uuid.NewString() + strings.ToLower(path.Ext(m.Filename))
		u, err := s.media.UploadMedia(ctx, key, m.Body, m.Size, m.ContentType)
		if err != nil {
			logger.Errorf("media upload for post %s failed: %v", post.ID, err)
			return nil, fmt.Errorf("%w: %w", ErrMedia, err)
		}
		post.MediaURL = u
	}

	if err := s.store.InsertOne(ctx, store.Posts, post); err != nil {
		return nil, fmt.Errorf("%w: insert post: %w", ErrStore, err)
	}
	logger.Debugf("post %s created by %s", post.ID, p.ID)
	return post, nil
}

// Get returns the post with its current comment count.
func (s *Service) Get(ctx context.Context, p *identity.Principal, id string) (*models.Post, error) {
	if !p.Present() {
		return nil, ErrUnauthorized
	}
	raw, err := s.store.FindOne(ctx, store.Posts, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load post: %w", ErrStore, err)
	}
	var post models.Post
	if err := bson.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("%w: decode post: %w", ErrStore, err)
	}
	return &post, nil
}
