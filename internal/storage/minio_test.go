package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/socialfeed/feed-services/internal/config"
	"github.com/stretchr/testify/require"
)

// fakeS3 accepts bucket creation and object PUTs, remembering the uploads.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusOK)
		return
	}
	body, _ := io.ReadAll(r.Body)
	if strings.Count(strings.Trim(r.URL.Path, "/"), "/") > 0 {
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
	}
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func TestMinIOStorage_UploadMedia(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	endpoint := strings.TrimPrefix(srv.URL, "http://")
	s, err := NewMinIOStorage(context.Background(), config.MediaConfig{
		Endpoint: endpoint, AccessKey: "k", SecretKey: "s", Bucket: "feed-media",
	})
	require.NoError(t, err)

	u, err := s.UploadMedia(context.Background(), "posts/p1/photo one.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	require.Equal(t, "http://"+endpoint+"/feed-media/posts/p1/photo%20one.png", u)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Contains(t, fake.objects, "/feed-media/posts/p1/photo one.png")
	require.Equal(t, "image/png", fake.types["/feed-media/posts/p1/photo one.png"])
}

func TestNewMinIOStorage_RequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), config.MediaConfig{})
	require.Error(t, err)
}
