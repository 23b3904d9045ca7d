package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/shared"
)

func newTestYouTube(t *testing.T, handler http.HandlerFunc, cache *SearchCache) *YouTubeService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	yt, err := NewYouTubeService(context.Background(), YouTubeOpts{
		APIKey:     "dev-key",
		Endpoint:   srv.URL + "/",
		HTTPClient: srv.Client(),
		Cache:      cache,
		Logger:     shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return yt
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewYouTubeService", func(t *testing.T) {
		t.Run("Missing API key", func(t *testing.T) {
			_, err := NewYouTubeService(ctx, YouTubeOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		t.Run("Embeddable videos", func(t *testing.T) {
			var query string
			yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/youtube/v3/search") {
					http.NotFound(w, r)
					return
				}
				query = r.URL.RawQuery
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"items":[
					{"id":{"kind":"youtube#video","videoId":"abc123"},"snippet":{"title":"First","channelTitle":"Chan","thumbnails":{"high":{"url":"https://i.ytimg.com/abc"}}}},
					{"id":{"kind":"youtube#channel","channelId":"UC1"}},
					{"id":{"kind":"youtube#video","videoId":"def456"},"snippet":{"title":"Second"}}
				]}`)
			}, nil)

			videos, err := yt.Search(ctx, "lofi beats")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(videos) != 2 {
				t.Fatalf("expected 2 videos, got %d", len(videos))
			}
			if videos[0].Link() != "https://www.youtube.com/watch?v=abc123" {
				t.Errorf("unexpected link: %s", videos[0].Link())
			}
			if videos[0].Thumbnail != "https://i.ytimg.com/abc" || videos[0].Channel != "Chan" {
				t.Errorf("unexpected snippet fields: %+v", videos[0])
			}

			for _, param := range []string{"key=dev-key", "videoEmbeddable=true", "maxResults=20", "type=video", "q=lofi+beats"} {
				if !strings.Contains(query, param) {
					t.Errorf("expected %s in query %q", param, query)
				}
			}
			if !strings.Contains(query, "snippet") {
				t.Errorf("expected snippet part in query %q", query)
			}
		})

		t.Run("API error", func(t *testing.T) {
			yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, `{"error":{"code":403,"message":"quotaExceeded"}}`)
			}, nil)

			_, err := yt.Search(ctx, "q")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "403") {
				t.Errorf("expected status in error, got %v", err)
			}
		})

		t.Run("Empty query", func(t *testing.T) {
			yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("unexpected request")
			}, nil)
			if _, err := yt.Search(ctx, ""); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Cached", func(t *testing.T) {
			var hits int32
			cache := NewSearchCache(time.Minute)
			t.Cleanup(cache.Close)
			yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"items":[{"id":{"videoId":"abc123"}}]}`)
			}, cache)

			for range 2 {
				videos, err := yt.Search(ctx, "q")
				if err != nil || len(videos) != 1 {
					t.Fatalf("unexpected result: %v (%v)", videos, err)
				}
			}
			if hits != 1 {
				t.Errorf("expected 1 request, got %d", hits)
			}
		})
	})
}
