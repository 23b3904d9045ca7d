package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/shared"
	"github.com/dylantheriot/bubl-backend/internal/tokens"
)

// fakeApps hands out app tokens in order; each Invalidate advances to the next one.
type fakeApps struct {
	mu          sync.Mutex
	tokens      []string
	idx         int
	calls       int
	invalidated int
	err         error
}

func (f *fakeApps) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.tokens[min(f.idx, len(f.tokens)-1)], nil
}

func (f *fakeApps) Invalidate() {
	f.mu.Lock()
	f.invalidated++
	f.idx++
	f.mu.Unlock()
}

type fakeUsers map[string]string

func (f fakeUsers) AccessToken(_ context.Context, userID string) (string, error) {
	tok, ok := f[userID]
	if !ok {
		return "", fmt.Errorf("%w: %s", tokens.ErrNotConnected, userID)
	}
	return tok, nil
}

type spotifyAPI struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func (a *spotifyAPI) hits() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

// newSpotifyAPI serves canned Spotify responses; only "Bearer good" and "Bearer user-token" are accepted.
func newSpotifyAPI(t *testing.T) *spotifyAPI {
	t.Helper()
	api := &spotifyAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.paths = append(api.paths, r.URL.RequestURI())
		api.mu.Unlock()

		switch r.Header.Get("Authorization") {
		case "Bearer good", "Bearer user-token":
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"status":401,"message":"The access token expired"}}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/search":
			fmt.Fprintf(w, `{"tracks":{"total":1,"items":[{"id":"t1","name":"%s","artists":[{"name":"Artist"}],"album":{"name":"Album","images":[{"url":"https://img/1"}]},"external_urls":{"spotify":"https://open.spotify.com/track/t1"}}]}}`, r.URL.Query().Get("q"))
		case r.URL.Path == "/v1/albums/a1":
			_, _ = io.WriteString(w, `{"id":"a1","name":"Album"}`)
		case r.URL.Path == "/v1/artists/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"status":404,"message":"non existing id"}}`)
		case r.URL.Path == "/v1/me/playlists":
			_, _ = io.WriteString(w, `{"total":1,"items":[{"id":"p1","name":"Mix","description":"d","images":[],"external_urls":{"spotify":"https://open.spotify.com/playlist/p1"}}]}`)
		case r.URL.Path == "/v1/me/tracks":
			_, _ = io.WriteString(w, `{"total":1,"items":[{"added_at":"2025-01-01T00:00:00Z","track":{"id":"t1","name":"Song","artists":[],"album":{"name":"Album","images":[]}}}]}`)
		case r.URL.Path == "/v1/me/following":
			_, _ = io.WriteString(w, `{"artists":{"items":[]}}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	t.Cleanup(api.Close)
	return api
}

func newTestSpotify(t *testing.T, api *spotifyAPI, apps *fakeApps, cache *SearchCache) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(SpotifyOpts{
		APIURL:  api.URL + "/v1",
		Apps:    apps,
		Users:   fakeUsers{"user-1": "user-token", "stale": "expired"},
		Fetcher: tokens.NewFetcher(api.Client(), time.Second, nil),
		Cache:   cache,
		Logger:  shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("Missing dependencies", func(t *testing.T) {
			_, err := NewSpotifyService(SpotifyOpts{})
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("Name", func(t *testing.T) {
			srv := newTestSpotify(t, newSpotifyAPI(t), &fakeApps{tokens: []string{"good"}}, nil)
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})
	})

	t.Run("ParseSearchType", func(t *testing.T) {
		tests := []struct {
			in      string
			want    SearchType
			wantErr bool
		}{
			{"track", SearchTrack, false},
			{" Playlist ", SearchPlaylist, false},
			{"album", SearchAlbum, false},
			{"", SearchArtist, false},
			{"episode", "", true},
		}
		for _, tt := range tests {
			got, err := ParseSearchType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSearchType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSearchType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("Search", func(t *testing.T) {
		t.Run("Uses app token", func(t *testing.T) {
			api := newSpotifyAPI(t)
			srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, nil)

			res, err := srv.Search(ctx, "daft punk", SearchTrack)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if res.Tracks == nil || len(res.Tracks.Items) != 1 || res.Tracks.Items[0].Name != "daft punk" {
				t.Errorf("unexpected result: %+v", res.Tracks)
			}
			if hits := api.hits(); len(hits) != 1 || !strings.Contains(hits[0], "type=track") {
				t.Errorf("unexpected requests: %v", hits)
			}
		})

		t.Run("Retries once after stale app token", func(t *testing.T) {
			api := newSpotifyAPI(t)
			apps := &fakeApps{tokens: []string{"expired", "good"}}
			srv := newTestSpotify(t, api, apps, nil)

			if _, err := srv.Search(ctx, "q", SearchTrack); err != nil {
				t.Fatalf("expected retry to succeed, got %v", err)
			}
			if apps.invalidated != 1 {
				t.Errorf("expected 1 invalidation, got %d", apps.invalidated)
			}
			if len(api.hits()) != 2 {
				t.Errorf("expected 2 requests, got %d", len(api.hits()))
			}
		})

		t.Run("Retry is bounded", func(t *testing.T) {
			api := newSpotifyAPI(t)
			apps := &fakeApps{tokens: []string{"expired"}}
			srv := newTestSpotify(t, api, apps, nil)

			_, err := srv.Search(ctx, "q", SearchTrack)
			if !errors.Is(err, tokens.ErrStaleToken) {
				t.Fatalf("expected ErrStaleToken, got %v", err)
			}
			if len(api.hits()) != 2 {
				t.Errorf("expected exactly 2 requests, got %d", len(api.hits()))
			}
		})

		t.Run("App token failure", func(t *testing.T) {
			apps := &fakeApps{err: tokens.ErrProviderAuth}
			srv := newTestSpotify(t, newSpotifyAPI(t), apps, nil)

			if _, err := srv.Search(ctx, "q", SearchTrack); !errors.Is(err, tokens.ErrProviderAuth) {
				t.Errorf("expected ErrProviderAuth, got %v", err)
			}
		})

		t.Run("Empty query", func(t *testing.T) {
			api := newSpotifyAPI(t)
			srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, nil)

			if _, err := srv.Search(ctx, "  ", SearchTrack); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if len(api.hits()) != 0 {
				t.Errorf("expected no requests, got %d", len(api.hits()))
			}
		})

		t.Run("Cached", func(t *testing.T) {
			api := newSpotifyAPI(t)
			cache := NewSearchCache(time.Minute)
			t.Cleanup(cache.Close)
			srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, cache)

			for _, q := range []string{"Daft Punk", "daft punk "} {
				if _, err := srv.Search(ctx, q, SearchTrack); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			}
			if len(api.hits()) != 1 {
				t.Errorf("expected cached second search, got %d requests", len(api.hits()))
			}
			if cache.Len() != 1 {
				t.Errorf("expected 1 cache entry, got %d", cache.Len())
			}
		})
	})

	t.Run("Catalog resources", func(t *testing.T) {
		api := newSpotifyAPI(t)
		srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, nil)

		body, err := srv.Album(ctx, "a1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var album SpotifyAlbum
		if err := json.Unmarshal(body, &album); err != nil || album.Name != "Album" {
			t.Errorf("unexpected album: %s (%v)", body, err)
		}

		_, err = srv.Artist(ctx, "missing")
		var serr *tokens.StatusError
		if !errors.As(err, &serr) || serr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 status error, got %v", err)
		}

		if _, err := srv.Album(ctx, ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("User resources", func(t *testing.T) {
		t.Run("Playlists", func(t *testing.T) {
			api := newSpotifyAPI(t)
			srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, nil)

			res, err := srv.UserPlaylists(ctx, "user-1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(res.Items) != 1 || res.Items[0].Name != "Mix" {
				t.Errorf("unexpected playlists: %+v", res.Items)
			}
		})

		t.Run("Saved tracks", func(t *testing.T) {
			srv := newTestSpotify(t, newSpotifyAPI(t), &fakeApps{tokens: []string{"good"}}, nil)

			res, err := srv.SavedTracks(ctx, "user-1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(res.Items) != 1 || res.Items[0].Track.Name != "Song" {
				t.Errorf("unexpected tracks: %+v", res.Items)
			}
		})

		t.Run("Following requests artists", func(t *testing.T) {
			api := newSpotifyAPI(t)
			srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, nil)

			if _, err := srv.UserResource(ctx, "user-1", ResourceFollowing); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if hits := api.hits(); len(hits) != 1 || hits[0] != "/v1/me/following?type=artist" {
				t.Errorf("unexpected requests: %v", hits)
			}
		})

		t.Run("Stale user token is not retried", func(t *testing.T) {
			api := newSpotifyAPI(t)
			srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, nil)

			if _, err := srv.UserResource(ctx, "stale", ResourceTopTracks); !errors.Is(err, tokens.ErrStaleToken) {
				t.Fatalf("expected ErrStaleToken, got %v", err)
			}
			if len(api.hits()) != 1 {
				t.Errorf("expected 1 request, got %d", len(api.hits()))
			}
		})

		t.Run("Not connected", func(t *testing.T) {
			api := newSpotifyAPI(t)
			srv := newTestSpotify(t, api, &fakeApps{tokens: []string{"good"}}, nil)

			if _, err := srv.UserResource(ctx, "nobody", ResourceSavedAlbums); !errors.Is(err, tokens.ErrNotConnected) {
				t.Errorf("expected ErrNotConnected, got %v", err)
			}
			if len(api.hits()) != 0 {
				t.Errorf("expected no provider call, got %d", len(api.hits()))
			}
		})

		t.Run("Unknown resource", func(t *testing.T) {
			srv := newTestSpotify(t, newSpotifyAPI(t), &fakeApps{tokens: []string{"good"}}, nil)
			if _, err := srv.UserResource(ctx, "user-1", "recently_played"); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})
}
