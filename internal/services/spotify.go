// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"github.com/dylantheriot/bubl-backend/internal/tokens"
)

const defaultSpotifyAPIURL = "https://api.spotify.com/v1"

type followers struct {
	Total int `json:"total"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Genres       []string       `json:"genres"`
	Images       []SpotifyImage `json:"images"`
	Followers    followers      `json:"followers"`
	ExternalURLs externalURLs   `json:"external_urls"`
	URI          string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	ReleaseDate  string          `json:"release_date"`
	TotalTracks  int             `json:"total_tracks"`
	Images       []SpotifyImage  `json:"images"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Owner        Owner               `json:"owner"`
	Public       bool                `json:"public"`
	Tracks       simplePlaylistTrack `json:"tracks"`
	Images       []SpotifyImage      `json:"images"`
	ExternalURLs externalURLs        `json:"external_urls"`
	URI          string              `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

// SpotifySearchResponse holds whichever result groups the search type produced.
//
// Playlist search results may contain null entries, which decode as nil pointers.
type SpotifySearchResponse struct {
	Tracks *struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks,omitempty"`
	Playlists *struct {
		Items []*SpotifySimplePlaylist `json:"items"`
		Total int                      `json:"total"`
	} `json:"playlists,omitempty"`
	Albums *struct {
		Items []SpotifyAlbum `json:"items"`
		Total int            `json:"total"`
	} `json:"albums,omitempty"`
	Artists *struct {
		Items []SpotifyArtist `json:"items"`
		Total int             `json:"total"`
	} `json:"artists,omitempty"`
}

// SearchType is a Spotify catalog search category.
type SearchType string

const (
	SearchTrack    SearchType = "track"
	SearchPlaylist SearchType = "playlist"
	SearchAlbum    SearchType = "album"
	SearchArtist   SearchType = "artist"
)

// ParseSearchType validates s. An empty value defaults to artist, as the provider API does.
func ParseSearchType(s string) (SearchType, error) {
	switch t := SearchType(strings.ToLower(strings.TrimSpace(s))); t {
	case SearchTrack, SearchPlaylist, SearchAlbum, SearchArtist:
		return t, nil
	case "":
		return SearchArtist, nil
	default:
		return "", fmt.Errorf("%w: unsupported search_type %q", shared.ErrInvalidInput, s)
	}
}

// UserResource names a per-user library endpoint.
type UserResource string

const (
	ResourcePlaylists   UserResource = "playlists"
	ResourceSavedTracks UserResource = "saved_tracks"
	ResourceSavedAlbums UserResource = "saved_albums"
	ResourceSavedShows  UserResource = "saved_shows"
	ResourceFollowing   UserResource = "following"
	ResourceTopArtists  UserResource = "top/artists"
	ResourceTopTracks   UserResource = "top/tracks"
)

var userResourcePaths = map[UserResource]string{
	ResourcePlaylists:   "/me/playlists",
	ResourceSavedTracks: "/me/tracks",
	ResourceSavedAlbums: "/me/albums",
	ResourceSavedShows:  "/me/shows",
	ResourceFollowing:   "/me/following?type=artist",
	ResourceTopArtists:  "/me/top/artists",
	ResourceTopTracks:   "/me/top/tracks",
}

// AppTokenSource issues the process-wide catalog token. Satisfied by [*tokens.AppTokenManager].
type AppTokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// UserTokenSource issues valid per-user access tokens. Satisfied by [*tokens.Gate].
type UserTokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// ResourceFetcher performs bearer-authenticated GETs. Satisfied by [*tokens.Fetcher].
type ResourceFetcher interface {
	Fetch(ctx context.Context, url, accessToken string) (json.RawMessage, error)
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	APIURL  string
	Apps    AppTokenSource
	Users   UserTokenSource
	Fetcher ResourceFetcher
	Cache   *SearchCache
	Logger  *log.Logger
}

// SpotifyService reads the Spotify catalog with the app token and user libraries with per-user tokens.
type SpotifyService struct {
	apiURL  string
	apps    AppTokenSource
	users   UserTokenSource
	fetcher ResourceFetcher
	cache   *SearchCache
	logger  *log.Logger
}

// NewSpotifyService creates a new Spotify service from its token sources and fetcher.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.Apps == nil || opts.Users == nil || opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: spotify service requires app tokens, user tokens and a fetcher", shared.ErrInvalidConfig)
	}
	if opts.APIURL == "" {
		opts.APIURL = defaultSpotifyAPIURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SpotifyService{
		apiURL:  strings.TrimRight(opts.APIURL, "/"),
		apps:    opts.Apps,
		users:   opts.Users,
		fetcher: opts.Fetcher,
		cache:   opts.Cache,
		logger:  shared.WithLogger(opts.Logger, "service", "spotify"),
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// catalog performs an app-token request. A rejected token is invalidated and the call retried once.
func (s *SpotifyService) catalog(ctx context.Context, endpoint string) (json.RawMessage, error) {
	body, err := s.catalogOnce(ctx, endpoint)
	if errors.Is(err, tokens.ErrStaleToken) {
		s.logger.Warn("app token rejected, re-issuing", "endpoint", endpoint)
		s.apps.Invalidate()
		body, err = s.catalogOnce(ctx, endpoint)
	}
	return body, err
}

func (s *SpotifyService) catalogOnce(ctx context.Context, endpoint string) (json.RawMessage, error) {
	token, err := s.apps.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.fetcher.Fetch(ctx, s.apiURL+endpoint, token)
}

// userRequest performs a request with userID's access token. A 401 is surfaced, not retried.
func (s *SpotifyService) userRequest(ctx context.Context, userID, endpoint string) (json.RawMessage, error) {
	token, err := s.users.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.fetcher.Fetch(ctx, s.apiURL+endpoint, token)
}

// Search queries the catalog for kind. Successful responses are cached.
func (s *SpotifyService) Search(ctx context.Context, query string, kind SearchType) (*SpotifySearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", shared.ErrInvalidInput)
	}

	params := url.Values{"q": {query}, "type": {string(kind)}}
	endpoint := "/search?" + params.Encode()

	body, err := s.cache.cached(ctx, cacheKey("spotify", string(kind), query), func(ctx context.Context) (json.RawMessage, error) {
		return s.catalog(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var response SpotifySearchResponse
	if err := decode(body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Album retrieves an album by ID.
func (s *SpotifyService) Album(ctx context.Context, albumID string) (json.RawMessage, error) {
	return s.resource(ctx, "albums", albumID)
}

// Artist retrieves an artist by ID.
func (s *SpotifyService) Artist(ctx context.Context, artistID string) (json.RawMessage, error) {
	return s.resource(ctx, "artists", artistID)
}

func (s *SpotifyService) resource(ctx context.Context, kind, id string) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: %s id must not be empty", shared.ErrInvalidInput, kind)
	}
	return s.catalog(ctx, fmt.Sprintf("/%s/%s", kind, url.PathEscape(id)))
}

// UserPlaylists retrieves the user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, userID string) (*SpotifyPaginatedPlaylists, error) {
	body, err := s.UserResource(ctx, userID, ResourcePlaylists)
	if err != nil {
		return nil, err
	}

	var response SpotifyPaginatedPlaylists
	if err := decode(body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// SavedTracks retrieves the tracks saved in the user's library.
func (s *SpotifyService) SavedTracks(ctx context.Context, userID string) (*SpotifyPaginatedTracks, error) {
	body, err := s.UserResource(ctx, userID, ResourceSavedTracks)
	if err != nil {
		return nil, err
	}

	var response SpotifyPaginatedTracks
	if err := decode(body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// UserResource retrieves the raw provider JSON for one of the user library endpoints.
func (s *SpotifyService) UserResource(ctx context.Context, userID string, resource UserResource) (json.RawMessage, error) {
	path, ok := userResourcePaths[resource]
	if !ok {
		return nil, fmt.Errorf("%w: unknown user resource %q", shared.ErrInvalidInput, resource)
	}
	return s.userRequest(ctx, userID, path)
}
