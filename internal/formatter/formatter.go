// package formatter reshapes provider responses into the compact JSON the frontend renders
package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/services"
	"github.com/dylantheriot/bubl-backend/internal/shared"
)

// Result is the envelope for reshaped Spotify lists.
type Result[T any] struct {
	Result []T `json:"result"`
}

// Track is a song card.
type Track struct {
	Artist   string `json:"artist"`
	Track    string `json:"track"`
	Album    string `json:"album"`
	TrackImg string `json:"track_img"`
	EmbedURL string `json:"embed_url"`
}

// Playlist is a playlist card.
type Playlist struct {
	Name        string `json:"name"`
	Desc        string `json:"desc"`
	PlaylistImg string `json:"playlist_img"`
	EmbedURL    string `json:"embed_url"`
}

// Album is an album card.
type Album struct {
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	AlbumImg    string `json:"album_img"`
	ReleaseDate string `json:"release_date"`
	EmbedURL    string `json:"embed_url"`
}

// Artist is an artist card.
type Artist struct {
	Name      string   `json:"name"`
	ArtistImg string   `json:"artist_img"`
	Genres    []string `json:"genres"`
	Followers int      `json:"followers"`
	EmbedURL  string   `json:"embed_url"`
}

// Video is a YouTube search hit.
type Video struct {
	Link string `json:"link"`
}

// Videos is the YouTube search envelope.
type Videos struct {
	Videos []Video `json:"videos"`
}

// GIF is a Giphy search hit.
type GIF struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	EmbedURL string `json:"embed_url"`
}

// GIFs is the Giphy search envelope.
type GIFs struct {
	GIFs []GIF `json:"gifs"`
}

// firstImage returns the largest (first) image URL, or "" when none exist.
func firstImage(images []services.SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func firstArtist(artists []services.SpotifyArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

// ToTrack converts a Spotify track into a song card.
func ToTrack(t services.SpotifyTrack) Track {
	return Track{
		Artist:   firstArtist(t.Artists),
		Track:    t.Name,
		Album:    t.Album.Name,
		TrackImg: firstImage(t.Album.Images),
		EmbedURL: t.ExternalURLs.Spotify,
	}
}

// ToPlaylist converts a Spotify playlist into a playlist card.
func ToPlaylist(p services.SpotifySimplePlaylist) Playlist {
	return Playlist{
		Name:        p.Name,
		Desc:        p.Description,
		PlaylistImg: firstImage(p.Images),
		EmbedURL:    p.ExternalURLs.Spotify,
	}
}

// ToAlbum converts a Spotify album into an album card.
func ToAlbum(a services.SpotifyAlbum) Album {
	return Album{
		Name:        a.Name,
		Artist:      firstArtist(a.Artists),
		AlbumImg:    firstImage(a.Images),
		ReleaseDate: a.ReleaseDate,
		EmbedURL:    a.ExternalURLs.Spotify,
	}
}

// ToArtist converts a Spotify artist into an artist card.
func ToArtist(a services.SpotifyArtist) Artist {
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	return Artist{
		Name:      a.Name,
		ArtistImg: firstImage(a.Images),
		Genres:    genres,
		Followers: a.Followers.Total,
		EmbedURL:  a.ExternalURLs.Spotify,
	}
}

func mapAll[S, T any](in []S, fn func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

// SavedTracks reshapes the user's saved tracks.
func SavedTracks(page *services.SpotifyPaginatedTracks) Result[Track] {
	if page == nil {
		return Result[Track]{Result: []Track{}}
	}
	return Result[Track]{Result: mapAll(page.Items, func(s services.SpotifySavedTrack) Track { return ToTrack(s.Track) })}
}

// Playlists reshapes the user's playlists.
func Playlists(page *services.SpotifyPaginatedPlaylists) Result[Playlist] {
	if page == nil {
		return Result[Playlist]{Result: []Playlist{}}
	}
	return Result[Playlist]{Result: mapAll(page.Items, ToPlaylist)}
}

// SearchResults reshapes a catalog search for kind. Missing groups and null items yield empty results.
func SearchResults(res *services.SpotifySearchResponse, kind services.SearchType) any {
	if res == nil {
		return Result[any]{Result: []any{}}
	}

	switch kind {
	case services.SearchTrack:
		if res.Tracks != nil {
			return Result[Track]{Result: mapAll(res.Tracks.Items, ToTrack)}
		}
		return Result[Track]{Result: []Track{}}
	case services.SearchPlaylist:
		out := []Playlist{}
		if res.Playlists != nil {
			for _, p := range res.Playlists.Items {
				if p != nil {
					out = append(out, ToPlaylist(*p))
				}
			}
		}
		return Result[Playlist]{Result: out}
	case services.SearchAlbum:
		if res.Albums != nil {
			return Result[Album]{Result: mapAll(res.Albums.Items, ToAlbum)}
		}
		return Result[Album]{Result: []Album{}}
	case services.SearchArtist:
		if res.Artists != nil {
			return Result[Artist]{Result: mapAll(res.Artists.Items, ToArtist)}
		}
		return Result[Artist]{Result: []Artist{}}
	default:
		return Result[any]{Result: []any{}}
	}
}

// YouTubeVideos reshapes YouTube search hits into watch links.
func YouTubeVideos(videos []services.YouTubeVideo) Videos {
	return Videos{Videos: mapAll(videos, func(v services.YouTubeVideo) Video { return Video{Link: v.Link()} })}
}

// GiphyGIFs reshapes Giphy search hits.
func GiphyGIFs(gifs []services.GiphyGIF) GIFs {
	return GIFs{GIFs: mapAll(gifs, func(g services.GiphyGIF) GIF {
		return GIF{ID: g.ID, Title: g.Title, URL: g.URL, EmbedURL: g.EmbedURL}
	})}
}

// WriteTokenSummary prints a masked token and its remaining lifetime, one field per line.
func WriteTokenSummary(w io.Writer, label, token string, expiresAt, now time.Time) error {
	remaining := expiresAt.Sub(now).Round(time.Second)
	status := fmt.Sprintf("expires in %s", remaining)
	if remaining <= 0 {
		status = "expired"
	}

	_, err := fmt.Fprintf(w, "%s\n  token:      %s\n  expires_at: %s (%s)\n",
		label, shared.MaskToken(token), expiresAt.UTC().Format(time.RFC3339), status)
	if err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
