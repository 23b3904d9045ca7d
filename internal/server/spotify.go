package server

import (
	"net/http"

	"github.com/dylantheriot/bubl-backend/internal/formatter"
	"github.com/dylantheriot/bubl-backend/internal/services"
	"github.com/labstack/echo/v4"
)

// SpotifyHandler serves catalog search and the per-user library endpoints.
type SpotifyHandler struct {
	server *Server
}

// rawResources are passed through to the frontend without reshaping.
var rawResources = []services.UserResource{
	services.ResourceSavedAlbums,
	services.ResourceSavedShows,
	services.ResourceFollowing,
	services.ResourceTopArtists,
	services.ResourceTopTracks,
}

func (h *SpotifyHandler) Register(e *echo.Echo) {
	e.GET("/spotify/search", h.search)
	e.GET("/spotify/albums/:id", h.album)
	e.GET("/spotify/artists/:id", h.artist)
	e.GET("/spotify/user/playlists", h.playlists)
	e.GET("/spotify/user/saved_tracks", h.savedTracks)
	for _, resource := range rawResources {
		e.GET("/spotify/user/"+string(resource), h.userResource(resource))
	}
}

func (h *SpotifyHandler) search(c echo.Context) error {
	kind, err := services.ParseSearchType(c.QueryParam("search_type"))
	if err != nil {
		return err
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	res, err := h.server.deps.Spotify.Search(ctx, c.QueryParam("query"), kind)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, formatter.SearchResults(res, kind))
}

func (h *SpotifyHandler) album(c echo.Context) error {
	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	body, err := h.server.deps.Spotify.Album(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, body)
}

func (h *SpotifyHandler) artist(c echo.Context) error {
	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	body, err := h.server.deps.Spotify.Artist(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, body)
}

func (h *SpotifyHandler) playlists(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	page, err := h.server.deps.Spotify.UserPlaylists(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, formatter.Playlists(page))
}

func (h *SpotifyHandler) savedTracks(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	page, err := h.server.deps.Spotify.SavedTracks(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, formatter.SavedTracks(page))
}

func (h *SpotifyHandler) userResource(resource services.UserResource) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := userParam(c)
		if err != nil {
			return err
		}

		ctx, cancel := h.server.requestContext(c)
		defer cancel()

		body, err := h.server.deps.Spotify.UserResource(ctx, userID, resource)
		if err != nil {
			return err
		}
		return c.JSONBlob(http.StatusOK, body)
	}
}

func userParam(c echo.Context) (string, error) {
	userID := c.QueryParam("uuid")
	if userID == "" {
		return "", badRequest("uuid is required")
	}
	return userID, nil
}
