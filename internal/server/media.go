package server

import (
	"net/http"
	"strconv"

	"github.com/dylantheriot/bubl-backend/internal/formatter"
	"github.com/labstack/echo/v4"
)

// MediaHandler serves YouTube and Giphy search.
type MediaHandler struct {
	server *Server
}

func (h *MediaHandler) Register(e *echo.Echo) {
	e.GET("/youtube/search", h.youtube)
	e.GET("/giphy/search", h.giphy)
}

func (h *MediaHandler) youtube(c echo.Context) error {
	if h.server.deps.YouTube == nil {
		return errNotConfigured
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	videos, err := h.server.deps.YouTube.Search(ctx, c.QueryParam("query"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, formatter.YouTubeVideos(videos))
}

func (h *MediaHandler) giphy(c echo.Context) error {
	if h.server.deps.Giphy == nil {
		return errNotConfigured
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest("limit must be a non-negative integer")
		}
		limit = n
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	gifs, err := h.server.deps.Giphy.Search(ctx, c.QueryParam("query"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, formatter.GiphyGIFs(gifs))
}
