// package server contains middleware & handlers for the bubl web API
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/services"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Handler registers a group of related routes on the server.
type Handler interface {
	Register(e *echo.Echo)
}

// UserStore is the user persistence the routes depend on.
type UserStore interface {
	Create(ctx context.Context, id string) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
}

// BoardStore is the board persistence the routes depend on.
type BoardStore interface {
	Get(ctx context.Context, userID string) (*models.Board, error)
	Replace(ctx context.Context, userID string, items []models.BoardItem) (*models.Board, error)
}

// Connector builds consent URLs and completes the authorization code flow.
type Connector interface {
	AuthURL(userID string) string
	Connect(ctx context.Context, userID, code string) (*models.UserTokenRecord, error)
}

// SpotifyAPI is the Spotify surface exposed over HTTP.
type SpotifyAPI interface {
	Search(ctx context.Context, query string, kind services.SearchType) (*services.SpotifySearchResponse, error)
	Album(ctx context.Context, id string) (json.RawMessage, error)
	Artist(ctx context.Context, id string) (json.RawMessage, error)
	UserPlaylists(ctx context.Context, userID string) (*services.SpotifyPaginatedPlaylists, error)
	SavedTracks(ctx context.Context, userID string) (*services.SpotifyPaginatedTracks, error)
	UserResource(ctx context.Context, userID string, resource services.UserResource) (json.RawMessage, error)
}

// VideoSearcher finds embeddable videos.
type VideoSearcher interface {
	Search(ctx context.Context, query string) ([]services.YouTubeVideo, error)
}

// GIFSearcher finds GIFs.
type GIFSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]services.GiphyGIF, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the routes call. YouTube and Giphy are optional; their routes answer
// 503 when unset.
type Deps struct {
	Users     UserStore
	Boards    BoardStore
	Store     Pinger
	Connector Connector
	Spotify   SpotifyAPI
	YouTube   VideoSearcher
	Giphy     GIFSearcher
}

// Options configures the HTTP server.
type Options struct {
	CORSOrigins []string
	// RequestTimeout bounds all provider and store work done for a single request.
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// Server is the echo application serving the bubl API.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	logger  *log.Logger
	timeout time.Duration
}

// New builds the echo application with middleware and every route registered.
func New(deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		deps:    deps,
		logger:  shared.WithLogger(opts.Logger, "component", "http"),
		timeout: opts.RequestTimeout,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: shared.GenerateID}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			kv := []any{"method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				s.logger.Warn("request", append(kv, "error", v.Error)...)
				return nil
			}
			s.logger.Info("request", kv...)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	e.GET("/", s.hello)
	e.GET("/healthz", s.health)

	s.Handler(&OAuthHandler{server: s})
	s.Handler(&SpotifyHandler{server: s})
	s.Handler(&UserHandler{server: s})
	s.Handler(&MediaHandler{server: s})
	return s
}

// Handler registers h's routes.
func (s *Server) Handler(h Handler) {
	h.Register(s.echo)
}

// ServeHTTP implements [http.Handler] for the entire application.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until [Server.Shutdown] is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	return s.echo.Shutdown(ctx)
}

// requestContext derives the per-request deadline for downstream calls.
func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.timeout)
}

func (s *Server) hello(c echo.Context) error {
	return c.String(http.StatusOK, "Hello, World!")
}

func (s *Server) health(c echo.Context) error {
	if s.deps.Store == nil {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
