package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dylantheriot/bubl-backend/internal/repositories"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"github.com/dylantheriot/bubl-backend/internal/tokens"
	"github.com/labstack/echo/v4"
)

var errNotConfigured = errors.New("provider not configured")

// StatusFor maps a domain error onto the HTTP status returned to the frontend.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, tokens.ErrMissingUserRecord), errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tokens.ErrNotConnected), errors.Is(err, repositories.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, repositories.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, tokens.ErrProviderAuth),
		errors.Is(err, tokens.ErrStaleToken),
		errors.Is(err, shared.ErrAPIRequest),
		errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes every failed request as {"error": "..."}. Server-side
// failures are logged in full and answered with the status text only.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := StatusFor(err)
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
		if he.Internal != nil {
			err = he.Internal
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
		msg = http.StatusText(status)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if werr := c.JSON(status, echo.Map{"error": msg}); werr != nil {
		s.logger.Error("failed to write error response", "error", werr)
	}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, fmt.Sprintf(format, args...))
}
