package shared

import "errors"

// ErrNotImplemented is returned by commands or platforms that are recognised but unsupported.
var ErrNotImplemented = errors.New("not implemented")

// Configuration errors
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing provider credentials")
)

// Provider call errors, shared by Spotify, YouTube and Giphy clients.
var (
	ErrAPIRequest         = errors.New("provider request failed")
	ErrServiceUnavailable = errors.New("provider unreachable")
	// ErrTimeout wraps deadline hits on outbound calls, including rate limiter waits.
	ErrTimeout = errors.New("provider call timed out")
)

// Request validation errors; the HTTP layer answers 400 for all of them.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)
