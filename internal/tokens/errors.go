package tokens

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/dylantheriot/bubl-backend/internal/shared"
	"golang.org/x/oauth2"
)

var (
	ErrProviderAuth      = errors.New("provider token request failed")
	ErrMalformedResponse = fmt.Errorf("%w: malformed token response", ErrProviderAuth)
	ErrMissingUserRecord = errors.New("user record not found")
	ErrNotConnected      = errors.New("spotify account not connected")
	ErrStaleToken        = errors.New("access token rejected by provider")
)

// Grant types sent to the token endpoint.
const (
	GrantClientCredentials = "client_credentials"
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// ProviderError describes a failed token endpoint call.
//
// It matches [ErrProviderAuth] (or [ErrMalformedResponse]) for rejected or unusable responses, and
// [shared.ErrServiceUnavailable] or [shared.ErrTimeout] when the endpoint could not be reached.
type ProviderError struct {
	Grant       string
	StatusCode  int
	Code        string
	Description string

	kind  error
	cause error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s grant: %v", e.Grant, e.kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += " - " + e.Description
		}
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Transient reports whether the failure was a transport problem or a 5xx, which may succeed on retry.
func (e *ProviderError) Transient() bool {
	if errors.Is(e.kind, shared.ErrServiceUnavailable) || errors.Is(e.kind, shared.ErrTimeout) {
		return true
	}
	return e.StatusCode >= 500
}

// classify converts an error from the oauth2 package into a [*ProviderError].
func classify(grant string, err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		pe := &ProviderError{Grant: grant, Code: rerr.ErrorCode, Description: rerr.ErrorDescription, kind: ErrProviderAuth}
		if rerr.Response != nil {
			pe.StatusCode = rerr.Response.StatusCode
		}
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Grant: grant, kind: shared.ErrTimeout, cause: err}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &ProviderError{Grant: grant, kind: shared.ErrTimeout, cause: err}
	}

	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, context.Canceled) {
		return &ProviderError{Grant: grant, kind: shared.ErrServiceUnavailable, cause: err}
	}

	return &ProviderError{Grant: grant, kind: ErrMalformedResponse, cause: err}
}

func malformed(grant, reason string) *ProviderError {
	return &ProviderError{Grant: grant, kind: ErrMalformedResponse, cause: errors.New(reason)}
}
