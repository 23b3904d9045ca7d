package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/shared"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps provider resource bodies.
const maxResponseBytes = 8 << 20

// Fetcher performs authenticated GETs against provider resource URLs.
//
// It has no retry or refresh logic: a 401 surfaces as [ErrStaleToken].
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// NewFetcher creates a [Fetcher]. A nil limiter disables rate limiting.
func NewFetcher(client *http.Client, timeout time.Duration, limiter *rate.Limiter) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{client: client, timeout: timeout, limiter: limiter}
}

// StatusError is a non-2xx provider resource response other than 401.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: GET %s: status %d", shared.ErrAPIRequest, e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return shared.ErrAPIRequest }

// Fetch issues GET url with a Bearer header and returns the raw JSON body.
func (f *Fetcher) Fetch(ctx context.Context, url, accessToken string) (json.RawMessage, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrNotConnected)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", shared.ErrTimeout, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: GET %s: %v", shared.ErrTimeout, url, err)
		}
		return nil, fmt.Errorf("%w: GET %s: %v", shared.ErrServiceUnavailable, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading GET %s: %v", shared.ErrServiceUnavailable, url, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: GET %s", ErrStaleToken, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: GET %s: response is not JSON", shared.ErrAPIRequest, url)
	}
	return json.RawMessage(body), nil
}
