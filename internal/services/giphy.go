// Giphy search API client
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultGiphyURL   = "https://api.giphy.com"
	defaultGiphyLimit = 20
	maxGiphyLimit     = 50
)

// GiphyGIF is a single GIF search result.
type GiphyGIF struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	EmbedURL string `json:"embed_url"`
	Images   struct {
		Original struct {
			URL string `json:"url"`
		} `json:"original"`
	} `json:"images"`
}

type giphySearchResponse struct {
	Data []GiphyGIF `json:"data"`
	Meta struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
	} `json:"meta"`
}

// GiphyOpts configures a [GiphyService].
type GiphyOpts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Cache      *SearchCache
	Logger     *log.Logger
}

// GiphyService searches Giphy with an API key.
type GiphyService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *SearchCache
	logger     *log.Logger
}

// NewGiphyService creates a new Giphy service instance.
func NewGiphyService(opts GiphyOpts) (*GiphyService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: giphy api key", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGiphyURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &GiphyService{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		cache:      opts.Cache,
		logger:     shared.WithLogger(opts.Logger, "service", "giphy"),
	}, nil
}

// Name returns the service name.
func (g *GiphyService) Name() string {
	return "Giphy"
}

// Search returns up to limit GIFs for query. limit defaults to 20 and is capped at 50.
func (g *GiphyService) Search(ctx context.Context, query string, limit int) ([]GiphyGIF, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultGiphyLimit
	}
	if limit > maxGiphyLimit {
		limit = maxGiphyLimit
	}

	params := url.Values{
		"api_key": {g.apiKey},
		"q":       {query},
		"limit":   {strconv.Itoa(limit)},
		"rating":  {"g"},
	}

	body, err := g.cache.cached(ctx, cacheKey("giphy", strconv.Itoa(limit), query), func(ctx context.Context) (json.RawMessage, error) {
		return g.doRequest(ctx, "/v1/gifs/search?"+params.Encode())
	})
	if err != nil {
		return nil, err
	}

	var response giphySearchResponse
	if err := decode(body, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (g *GiphyService) doRequest(ctx context.Context, endpoint string) (json.RawMessage, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", shared.ErrTimeout, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: giphy: %v", shared.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: giphy: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: giphy: reading response: %v", shared.ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp giphySearchResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Meta.Msg != "" {
			return nil, fmt.Errorf("%w: giphy status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Meta.Msg)
		}
		return nil, fmt.Errorf("%w: giphy status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return json.RawMessage(body), nil
}
