// YouTube Data API search
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubeMaxResults = 20
	youtubeWatchURL   = "https://www.youtube.com/watch?v="
)

// YouTubeVideo is an embeddable search hit.
type YouTubeVideo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Link returns the watch URL for the video.
func (v YouTubeVideo) Link() string {
	return youtubeWatchURL + v.ID
}

// YouTubeOpts configures a [YouTubeService].
type YouTubeOpts struct {
	APIKey string
	// Endpoint overrides the API base URL.
	Endpoint   string
	HTTPClient *http.Client
	Cache      *SearchCache
	Logger     *log.Logger
}

// YouTubeService searches YouTube for embeddable videos using a developer key.
type YouTubeService struct {
	svc    *youtube.Service
	cache  *SearchCache
	logger *log.Logger
}

// NewYouTubeService creates a new YouTube service instance.
func NewYouTubeService(ctx context.Context, opts YouTubeOpts) (*YouTubeService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: youtube developer key", shared.ErrMissingCredentials)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	base := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}
	client := &http.Client{Transport: &transport.APIKey{Key: opts.APIKey, Transport: base}}
	if opts.HTTPClient != nil {
		client.Timeout = opts.HTTPClient.Timeout
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	return &YouTubeService{
		svc:    svc,
		cache:  opts.Cache,
		logger: shared.WithLogger(opts.Logger, "service", "youtube"),
	}, nil
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// Search returns up to 20 embeddable videos matching query.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]YouTubeVideo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", shared.ErrInvalidInput)
	}

	body, err := y.cache.cached(ctx, cacheKey("youtube", query), func(ctx context.Context) (json.RawMessage, error) {
		videos, err := y.search(ctx, query)
		if err != nil {
			return nil, err
		}
		return json.Marshal(videos)
	})
	if err != nil {
		return nil, err
	}

	var videos []YouTubeVideo
	if err := decode(body, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

func (y *YouTubeService) search(ctx context.Context, query string) ([]YouTubeVideo, error) {
	resp, err := y.svc.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		VideoEmbeddable("true").
		MaxResults(youtubeMaxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, youtubeError(ctx, err)
	}

	videos := make([]YouTubeVideo, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		video := YouTubeVideo{ID: item.Id.VideoId}
		if sn := item.Snippet; sn != nil {
			video.Title = sn.Title
			video.Channel = sn.ChannelTitle
			if sn.Thumbnails != nil && sn.Thumbnails.High != nil {
				video.Thumbnail = sn.Thumbnails.High.Url
			}
		}
		videos = append(videos, video)
	}

	y.logger.Debug("youtube search", "query", query, "results", len(videos))
	return videos, nil
}

func youtubeError(ctx context.Context, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: youtube status %d: %s", shared.ErrAPIRequest, gerr.Code, gerr.Message)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: youtube search: %v", shared.ErrTimeout, err)
	}
	return fmt.Errorf("%w: youtube search: %v", shared.ErrServiceUnavailable, err)
}
