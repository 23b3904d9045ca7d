// package services wraps the third-party media APIs the frontend searches and embeds
//
// Spotify (catalog + per-user library), YouTube, Giphy
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// SearchCache memoizes raw search responses keyed by provider, kind and query.
//
// A nil *SearchCache disables caching.
type SearchCache struct {
	cache *ttlcache.Cache[string, json.RawMessage]
}

// NewSearchCache creates a cache whose entries expire after ttl. A non-positive ttl returns nil.
func NewSearchCache(ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		return nil
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, json.RawMessage](ttl),
		ttlcache.WithDisableTouchOnHit[string, json.RawMessage](),
	)
	go cache.Start()
	return &SearchCache{cache: cache}
}

// Close stops the expiry loop.
func (c *SearchCache) Close() {
	if c != nil {
		c.cache.Stop()
	}
}

// Len returns the number of live entries.
func (c *SearchCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *SearchCache) get(key string) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *SearchCache) set(key string, body json.RawMessage) {
	if c != nil {
		c.cache.Set(key, body, ttlcache.DefaultTTL)
	}
}

// cached returns the body stored under key, or calls fetch and stores a successful result.
func (c *SearchCache) cached(ctx context.Context, key string, fetch func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if body, ok := c.get(key); ok {
		return body, nil
	}
	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.set(key, body)
	return body, nil
}

func cacheKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

func decode(body json.RawMessage, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
