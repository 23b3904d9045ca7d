// Package services implements the outbound media API clients behind the HTTP routes.
//
// # Spotify
//
// [SpotifyService] reads two kinds of data. Catalog lookups (search, albums, artists) use the
// client-credentials app token from [tokens.AppTokenManager]; a 401 invalidates the app token and
// the call is retried once. Library endpoints (/me/...) use the per-user token handed out by
// [tokens.Gate], which refreshes expired tokens before the request. A 401 there surfaces as
// [tokens.ErrStaleToken] and is not retried.
//
// # YouTube
//
// [YouTubeService] wraps the YouTube Data API v3 client with a developer key. Search returns
// embeddable videos only, 20 per query.
//
// # Giphy
//
// [GiphyService] calls the Giphy search endpoint directly and shares the outbound rate limiter.
//
// # Caching
//
// Search responses from all three providers can be memoized in a [SearchCache] keyed by provider,
// search kind and normalized query. Failures are never cached.
//
// # Error Handling
//
// Services use typed errors from the shared and tokens packages:
//   - [shared.ErrInvalidInput] : empty query or unknown search type
//   - [shared.ErrAPIRequest] : provider returned a non-2xx status
//   - [shared.ErrTimeout] : provider did not answer in time
//   - [tokens.ErrNotConnected] : user has not linked Spotify
//   - [tokens.ErrStaleToken] : provider rejected the user's access token
package services
