// Package tokens manages the Spotify OAuth token lifecycle.
//
// Two flows are supported, both against the provider token endpoint with Basic client credentials:
//   - client credentials, producing the process-wide app token used for catalog search ([AppTokenManager])
//   - authorization code + refresh token, producing per-user credentials ([Exchanger], [Refresher])
//
// The [Gate] decides per request whether a user's stored access token is still usable, refreshing it
// synchronously under a per-user [Locker] when it is not. The [Fetcher] performs the authenticated GET with
// whatever token the gate returned; it never loops back into the gate.
//
// # Refresh policy
//
// [RefreshOnExpiry] (default) refreshes only when the stored expires_at, minus a small skew, has passed.
// [RefreshAlways] refreshes before every authenticated call.
//
// # Errors
//
//   - [ErrProviderAuth] : the token endpoint rejected a grant (non-2xx); see [ProviderError]
//   - [ErrMalformedResponse] : a 2xx token response missing required fields; also matches [ErrProviderAuth]
//   - [ErrMissingUserRecord] : no user document exists
//   - [ErrNotConnected] : the user never completed the authorization code flow
//   - [ErrStaleToken] : a resource call returned 401 for a token believed valid
//
// Failures are never cached and never converted into empty values.
package tokens
