// Package services defines the [Library] boundary used by the sync pipeline and implements it for Spotify.
//
// # Library Interface
//
// The pipeline only needs paginated reads (liked tracks, liked albums, album tracks, playlists,
// playlist tracks) and two batched mutations. Each page carries an opaque cursor; for Spotify the
// cursor is the "next" URL returned by the Web API, accepted only when it points at the configured
// API base URL.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// The client built by [oauth2.NewClient] refreshes expired tokens using the refresh token, and
// [SpotifyService.Token] exposes the refreshed token so callers can persist it.
//
// An optional client-side limiter from golang.org/x/time/rate spaces out requests.
//
// # Error Handling
//
// Non-2xx responses are returned as [*APIError]. A 429 response reports its Retry-After hint through
// [APIError.RetryAfter], which the retry package uses to wait exactly as long as the server asked.
// Other sentinels from the shared package:
//   - [shared.ErrNotAuthenticated] : OAuthenticate() not called
//   - [shared.ErrTokenExpired] : the API rejected the token (401)
//   - [shared.ErrAPIRequest] : the request could not be built or decoded
//   - [shared.ErrBatchTooLarge] : a batch larger than [MaxBatchSize]
//   - [shared.ErrInvalidInput] : an empty batch or a foreign cursor
package services
