// Package server runs the local HTTP endpoint that completes the Spotify authorization code flow.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
// [OAuthHandler.Await] waits for that result with a timeout.
//
// # Callback Server
//
// [Listen] binds the configured host and port (127.0.0.1:8888 by default, matching the redirect URI
// registered for the Spotify app) before the browser is opened, serves the router in the background,
// and is shut down as soon as a token arrives.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// The [BasicRouter] implementation uses [http.ServeMux] method patterns.
// [RequestLogger] logs callback requests without their query strings.
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes.
package server
