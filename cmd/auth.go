package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/likesync/internal/server"
	"github.com/desertthunder/likesync/internal/services"
	"github.com/desertthunder/likesync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth runs the authorization code flow and stores the token in the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.loadConfig(cmd); err != nil {
		return err
	}

	spotifyService, err := r.newSpotifyService(cmd)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, spotifyService, "authorization")
	if err != nil {
		return err
	}

	if err := r.storeToken(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now run: likesync --config %s\n", r.configPath)
	return nil
}

// credentials resolves the client ID and secret: flag, then environment (including .env), then config file.
func (r *Runner) credentials(cmd *cli.Command) (shared.SpotifyConfig, error) {
	creds := r.config.Credentials.Spotify

	if id := cmd.String("client_id"); id != "" {
		creds.ClientID = id
	}
	if secret := cmd.String("client_secret"); secret != "" {
		creds.ClientSecret = secret
	}

	if creds.ClientID == "" {
		return creds, fmt.Errorf("%w: --client_id (or SPOTIFY_CLIENT_ID) is required", shared.ErrMissingArgument)
	}
	if creds.ClientSecret == "" {
		return creds, fmt.Errorf("%w: --client_secret (or SPOTIFY_CLIENT_SECRET) is required", shared.ErrMissingArgument)
	}

	if creds.RedirectURI == "" {
		creds.RedirectURI = r.config.RedirectURL()
	}
	return creds, nil
}

func (r *Runner) newSpotifyService(cmd *cli.Command) (*services.SpotifyService, error) {
	creds, err := r.credentials(cmd)
	if err != nil {
		return nil, err
	}

	opts := append([]services.Option{
		services.WithHTTPClient(r.httpClient),
		services.WithRateLimit(r.config.Retry.RequestsPerSecond),
	}, r.services...)

	spotifyService, err := services.NewSpotifyService(creds.Map(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	return spotifyService, nil
}

// connect authenticates spotifyService with the stored token, running the OAuth flow when there is
// none or it can no longer be refreshed. Refreshed tokens are written back to the config file.
func (r *Runner) connect(ctx context.Context, spotifyService *services.SpotifyService) error {
	spotifyService.SetTokenRefreshCallback(func(token *oauth2.Token) {
		r.logger.Debug("access token refreshed", "expiry", token.Expiry)
		if err := r.storeToken(token); err != nil {
			r.logger.Warn("failed to save refreshed token", "error", err)
		}
	})

	token := r.config.Credentials.Spotify.Token()
	if token != nil {
		err := spotifyService.OAuthenticate(ctx, token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			return err
		}
		r.logger.Warn("stored token cannot be refreshed, reauthorizing")
	}
	return r.authorize(ctx, spotifyService)
}

// authorize runs the OAuth flow, stores the new token and installs it on spotifyService.
func (r *Runner) authorize(ctx context.Context, spotifyService *services.SpotifyService) error {
	token, err := r.doOAuth(ctx, spotifyService, "authorization")
	if err != nil {
		return err
	}
	if err := r.storeToken(token); err != nil {
		return err
	}
	return spotifyService.OAuthenticate(ctx, token)
}

// isAuthFailure reports whether err means the stored grant is no longer accepted.
func isAuthFailure(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr) || errors.Is(err, shared.ErrTokenExpired)
}

func (r *Runner) storeToken(token *oauth2.Token) error {
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	return r.saveConfig()
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
//
// A configured port of 0 binds any free port and the redirect URL follows it.
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthConfig := oauthSrv.GetOAuthConfig()
	oauthHandler := server.NewOAuthHandler(oauthConfig, state).WithHTTPClient(r.httpClient)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	callbackServer, err := server.Listen(addr, router, r.logger)
	if err != nil {
		return nil, err
	}
	defer callbackServer.Shutdown(context.WithoutCancel(ctx))

	if r.config.Server.Port == 0 {
		oauthConfig.RedirectURL = fmt.Sprintf("http://%s/callback", callbackServer.Addr())
	}
	r.logger.Infof("started OAuth server for %s at %v", prefix, callbackServer.Addr())

	authURL := oauthSrv.GetAuthURL(state)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	token, err := oauthHandler.Await(ctx, callbackServer.Errors(), authTimeout)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return token, nil
}
