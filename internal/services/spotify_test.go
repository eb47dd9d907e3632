package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/retry"
	"github.com/desertthunder/likesync/internal/shared"
	"golang.org/x/oauth2"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

// newTestService starts an API server under /v1 and returns an authenticated service pointed at it.
func newTestService(t *testing.T, handler http.HandlerFunc) (*SpotifyService, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewSpotifyService(testCredentials, WithBaseURL(srv.URL+"/v1"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	if err := svc.OAuthenticate(context.Background(), &oauth2.Token{AccessToken: "test_token", TokenType: "Bearer"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return svc, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.GetOAuthConfig().RedirectURL != defaultRedirectURI {
				t.Errorf("expected default redirect URI, got %s", srv.GetOAuthConfig().RedirectURL)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state", "user-library-read", "playlist-modify-public"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL should contain %q, got %s", want, authURL)
			}
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("Not Authenticated", func(t *testing.T) {
			if _, err := srv.CurrentUser(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if _, err := srv.Token(); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("WithAccessToken", func(t *testing.T) {
			if err := srv.Authenticate(context.Background(), map[string]string{"access_token": "test_access_token"}); err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}

			token, err := srv.Token()
			if err != nil {
				t.Fatalf("expected token, got %v", err)
			}
			if token.AccessToken != "test_access_token" {
				t.Errorf("unexpected access token %s", token.AccessToken)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Expired Without Refresh Token", func(t *testing.T) {
			err := srv.OAuthenticate(context.Background(), &oauth2.Token{
				AccessToken: "stale",
				Expiry:      time.Now().Add(-time.Hour),
			})
			if !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
		})

		t.Run("WithAuthCode", func(t *testing.T) {
			tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Errorf("failed to parse form: %v", err)
				}
				if r.Form.Get("code") != "the_code" {
					t.Errorf("expected code the_code, got %q", r.Form.Get("code"))
				}
				writeJSON(t, w, map[string]any{
					"access_token":  "exchanged",
					"refresh_token": "refresh",
					"token_type":    "Bearer",
					"expires_in":    3600,
				})
			}))
			defer tokenSrv.Close()

			svc, err := NewSpotifyService(testCredentials, WithEndpoint(oauth2.Endpoint{
				AuthURL:  tokenSrv.URL + "/authorize",
				TokenURL: tokenSrv.URL + "/api/token",
			}))
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}

			if err := svc.Authenticate(context.Background(), map[string]string{"auth_code": "the_code"}); err != nil {
				t.Fatalf("expected exchange to succeed, got %v", err)
			}

			token, err := svc.Token()
			if err != nil || token.AccessToken != "exchanged" || token.RefreshToken != "refresh" {
				t.Errorf("unexpected token %+v (%v)", token, err)
			}
		})
	})

	t.Run("Token Refresh", func(t *testing.T) {
		var refreshed *oauth2.Token

		mux := http.NewServeMux()
		mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"access_token": "fresh",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		})
		mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer fresh" {
				t.Errorf("expected refreshed bearer token, got %q", got)
			}
			writeJSON(t, w, map[string]any{"id": "user1"})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		svc, err := NewSpotifyService(testCredentials,
			WithBaseURL(srv.URL+"/v1"),
			WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/api/token"}),
		)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}
		svc.SetTokenRefreshCallback(func(token *oauth2.Token) { refreshed = token })

		err = svc.OAuthenticate(context.Background(), &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(-time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}

		if _, err := svc.CurrentUser(context.Background()); err != nil {
			t.Fatalf("expected request to succeed after refresh, got %v", err)
		}

		if refreshed == nil || refreshed.AccessToken != "fresh" {
			t.Fatalf("expected refresh callback with fresh token, got %+v", refreshed)
		}
		if refreshed.RefreshToken != "refresh" {
			t.Errorf("expected refresh token to be carried over, got %q", refreshed.RefreshToken)
		}
	})

	t.Run("Revoked Refresh Token", func(t *testing.T) {
		var tokenHits, apiHits atomic.Int32

		mux := http.NewServeMux()
		mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
			tokenHits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
		})
		mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
			apiHits.Add(1)
			writeJSON(t, w, map[string]any{"id": "user1"})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		svc, err := NewSpotifyService(testCredentials,
			WithBaseURL(srv.URL+"/v1"),
			WithEndpoint(oauth2.Endpoint{
				AuthURL:   srv.URL + "/authorize",
				TokenURL:  srv.URL + "/api/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			}),
		)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}
		err = svc.OAuthenticate(context.Background(), &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "revoked",
			Expiry:       time.Now().Add(-time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}

		var waits []time.Duration
		r := retry.New(retry.DefaultPolicy(), nil, retry.WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}))

		_, err = retry.Do(context.Background(), r, svc.CurrentUser)

		var retrieveErr *oauth2.RetrieveError
		if !errors.As(err, &retrieveErr) || retrieveErr.ErrorCode != "invalid_grant" {
			t.Fatalf("expected invalid_grant token error, got %v", err)
		}
		if errors.Is(err, retry.ErrMaxRetries) {
			t.Errorf("expected the token error without retries, got %v", err)
		}
		if got := tokenHits.Load(); got != 1 {
			t.Errorf("expected 1 token request, got %d", got)
		}
		if got := apiHits.Load(); got != 0 {
			t.Errorf("expected no API requests, got %d", got)
		}
		if len(waits) != 0 {
			t.Errorf("expected no waits, got %v", waits)
		}
	})

	t.Run("SetTokenRefreshCallback", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("sets callback successfully", func(t *testing.T) {
			srv.SetTokenRefreshCallback(func(token *oauth2.Token) {})

			if srv.onTokenRefresh == nil {
				t.Error("expected callback to be set")
			}
		})

		t.Run("can set nil callback", func(t *testing.T) {
			srv.SetTokenRefreshCallback(nil)
			if srv.onTokenRefresh != nil {
				t.Error("expected callback to be nil")
			}
		})

		t.Run("updates installed token source", func(t *testing.T) {
			if err := srv.OAuthenticate(context.Background(), &oauth2.Token{AccessToken: "a"}); err != nil {
				t.Fatalf("failed to authenticate: %v", err)
			}
			srv.SetTokenRefreshCallback(func(token *oauth2.Token) {})

			if srv.tokens.callback == nil {
				t.Error("expected token source callback to be replaced")
			}
		})
	})

	t.Run("refreshableTokenSource", func(t *testing.T) {
		t.Run("calls callback on first token fetch", func(t *testing.T) {
			var capturedToken *oauth2.Token

			source := &refreshableTokenSource{
				source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
				callback: func(token *oauth2.Token) { capturedToken = token },
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if capturedToken == nil || capturedToken.AccessToken != "test_token" {
				t.Errorf("expected captured token to be 'test_token', got %+v", capturedToken)
			}
			if token.AccessToken != "test_token" {
				t.Errorf("expected returned token to be 'test_token', got %s", token.AccessToken)
			}
		})

		t.Run("calls callback when token changes", func(t *testing.T) {
			callCount := 0
			mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}

			source := &refreshableTokenSource{
				source:   mockSource,
				callback: func(token *oauth2.Token) { callCount++ },
			}

			_, _ = source.Token()
			mockSource.token = &oauth2.Token{AccessToken: "token2"}
			token2, _ := source.Token()

			if callCount != 2 {
				t.Errorf("expected callback called twice, got %d", callCount)
			}
			if token2.AccessToken != "token2" {
				t.Errorf("expected new token, got %s", token2.AccessToken)
			}
		})

		t.Run("doesn't call callback when token unchanged", func(t *testing.T) {
			callCount := 0

			source := &refreshableTokenSource{
				source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "same_token"}},
				callback: func(token *oauth2.Token) { callCount++ },
			}

			source.Token()
			source.Token()
			source.Token()

			if callCount != 1 {
				t.Errorf("expected callback called once, got %d", callCount)
			}
		})

		t.Run("propagates source errors", func(t *testing.T) {
			source := &refreshableTokenSource{
				source: &mockTokenSource{err: errors.New("token source error")},
				callback: func(token *oauth2.Token) {
					t.Error("callback should not be called on error")
				},
			}

			token, err := source.Token()
			if err == nil || !strings.Contains(err.Error(), "token source error") {
				t.Errorf("expected source error, got %v", err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	})
}

func TestSpotifyLibrary(t *testing.T) {
	t.Run("CurrentUser", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/me" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test_token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			writeJSON(t, w, map[string]any{"id": "user1", "display_name": "Test User"})
		})

		user, err := svc.CurrentUser(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "user1" || user.DisplayName != "Test User" {
			t.Errorf("unexpected user %+v", user)
		}
	})

	t.Run("SavedTracks Pagination", func(t *testing.T) {
		var base string
		svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/me/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			switch r.URL.Query().Get("offset") {
			case "":
				next := base + "/v1/me/tracks?offset=50&limit=50"
				writeJSON(t, w, map[string]any{
					"total": 4,
					"next":  next,
					"items": []any{
						map[string]any{"track": map[string]any{"id": "t1", "name": "One", "type": "track"}},
						map[string]any{"track": map[string]any{"id": nil, "name": "Local", "is_local": true}},
					},
				})
			case "50":
				writeJSON(t, w, map[string]any{
					"total": 4,
					"next":  nil,
					"items": []any{
						map[string]any{"track": map[string]any{"id": "t2", "name": "Two", "type": "track"}},
						map[string]any{"track": nil},
					},
				})
			}
		})
		base = srv.URL

		first, err := svc.SavedTracks(context.Background(), "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(first.Items) != 1 || first.Items[0].ID != "t1" {
			t.Errorf("expected local track to be skipped, got %+v", first.Items)
		}
		if first.Next == "" {
			t.Fatal("expected next cursor")
		}

		second, err := svc.SavedTracks(context.Background(), first.Next)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(second.Items) != 1 || second.Items[0].ID != "t2" || second.Next != "" {
			t.Errorf("unexpected second page %+v", second)
		}
	})

	t.Run("Foreign Cursor Rejected", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request should be made")
		})

		_, err := svc.SavedTracks(context.Background(), "https://evil.example.com/v1/me/tracks?offset=50")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("SavedAlbums And AlbumTracks", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/me/albums":
				writeJSON(t, w, map[string]any{
					"total": 1,
					"items": []any{map[string]any{"album": map[string]any{"id": "al1", "name": "Album", "total_tracks": 2}}},
				})
			case "/v1/albums/al1/tracks":
				writeJSON(t, w, map[string]any{
					"total": 2,
					"items": []any{
						map[string]any{"id": "t1", "type": "track"},
						map[string]any{"id": "t2", "type": "track"},
					},
				})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})

		albums, err := svc.SavedAlbums(context.Background(), "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums.Items) != 1 || albums.Items[0].ID != "al1" {
			t.Fatalf("unexpected albums %+v", albums.Items)
		}

		tracks, err := svc.AlbumTracks(context.Background(), "al1", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks.Items) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(tracks.Items))
		}
	})

	t.Run("PlaylistTracks Skips Episodes", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/playlists/pl1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "100" {
				t.Errorf("expected limit 100, got %s", r.URL.Query().Get("limit"))
			}
			writeJSON(t, w, map[string]any{
				"total": 2,
				"items": []any{
					map[string]any{"track": map[string]any{"id": "t1", "type": "track"}},
					map[string]any{"track": map[string]any{"id": "ep1", "type": "episode"}},
				},
			})
		})

		page, err := svc.PlaylistTracks(context.Background(), "pl1", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].ID != "t1" {
			t.Errorf("unexpected items %+v", page.Items)
		}
	})

	t.Run("Playlists And CreatePlaylist", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/v1/me/playlists":
				writeJSON(t, w, map[string]any{
					"total": 1,
					"items": []any{map[string]any{"id": "pl1", "name": "Road Trip", "owner": map[string]any{"id": "user1"}}},
				})
			case r.Method == http.MethodPost && r.URL.Path == "/v1/users/user1/playlists":
				var body map[string]any
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("failed to decode body: %v", err)
					return
				}
				if body["name"] != "My Library" || body["public"] != true {
					t.Errorf("unexpected create body %v", body)
				}
				w.WriteHeader(http.StatusCreated)
				writeJSON(t, w, map[string]any{"id": "new1", "name": body["name"], "description": body["description"], "public": true})
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		})

		page, err := svc.Playlists(context.Background(), "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].Name != "Road Trip" || page.Items[0].OwnerID != "user1" {
			t.Errorf("unexpected playlists %+v", page.Items)
		}

		created, err := svc.CreatePlaylist(context.Background(), "user1", PlaylistSpec{
			Name:        "My Library",
			Description: "A playlist containing all my liked albums and tracks",
			Public:      true,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created.ID != "new1" {
			t.Errorf("expected new1, got %s", created.ID)
		}
	})

	t.Run("AddTracks And RemoveTracks", func(t *testing.T) {
		var added []string
		var removed []string

		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/playlists/pl1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			switch r.Method {
			case http.MethodPost:
				var body struct {
					URIs []string `json:"uris"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("failed to decode body: %v", err)
					return
				}
				added = body.URIs
			case http.MethodDelete:
				var body struct {
					Tracks []struct {
						URI string `json:"uri"`
					} `json:"tracks"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("failed to decode body: %v", err)
					return
				}
				for _, tr := range body.Tracks {
					removed = append(removed, tr.URI)
				}
			}
			writeJSON(t, w, map[string]any{"snapshot_id": "snap"})
		})

		ctx := context.Background()
		if err := svc.AddTracks(ctx, "pl1", []models.TrackID{"a", "b"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := svc.RemoveTracks(ctx, "pl1", []models.TrackID{"c"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !slices.Equal(added, []string{"spotify:track:a", "spotify:track:b"}) {
			t.Errorf("unexpected added uris %v", added)
		}
		if !slices.Equal(removed, []string{"spotify:track:c"}) {
			t.Errorf("unexpected removed uris %v", removed)
		}
	})

	t.Run("Batch Limits", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request should be made")
		})

		tooMany := make([]models.TrackID, MaxBatchSize+1)
		for i := range tooMany {
			tooMany[i] = models.TrackID(fmt.Sprintf("t%d", i))
		}

		if err := svc.AddTracks(context.Background(), "pl1", tooMany); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := svc.RemoveTracks(context.Background(), "pl1", nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty batch, got %v", err)
		}
	})

	t.Run("API Errors", func(t *testing.T) {
		tc := []struct {
			name       string
			status     int
			header     string
			rateLimit  bool
			retryAfter time.Duration
			expired    bool
		}{
			{name: "rate limited with hint", status: http.StatusTooManyRequests, header: "3", rateLimit: true, retryAfter: 3 * time.Second},
			{name: "rate limited without hint", status: http.StatusTooManyRequests, rateLimit: true, retryAfter: -1},
			{name: "rate limited with zero hint", status: http.StatusTooManyRequests, header: "0", rateLimit: true},
			{name: "unauthorized", status: http.StatusUnauthorized, expired: true},
			{name: "server error", status: http.StatusBadGateway},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
					if tt.header != "" {
						w.Header().Set("Retry-After", tt.header)
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					fmt.Fprintf(w, `{"error":{"status":%d,"message":"nope"}}`, tt.status)
				})

				_, err := svc.CurrentUser(context.Background())

				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected *APIError, got %v", err)
				}
				if apiErr.Status != tt.status || apiErr.Message != "nope" {
					t.Errorf("unexpected error %+v", apiErr)
				}

				d, ok := apiErr.RetryAfter()
				if ok != tt.rateLimit || d != tt.retryAfter {
					t.Errorf("expected RetryAfter (%s, %v), got (%s, %v)", tt.retryAfter, tt.rateLimit, d, ok)
				}
				if errors.Is(err, shared.ErrTokenExpired) != tt.expired {
					t.Errorf("unexpected ErrTokenExpired match for %v", err)
				}
			})
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tc := []struct {
		name  string
		value string
		want  time.Duration
		ok    bool
	}{
		{name: "empty", value: ""},
		{name: "seconds", value: "5", want: 5 * time.Second, ok: true},
		{name: "zero", value: "0", want: 0, ok: true},
		{name: "negative", value: "-3"},
		{name: "garbage", value: "soon"},
		{name: "past date", value: "Mon, 02 Jan 2006 15:04:05 GMT", want: 0, ok: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseRetryAfter(%q) = (%s, %v), want (%s, %v)", tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}

	t.Run("future date", func(t *testing.T) {
		value := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
		if got, ok := parseRetryAfter(value); !ok || got <= 0 || got > time.Minute {
			t.Errorf("expected a positive wait up to a minute, got (%s, %v)", got, ok)
		}
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
