// Spotify Web API implementation of [Library]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL     = "https://api.spotify.com/v1"
	defaultRedirectURI = "http://127.0.0.1:8888/callback"
	pageLimit          = 50
	playlistPageLimit  = 100
)

// Scopes requested by the authorization flow.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// APIError is a non-2xx response from the Web API.
type APIError struct {
	Status     int
	Message    string
	retryAfter time.Duration
	hasHint    bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.Status)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

// RetryAfter reports the server's back-off hint. ok is true only for 429 responses;
// the duration is negative when the response carried no usable Retry-After header.
func (e *APIError) RetryAfter() (time.Duration, bool) {
	if e.Status != http.StatusTooManyRequests {
		return 0, false
	}
	if !e.hasHint {
		return -1, true
	}
	return e.retryAfter, true
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return shared.ErrTokenExpired
	}
	return nil
}

type errorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// spotifyTrack is nullable in playlist and library responses, and ID is null for local files.
type spotifyTrack struct {
	ID      *string         `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	IsLocal bool            `json:"is_local"`
	Artists []spotifyArtist `json:"artists"`
}

type spotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TotalTracks int    `json:"total_tracks"`
}

type spotifyOwner struct {
	ID string `json:"id"`
}

type spotifyPlaylist struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Public      bool         `json:"public"`
	Owner       spotifyOwner `json:"owner"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type paging[T any] struct {
	Items []T     `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

type savedTrack struct {
	Track *spotifyTrack `json:"track"`
}

type savedAlbum struct {
	Album spotifyAlbum `json:"album"`
}

type playlistItem struct {
	Track *spotifyTrack `json:"track"`
}

type trackURI struct {
	URI string `json:"uri"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// SpotifyService implements [Library] and [OAuthService] for the Spotify Web API.
type SpotifyService struct {
	config      *oauth2.Config
	tokens      *refreshableTokenSource
	httpClient  *http.Client
	baseClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	credentials map[string]string

	onTokenRefresh func(*oauth2.Token)
}

// Option configures a [SpotifyService].
type Option func(*SpotifyService)

// WithBaseURL points the service at another API root.
func WithBaseURL(baseURL string) Option {
	return func(s *SpotifyService) {
		if baseURL != "" {
			s.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the client that carries authorized requests and token refreshes.
func WithHTTPClient(client *http.Client) Option {
	return func(s *SpotifyService) {
		if client != nil {
			s.baseClient = client
		}
	}
}

// WithEndpoint overrides the accounts service endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(s *SpotifyService) {
		s.config.Endpoint = endpoint
	}
}

// WithRateLimit spaces requests to at most rps per second. Non-positive values disable limiting.
func WithRateLimit(rps float64) Option {
	return func(s *SpotifyService) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...Option) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		baseClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// OAuthenticate installs token. Expired tokens are refreshed on first use when a refresh token is present.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}
	if !token.Valid() && token.RefreshToken == "" {
		return fmt.Errorf("%w: access token expired", shared.ErrNoRefreshToken)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
	s.tokens = &refreshableTokenSource{
		source:   oauth2.ReuseTokenSource(token, s.config.TokenSource(ctx, token)),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(ctx, s.tokens)
	s.httpClient.Timeout = s.baseClient.Timeout
	return nil
}

// Authenticate expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
		token, err := s.config.Exchange(exchangeCtx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// Token returns the current token, refreshing it first if it has expired.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.tokens.Token()
}

// resolve returns the request URL for a page: the cursor when set, otherwise the first page endpoint.
func (s *SpotifyService) resolve(cursor, endpoint string) (string, error) {
	if cursor == "" {
		return s.baseURL + endpoint, nil
	}
	if !strings.HasPrefix(cursor, s.baseURL+"/") {
		return "", fmt.Errorf("%w: cursor %q does not belong to %s", shared.ErrInvalidInput, cursor, s.baseURL)
	}
	return cursor, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, apiURL string, body, result any) error {
	if s.httpClient == nil {
		return fmt.Errorf("%w: call OAuthenticate first", shared.ErrNotAuthenticated)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%w: failed to encode request: %w", shared.ErrAPIRequest, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", shared.ErrAPIRequest, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.retryAfter, apiErr.hasHint = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return apiErr
}

// parseRetryAfter accepts delay-seconds or an HTTP date. ok is false for a missing or unusable value;
// "0" and dates in the past mean retry immediately.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0), true
	}

	return 0, false
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*User, error) {
	var user spotifyUser
	if err := s.doRequest(ctx, http.MethodGet, s.baseURL+"/me", nil, &user); err != nil {
		return nil, err
	}
	return &User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// Playlists retrieves one page of the current user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context, cursor string) (*Page[Playlist], error) {
	apiURL, err := s.resolve(cursor, fmt.Sprintf("/me/playlists?limit=%d", pageLimit))
	if err != nil {
		return nil, err
	}

	var response paging[*spotifyPlaylist]
	if err := s.doRequest(ctx, http.MethodGet, apiURL, nil, &response); err != nil {
		return nil, err
	}

	page := newPage[Playlist](response)
	for _, sp := range response.Items {
		if sp == nil {
			continue
		}
		page.Items = append(page.Items, toPlaylist(sp))
	}
	return page, nil
}

// CreatePlaylist creates a playlist for userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID string, spec PlaylistSpec) (*Playlist, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	body := map[string]any{
		"name":        spec.Name,
		"description": spec.Description,
		"public":      spec.Public,
	}

	var sp spotifyPlaylist
	apiURL := fmt.Sprintf("%s/users/%s/playlists", s.baseURL, url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, apiURL, body, &sp); err != nil {
		return nil, err
	}

	playlist := toPlaylist(&sp)
	return &playlist, nil
}

// SavedTracks retrieves one page of the user's liked tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, cursor string) (*Page[Track], error) {
	apiURL, err := s.resolve(cursor, fmt.Sprintf("/me/tracks?limit=%d", pageLimit))
	if err != nil {
		return nil, err
	}

	var response paging[savedTrack]
	if err := s.doRequest(ctx, http.MethodGet, apiURL, nil, &response); err != nil {
		return nil, err
	}

	page := newPage[Track](response)
	for _, item := range response.Items {
		if track, ok := toTrack(item.Track); ok {
			page.Items = append(page.Items, track)
		}
	}
	return page, nil
}

// SavedAlbums retrieves one page of the user's liked albums.
func (s *SpotifyService) SavedAlbums(ctx context.Context, cursor string) (*Page[Album], error) {
	apiURL, err := s.resolve(cursor, fmt.Sprintf("/me/albums?limit=%d", pageLimit))
	if err != nil {
		return nil, err
	}

	var response paging[savedAlbum]
	if err := s.doRequest(ctx, http.MethodGet, apiURL, nil, &response); err != nil {
		return nil, err
	}

	page := newPage[Album](response)
	for _, item := range response.Items {
		if item.Album.ID == "" {
			continue
		}
		page.Items = append(page.Items, Album{
			ID:          item.Album.ID,
			Name:        item.Album.Name,
			TotalTracks: item.Album.TotalTracks,
		})
	}
	return page, nil
}

// AlbumTracks retrieves one page of an album's tracks.
func (s *SpotifyService) AlbumTracks(ctx context.Context, albumID, cursor string) (*Page[Track], error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album ID is required", shared.ErrMissingArgument)
	}

	apiURL, err := s.resolve(cursor, fmt.Sprintf("/albums/%s/tracks?limit=%d", url.PathEscape(albumID), pageLimit))
	if err != nil {
		return nil, err
	}

	var response paging[*spotifyTrack]
	if err := s.doRequest(ctx, http.MethodGet, apiURL, nil, &response); err != nil {
		return nil, err
	}

	page := newPage[Track](response)
	for _, item := range response.Items {
		if track, ok := toTrack(item); ok {
			page.Items = append(page.Items, track)
		}
	}
	return page, nil
}

// PlaylistTracks retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID, cursor string) (*Page[Track], error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&fields=%s", url.PathEscape(playlistID), playlistPageLimit,
		url.QueryEscape("items(track(id,name,type,is_local,artists(name))),next,total"))
	apiURL, err := s.resolve(cursor, endpoint)
	if err != nil {
		return nil, err
	}

	var response paging[playlistItem]
	if err := s.doRequest(ctx, http.MethodGet, apiURL, nil, &response); err != nil {
		return nil, err
	}

	page := newPage[Track](response)
	for _, item := range response.Items {
		if track, ok := toTrack(item.Track); ok {
			page.Items = append(page.Items, track)
		}
	}
	return page, nil
}

// RemoveTracks removes all occurrences of ids from the playlist.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, ids []models.TrackID) error {
	if err := checkBatch(playlistID, ids); err != nil {
		return err
	}

	tracks := make([]trackURI, len(ids))
	for i, id := range ids {
		tracks[i] = trackURI{URI: id.URI()}
	}

	apiURL := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlistID))
	var response snapshotResponse
	return s.doRequest(ctx, http.MethodDelete, apiURL, map[string]any{"tracks": tracks}, &response)
}

// AddTracks appends ids to the end of the playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, ids []models.TrackID) error {
	if err := checkBatch(playlistID, ids); err != nil {
		return err
	}

	uris := make([]string, len(ids))
	for i, id := range ids {
		uris[i] = id.URI()
	}

	apiURL := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlistID))
	var response snapshotResponse
	return s.doRequest(ctx, http.MethodPost, apiURL, map[string]any{"uris": uris}, &response)
}

func checkBatch(playlistID string, ids []models.TrackID) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no track IDs provided", shared.ErrInvalidInput)
	}
	if len(ids) > MaxBatchSize {
		return fmt.Errorf("%w: maximum %d, got %d", shared.ErrBatchTooLarge, MaxBatchSize, len(ids))
	}
	return nil
}

func newPage[T, R any](response paging[R]) *Page[T] {
	page := &Page[T]{Total: response.Total}
	if response.Next != nil {
		page.Next = *response.Next
	}
	return page
}

func toPlaylist(sp *spotifyPlaylist) Playlist {
	return Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
		OwnerID:     sp.Owner.ID,
	}
}

// toTrack skips null entries, local files and episodes, none of which have a usable track ID.
func toTrack(st *spotifyTrack) (Track, bool) {
	if st == nil || st.ID == nil || *st.ID == "" || st.IsLocal {
		return Track{}, false
	}
	if st.Type != "" && st.Type != "track" {
		return Track{}, false
	}

	track := Track{ID: models.TrackID(*st.ID), Name: st.Name}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	return track, true
}

var _ Library = (*SpotifyService)(nil)
var _ OAuthService = (*SpotifyService)(nil)
