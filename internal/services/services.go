// package services defines the remote library boundary and its Spotify implementation
package services

import (
	"context"

	"github.com/desertthunder/likesync/internal/models"
	"golang.org/x/oauth2"
)

// Library is the subset of the music service the sync pipeline needs.
//
// Paginated methods take an opaque cursor: the empty string requests the first page and
// [Page.Next] of the previous response requests the following one.
type Library interface {
	// CurrentUser returns the profile of the authenticated user.
	CurrentUser(ctx context.Context) (*User, error)

	// Playlists returns one page of the user's playlists.
	Playlists(ctx context.Context, cursor string) (*Page[Playlist], error)

	// CreatePlaylist creates a playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID string, spec PlaylistSpec) (*Playlist, error)

	// SavedTracks returns one page of the user's liked tracks.
	SavedTracks(ctx context.Context, cursor string) (*Page[Track], error)

	// SavedAlbums returns one page of the user's liked albums.
	SavedAlbums(ctx context.Context, cursor string) (*Page[Album], error)

	// AlbumTracks returns one page of an album's tracks.
	AlbumTracks(ctx context.Context, albumID, cursor string) (*Page[Track], error)

	// PlaylistTracks returns one page of a playlist's tracks.
	PlaylistTracks(ctx context.Context, playlistID, cursor string) (*Page[Track], error)

	// RemoveTracks removes every occurrence of at most [MaxBatchSize] tracks from a playlist.
	RemoveTracks(ctx context.Context, playlistID string, ids []models.TrackID) error

	// AddTracks appends at most [MaxBatchSize] tracks to a playlist.
	AddTracks(ctx context.Context, playlistID string, ids []models.TrackID) error
}

// OAuthService is implemented by providers that authenticate with the authorization code flow.
type OAuthService interface {
	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state string) string

	// GetOAuthConfig returns the client configuration used for the code exchange.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate installs token and returns an error if it cannot be used.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error

	// Token returns the current, possibly refreshed, token.
	Token() (*oauth2.Token, error)
}

// MaxBatchSize is the largest number of tracks a single playlist mutation accepts.
const MaxBatchSize = 100

// Page is one page of a paginated collection.
type Page[T any] struct {
	Items []T
	Next  string // cursor for the following page, empty on the last page
	Total int
}

// User is the authenticated account.
type User struct {
	ID          string
	DisplayName string
}

// Playlist represents a playlist from the user's library
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	Public      bool
	OwnerID     string
}

// PlaylistSpec holds the attributes of a playlist to create.
type PlaylistSpec struct {
	Name        string
	Description string
	Public      bool
}

// Album represents a liked album.
type Album struct {
	ID          string
	Name        string
	TotalTracks int
}

// Track represents a track entry. ID is empty for local files and podcast episodes.
type Track struct {
	ID     models.TrackID
	Name   string
	Artist string
}
