package testing

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/services"
)

// Method names accepted by [FakeLibrary.Fail] and reported by [FakeLibrary.CallCount].
const (
	MethodCurrentUser    = "CurrentUser"
	MethodPlaylists      = "Playlists"
	MethodCreatePlaylist = "CreatePlaylist"
	MethodSavedTracks    = "SavedTracks"
	MethodSavedAlbums    = "SavedAlbums"
	MethodAlbumTracks    = "AlbumTracks"
	MethodPlaylistTracks = "PlaylistTracks"
	MethodRemoveTracks   = "RemoveTracks"
	MethodAddTracks      = "AddTracks"
)

// FakeAlbum is a liked album with its track listing.
type FakeAlbum struct {
	ID     string
	Tracks []models.TrackID
}

// FakeLibrary is an in-memory [services.Library].
//
// Pages hold PageSize items and cursors are "offset:N". Playlist contents are mutated by
// AddTracks and RemoveTracks so the end state of a sync can be inspected.
type FakeLibrary struct {
	mu sync.Mutex

	PageSize  int
	User      services.User
	Liked     []models.TrackID
	Albums    []FakeAlbum
	playlists []services.Playlist
	contents  map[string][]models.TrackID

	errors  map[string][]error
	calls   map[string]int
	Added   [][]models.TrackID
	Removed [][]models.TrackID
	created int
}

// NewFakeLibrary creates a library for user "user1" whose liked tracks are liked.
func NewFakeLibrary(liked ...models.TrackID) *FakeLibrary {
	return &FakeLibrary{
		PageSize: 50,
		User:     services.User{ID: "user1", DisplayName: "Test User"},
		Liked:    liked,
		contents: make(map[string][]models.TrackID),
		errors:   make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// AddPlaylist registers a playlist owned by the user with the given contents.
func (f *FakeLibrary) AddPlaylist(id, name string, tracks ...models.TrackID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.playlists = append(f.playlists, services.Playlist{ID: id, Name: name, OwnerID: f.User.ID, TrackCount: len(tracks)})
	f.contents[id] = slices.Clone(tracks)
}

// Contents returns the current tracks of a playlist in order, duplicates included.
func (f *FakeLibrary) Contents(id string) []models.TrackID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.contents[id])
}

// PlaylistNamed returns the first playlist with the exact name.
func (f *FakeLibrary) PlaylistNamed(name string) (services.Playlist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.playlists {
		if p.Name == name {
			return p, true
		}
	}
	return services.Playlist{}, false
}

// Fail queues errs to be returned, in order, by the next calls to method.
func (f *FakeLibrary) Fail(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = append(f.errors[method], errs...)
}

// CallCount returns how many times method was invoked, failed calls included.
func (f *FakeLibrary) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// enter records a call and pops a queued error. Callers must hold mu.
func (f *FakeLibrary) enter(method string) error {
	f.calls[method]++
	queue := f.errors[method]
	if len(queue) == 0 {
		return nil
	}
	f.errors[method] = queue[1:]
	return queue[0]
}

func paginate[T any](items []T, cursor string, size int) (*services.Page[T], error) {
	if size <= 0 {
		size = 50
	}

	offset := 0
	if cursor != "" {
		raw, ok := strings.CutPrefix(cursor, "offset:")
		if !ok {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		offset = n
	}

	end := min(offset+size, len(items))
	page := &services.Page[T]{Total: len(items)}
	if offset < end {
		page.Items = slices.Clone(items[offset:end])
	}
	if end < len(items) {
		page.Next = "offset:" + strconv.Itoa(end)
	}
	return page, nil
}

func toTracks(ids []models.TrackID) []services.Track {
	tracks := make([]services.Track, len(ids))
	for i, id := range ids {
		tracks[i] = services.Track{ID: id}
	}
	return tracks
}

func (f *FakeLibrary) CurrentUser(ctx context.Context) (*services.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodCurrentUser); err != nil {
		return nil, err
	}
	user := f.User
	return &user, nil
}

func (f *FakeLibrary) Playlists(ctx context.Context, cursor string) (*services.Page[services.Playlist], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodPlaylists); err != nil {
		return nil, err
	}
	return paginate(f.playlists, cursor, f.PageSize)
}

func (f *FakeLibrary) CreatePlaylist(ctx context.Context, userID string, spec services.PlaylistSpec) (*services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodCreatePlaylist); err != nil {
		return nil, err
	}

	f.created++
	playlist := services.Playlist{
		ID:          fmt.Sprintf("created%d", f.created),
		Name:        spec.Name,
		Description: spec.Description,
		Public:      spec.Public,
		OwnerID:     userID,
	}
	f.playlists = append(f.playlists, playlist)
	f.contents[playlist.ID] = nil
	return &playlist, nil
}

func (f *FakeLibrary) SavedTracks(ctx context.Context, cursor string) (*services.Page[services.Track], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodSavedTracks); err != nil {
		return nil, err
	}
	return paginate(toTracks(f.Liked), cursor, f.PageSize)
}

func (f *FakeLibrary) SavedAlbums(ctx context.Context, cursor string) (*services.Page[services.Album], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodSavedAlbums); err != nil {
		return nil, err
	}

	albums := make([]services.Album, len(f.Albums))
	for i, a := range f.Albums {
		albums[i] = services.Album{ID: a.ID, Name: a.ID, TotalTracks: len(a.Tracks)}
	}
	return paginate(albums, cursor, f.PageSize)
}

func (f *FakeLibrary) AlbumTracks(ctx context.Context, albumID, cursor string) (*services.Page[services.Track], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodAlbumTracks); err != nil {
		return nil, err
	}

	for _, a := range f.Albums {
		if a.ID == albumID {
			return paginate(toTracks(a.Tracks), cursor, f.PageSize)
		}
	}
	return nil, fmt.Errorf("album %s not found", albumID)
}

func (f *FakeLibrary) PlaylistTracks(ctx context.Context, playlistID, cursor string) (*services.Page[services.Track], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodPlaylistTracks); err != nil {
		return nil, err
	}

	tracks, ok := f.contents[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s not found", playlistID)
	}
	return paginate(toTracks(tracks), cursor, f.PageSize)
}

func (f *FakeLibrary) RemoveTracks(ctx context.Context, playlistID string, ids []models.TrackID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodRemoveTracks); err != nil {
		return err
	}
	if len(ids) == 0 || len(ids) > services.MaxBatchSize {
		return fmt.Errorf("invalid batch size %d", len(ids))
	}

	tracks, ok := f.contents[playlistID]
	if !ok {
		return fmt.Errorf("playlist %s not found", playlistID)
	}

	drop := models.NewTrackSet(ids...)
	f.contents[playlistID] = slices.DeleteFunc(tracks, drop.Has)
	f.Removed = append(f.Removed, slices.Clone(ids))
	return nil
}

func (f *FakeLibrary) AddTracks(ctx context.Context, playlistID string, ids []models.TrackID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(MethodAddTracks); err != nil {
		return err
	}
	if len(ids) == 0 || len(ids) > services.MaxBatchSize {
		return fmt.Errorf("invalid batch size %d", len(ids))
	}

	if _, ok := f.contents[playlistID]; !ok {
		return fmt.Errorf("playlist %s not found", playlistID)
	}

	f.contents[playlistID] = append(f.contents[playlistID], ids...)
	f.Added = append(f.Added, slices.Clone(ids))
	return nil
}

var _ services.Library = (*FakeLibrary)(nil)
