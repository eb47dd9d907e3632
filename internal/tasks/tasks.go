// package tasks implements the library playlist sync pipeline.
//
// The core abstraction is Engine, which resolves the target playlist, collects the library, computes
// the difference and applies it. Operations emit progress updates via channels for non-blocking status
// reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/retry"
	"github.com/desertthunder/likesync/internal/services"
	"github.com/desertthunder/likesync/internal/shared"
)

const (
	DefaultPlaylistName = "My Library"
	DefaultDescription  = "A playlist containing all my liked albums and tracks"
	// MaxPlaylistTracks is the largest number of tracks added in one run.
	MaxPlaylistTracks = 10000
)

// Options configures a sync run.
type Options struct {
	PlaylistName string
	Description  string
	Public       bool
	MaxTracks    int
	BatchSize    int
	DryRun       bool
}

// DefaultOptions returns the options of a standard "My Library" sync.
func DefaultOptions() Options {
	return Options{
		PlaylistName: DefaultPlaylistName,
		Description:  DefaultDescription,
		Public:       true,
		MaxTracks:    MaxPlaylistTracks,
		BatchSize:    services.MaxBatchSize,
	}
}

// OptionsFromConfig builds [Options] from the [sync] config section, keeping defaults for empty values.
func OptionsFromConfig(cfg shared.SyncConfig) Options {
	opts := DefaultOptions()
	if cfg.PlaylistName != "" {
		opts.PlaylistName = cfg.PlaylistName
	}
	if cfg.Description != "" {
		opts.Description = cfg.Description
	}
	if cfg.MaxTracks > 0 {
		opts.MaxTracks = cfg.MaxTracks
	}
	if cfg.BatchSize > 0 {
		opts.BatchSize = cfg.BatchSize
	}
	opts.Public = cfg.Public
	return opts
}

func (o Options) normalize() Options {
	if o.PlaylistName == "" {
		o.PlaylistName = DefaultPlaylistName
	}
	if o.Description == "" {
		o.Description = DefaultDescription
	}
	if o.MaxTracks <= 0 || o.MaxTracks > MaxPlaylistTracks {
		o.MaxTracks = MaxPlaylistTracks
	}
	if o.BatchSize <= 0 || o.BatchSize > services.MaxBatchSize {
		o.BatchSize = services.MaxBatchSize
	}
	return o
}

// SyncResult contains the counts of a sync run.
type SyncResult struct {
	PlaylistID      string      // Target playlist, empty on a dry run that would create it
	PlaylistName    string      // Target playlist name
	PlaylistCreated bool        // Whether the playlist was created by this run
	LikedTracks     int         // Distinct liked tracks
	Albums          int         // Liked albums visited
	AlbumTracks     int         // Distinct tracks across liked albums
	LibraryTracks   int         // Distinct tracks in the union
	ExistingTracks  int         // Distinct tracks in the playlist before applying
	Diff            models.Diff // Planned additions and removals
	Added           int         // Tracks added
	Removed         int         // Tracks removed
	DryRun          bool        // Whether changes were skipped
	Retries         retry.Stats // Waits performed by the retrier
}

// Engine runs the sync pipeline against a [services.Library].
type Engine struct {
	library services.Library
	retrier *retry.Retrier
	logger  *log.Logger
	opts    Options
}

// NewEngine creates a new Engine. A nil retrier uses the default policy and a nil logger discards output.
func NewEngine(library services.Library, retrier *retry.Retrier, logger *log.Logger, opts Options) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if retrier == nil {
		retrier = retry.New(retry.DefaultPolicy(), logger)
	}
	return &Engine{
		library: library,
		retrier: retrier,
		logger:  logger,
		opts:    opts.normalize(),
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	e.logger.Debug(update.Message, "phase", update.Phase)
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// sendBatchProgress delivers a batch update, waiting for the receiver unless ctx is done.
func (e *Engine) sendBatchProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	e.logger.Debug(update.Message, "phase", update.Phase)
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
	}
}

// Run resolves the playlist, collects liked tracks and album tracks, and reconciles the playlist with their union.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrServiceUnavailable)
	}

	result := &SyncResult{PlaylistName: e.opts.PlaylistName, DryRun: e.opts.DryRun}
	defer func() { result.Retries = e.retrier.Stats() }()

	playlistID, created, err := e.ResolvePlaylist(ctx, progress)
	if err != nil {
		return result, err
	}
	result.PlaylistID = playlistID
	result.PlaylistCreated = created

	liked, err := e.LikedTracks(ctx, progress)
	if err != nil {
		return result, err
	}
	result.LikedTracks = liked.Len()

	albumTracks, albums, err := e.AlbumTracks(ctx, progress)
	if err != nil {
		return result, err
	}
	result.Albums = albums
	result.AlbumTracks = albumTracks.Len()

	library := liked.Union(albumTracks)
	result.LibraryTracks = library.Len()

	current := models.NewTrackSet()
	if playlistID != "" {
		if current, err = e.PlaylistTracks(ctx, playlistID, progress); err != nil {
			return result, err
		}
	}
	result.ExistingTracks = current.Len()

	diff := ComputeDiff(library, current, e.opts.MaxTracks)
	result.Diff = diff
	if diff.Dropped > 0 {
		e.logger.Warn("too many tracks to add", "limit", e.opts.MaxTracks, "dropped", diff.Dropped)
		e.sendProgress(progress, limitUpdate(e.opts.MaxTracks, diff.Dropped))
	}
	e.sendProgress(progress, compareUpdate(diffSummary{add: len(diff.Add), remove: len(diff.Remove), dropped: diff.Dropped}))

	if e.opts.DryRun {
		e.sendProgress(progress, completeUpdate(result))
		return result, nil
	}

	added, removed, err := e.Apply(ctx, playlistID, diff, progress)
	result.Added = added
	result.Removed = removed
	if err != nil {
		return result, err
	}

	e.sendProgress(progress, completeUpdate(result))
	return result, nil
}

// ResolvePlaylist returns the ID of the target playlist, creating it when missing.
//
// Only the first page of the user's playlists is searched and names must match exactly.
// On a dry run a missing playlist is reported and the empty ID is returned.
func (e *Engine) ResolvePlaylist(ctx context.Context, progress chan<- ProgressUpdate) (string, bool, error) {
	name := e.opts.PlaylistName
	e.sendProgress(progress, resolvingPlaylistUpdate(name))

	page, err := retry.Do(ctx, e.retrier, func(ctx context.Context) (*services.Page[services.Playlist], error) {
		return e.library.Playlists(ctx, "")
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to list playlists: %w", err)
	}

	for _, p := range page.Items {
		if p.Name == name {
			e.sendProgress(progress, foundPlaylistUpdate(name, p.ID))
			return p.ID, false, nil
		}
	}

	if page.Next != "" {
		e.logger.Warn("playlist not in the first page of playlists, later pages are not searched", "name", name, "total", page.Total)
	}

	if e.opts.DryRun {
		e.sendProgress(progress, missingPlaylistUpdate(name))
		return "", false, nil
	}

	e.sendProgress(progress, creatingPlaylistUpdate(name))

	user, err := retry.Do(ctx, e.retrier, func(ctx context.Context) (*services.User, error) {
		return e.library.CurrentUser(ctx)
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get current user: %w", err)
	}

	spec := services.PlaylistSpec{Name: name, Description: e.opts.Description, Public: e.opts.Public}
	created, err := retry.DoRateLimited(ctx, e.retrier, func(ctx context.Context) (*services.Playlist, error) {
		return e.library.CreatePlaylist(ctx, user.ID, spec)
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	e.logger.Info("created playlist", "name", name, "id", created.ID)
	e.sendProgress(progress, createdPlaylistUpdate(name, created.ID))
	return created.ID, true, nil
}

// LikedTracks returns the IDs of every liked track.
func (e *Engine) LikedTracks(ctx context.Context, progress chan<- ProgressUpdate) (models.TrackSet, error) {
	e.sendProgress(progress, fetchingLikedUpdate())

	liked := models.NewTrackSet()
	err := Walk(ctx, e.retrier, e.library.SavedTracks, func(page *services.Page[services.Track]) error {
		for _, t := range page.Items {
			liked.Add(t.ID)
		}
		e.sendProgress(progress, fetchedLikedUpdate(liked.Len(), page.Total))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch liked tracks: %w", err)
	}
	return liked, nil
}

// AlbumTracks returns the IDs of every track on every liked album, and the number of albums.
func (e *Engine) AlbumTracks(ctx context.Context, progress chan<- ProgressUpdate) (models.TrackSet, int, error) {
	e.sendProgress(progress, fetchingAlbumsUpdate())

	tracks := models.NewTrackSet()
	albums := 0
	err := Walk(ctx, e.retrier, e.library.SavedAlbums, func(page *services.Page[services.Album]) error {
		for _, album := range page.Items {
			fetch := func(ctx context.Context, cursor string) (*services.Page[services.Track], error) {
				return e.library.AlbumTracks(ctx, album.ID, cursor)
			}
			if err := Paginate(ctx, e.retrier, fetch, trackKey, tracks); err != nil {
				return fmt.Errorf("album %s: %w", album.ID, err)
			}
			albums++
			e.sendProgress(progress, fetchedAlbumUpdate(albums, tracks.Len()))
		}
		return nil
	})
	if err != nil {
		return nil, albums, fmt.Errorf("failed to fetch album tracks: %w", err)
	}
	return tracks, albums, nil
}

// PlaylistTracks returns the distinct IDs currently in the playlist.
func (e *Engine) PlaylistTracks(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) (models.TrackSet, error) {
	e.sendProgress(progress, fetchingPlaylistUpdate(e.opts.PlaylistName))

	fetch := func(ctx context.Context, cursor string) (*services.Page[services.Track], error) {
		return e.library.PlaylistTracks(ctx, playlistID, cursor)
	}

	current := models.NewTrackSet()
	if err := Paginate(ctx, e.retrier, fetch, trackKey, current); err != nil {
		return nil, fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}
	return current, nil
}

// Apply removes diff.Remove and then adds diff.Add in batches, returning how many tracks were
// removed and added before any failure.
func (e *Engine) Apply(ctx context.Context, playlistID string, diff models.Diff, progress chan<- ProgressUpdate) (added, removed int, err error) {
	if playlistID == "" {
		return 0, 0, fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	name := e.opts.PlaylistName
	for _, batch := range Batches(diff.Remove, e.opts.BatchSize) {
		_, err := retry.Do(ctx, e.retrier, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.library.RemoveTracks(ctx, playlistID, batch)
		})
		if err != nil {
			return added, removed, fmt.Errorf("failed to remove tracks: %w", err)
		}
		removed += len(batch)
		e.sendBatchProgress(ctx, progress, removedUpdate(removed, len(diff.Remove), name))
	}

	for _, batch := range Batches(diff.Add, e.opts.BatchSize) {
		_, err := retry.Do(ctx, e.retrier, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.library.AddTracks(ctx, playlistID, batch)
		})
		if err != nil {
			return added, removed, fmt.Errorf("failed to add tracks: %w", err)
		}
		added += len(batch)
		e.sendBatchProgress(ctx, progress, addedUpdate(added, len(diff.Add), name))
	}

	e.logger.Info("playlist updated", "playlist", name, "added", added, "removed", removed)
	return added, removed, nil
}
