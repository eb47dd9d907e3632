package tasks

import (
	"fmt"

	"github.com/desertthunder/likesync/internal/retry"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, zero when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ResolvePlaylist Phase = iota
	CreatePlaylist
	FetchLiked
	FetchAlbums
	FetchPlaylist
	Compare
	RemoveTracks
	AddTracks
	Complete
	Retrying
)

func (p Phase) String() string {
	switch p {
	case ResolvePlaylist:
		return "resolve_playlist"
	case CreatePlaylist:
		return "create_playlist"
	case FetchLiked:
		return "fetch_liked"
	case FetchAlbums:
		return "fetch_albums"
	case FetchPlaylist:
		return "fetch_playlist"
	case Compare:
		return "compare"
	case RemoveTracks:
		return "remove_tracks"
	case AddTracks:
		return "add_tracks"
	case Complete:
		return "complete"
	case Retrying:
		return "retrying"
	default:
		return ""
	}
}

func resolvingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Message: fmt.Sprintf("Looking for playlist '%s'...", name),
	}
}

func foundPlaylistUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist '%s' (ID: %s)", name, id),
		Data:    id,
	}
}

func creatingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Message: fmt.Sprintf("Creating playlist '%s'...", name),
	}
}

func createdPlaylistUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Created playlist '%s' (ID: %s)", name, id),
		Data:    id,
	}
}

func missingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Message: fmt.Sprintf("Playlist '%s' not found; it would be created", name),
	}
}

func fetchingLikedUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchLiked, Message: "Fetching liked songs..."}
}

func fetchedLikedUpdate(count, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLiked,
		Step:    count,
		Total:   total,
		Message: fmt.Sprintf("Fetched %d liked songs so far...", count),
	}
}

func fetchingAlbumsUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchAlbums, Message: "Fetching tracks from liked albums..."}
}

func fetchedAlbumUpdate(albums, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAlbums,
		Step:    albums,
		Message: fmt.Sprintf("Fetched %d tracks from %d liked albums so far...", tracks, albums),
	}
}

func fetchingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Message: fmt.Sprintf("Fetching existing tracks in '%s'...", name),
	}
}

func compareUpdate(diff diffSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Message: fmt.Sprintf("%d tracks to add, %d tracks to remove", diff.add, diff.remove),
		Data:    diff,
	}
}

func limitUpdate(limit, dropped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Message: fmt.Sprintf("Limiting the number of tracks to add to %d due to the playlist size limit (%d skipped)", limit, dropped),
	}
}

func removedUpdate(done, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveTracks,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("Removed %d/%d tracks from '%s'", done, total, name),
	}
}

func addedUpdate(done, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("Added %d/%d tracks to '%s'", done, total, name),
	}
}

func completeUpdate(result *SyncResult) ProgressUpdate {
	msg := fmt.Sprintf("'%s' is up to date", result.PlaylistName)
	if result.DryRun {
		msg = fmt.Sprintf("Dry run complete for '%s'", result.PlaylistName)
	}
	return ProgressUpdate{Phase: Complete, Step: 1, Total: 1, Message: msg, Data: result}
}

// WaitUpdate reports a retry wait. Data holds w.
func WaitUpdate(w retry.Wait) ProgressUpdate {
	msg := fmt.Sprintf("Rate limited, retrying in %s", w.Delay)
	if w.Kind == retry.Transient {
		msg = fmt.Sprintf("Request failed (attempt %d), retrying in %s", w.Attempt, w.Delay)
	}
	return ProgressUpdate{Phase: Retrying, Step: w.Attempt, Message: msg, Data: w}
}

type diffSummary struct {
	add, remove, dropped int
}
