// Package tasks keeps a single playlist equal to the user's liked tracks plus the tracks of their liked albums.
//
// # Pipeline
//
// [Engine.Run] performs one sequential pass:
//
//  1. [Engine.ResolvePlaylist] : find the target playlist by exact name on the first page of the
//     user's playlists, creating it when missing
//  2. [Engine.LikedTracks] : collect every liked track
//  3. [Engine.AlbumTracks] : collect every track of every liked album
//  4. [Engine.PlaylistTracks] : collect the playlist's current tracks
//  5. [ComputeDiff] : tracks to add (capped at [MaxPlaylistTracks]) and tracks to remove
//  6. [Engine.Apply] : removals first, then additions, in [Batches] of at most 100
//
// Every remote call goes through a [retry.Retrier]. Collections are walked with [Walk] and [Paginate],
// which follow the opaque next cursor until the last page.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
