// Package models defines the domain types for the library playlist sync.
//
// The package contains two categories of types:
//
// 1. Value types rebuilt on every run
//   - [TrackID] : opaque Spotify track identifier
//   - [TrackSet] : unordered set of track identifiers
//   - [Diff] : tracks to add and remove to reconcile the playlist
//
// 2. Persistent entities
//   - [SyncRun] : one execution of the sync pipeline, with counts and outcome
//
// Persistent entities implement the [Model] interface providing ID, timestamps, and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
