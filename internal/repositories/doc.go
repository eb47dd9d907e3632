// Package repositories implements SQLite persistence for sync run history.
//
// [SyncRunRepository] records one row per execution of the sync pipeline with its counts and outcome.
// Track sets are never persisted; they are rebuilt from the remote library on every run.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
