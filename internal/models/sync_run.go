package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SyncRun records one execution of the sync pipeline.
type SyncRun struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time

	PlaylistID      string
	PlaylistName    string
	Status          RunStatus
	DryRun          bool
	PlaylistCreated bool
	LikedCount      int
	ExistingCount   int
	TracksAdded     int
	TracksRemoved   int
	TracksDropped   int
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// NewSyncRun creates a running [SyncRun] for the named playlist.
func NewSyncRun(playlistName string, dryRun bool) *SyncRun {
	now := time.Now().UTC()
	return &SyncRun{
		createdAt:    now,
		updatedAt:    now,
		PlaylistName: playlistName,
		Status:       RunStatusRunning,
		DryRun:       dryRun,
		StartedAt:    now,
	}
}

func (r *SyncRun) ID() string           { return r.id }
func (r *SyncRun) Sequence() int        { return r.sequence }
func (r *SyncRun) CreatedAt() time.Time { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time { return r.updatedAt }

func (r *SyncRun) SetID(id string)          { r.id = id }
func (r *SyncRun) SetSequence(sequence int) { r.sequence = sequence }
func (r *SyncRun) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *SyncRun) SetUpdatedAt(t time.Time) { r.updatedAt = t }

// Complete marks the run as finished. A non-nil err marks it failed.
func (r *SyncRun) Complete(err error) {
	now := time.Now().UTC()
	r.CompletedAt = &now
	if err != nil {
		r.Status = RunStatusFailed
		r.ErrorMessage = err.Error()
		return
	}
	r.Status = RunStatusCompleted
}

// Duration returns the elapsed time of a completed run, or zero.
func (r *SyncRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *SyncRun) Validate() error {
	if r.PlaylistName == "" {
		return fmt.Errorf("playlist name is required")
	}
	switch r.Status {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
	default:
		return fmt.Errorf("invalid status: %q", r.Status)
	}
	if r.LikedCount < 0 || r.ExistingCount < 0 || r.TracksAdded < 0 || r.TracksRemoved < 0 || r.TracksDropped < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	return nil
}
