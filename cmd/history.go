package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/repositories"
	"github.com/desertthunder/likesync/internal/shared"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

// runSummary is the JSON form of a recorded run.
type runSummary struct {
	ID              string     `json:"id"`
	PlaylistID      string     `json:"playlist_id,omitempty"`
	PlaylistName    string     `json:"playlist_name"`
	Status          string     `json:"status"`
	DryRun          bool       `json:"dry_run"`
	PlaylistCreated bool       `json:"playlist_created"`
	LibraryTracks   int        `json:"library_tracks"`
	ExistingTracks  int        `json:"existing_tracks"`
	Added           int        `json:"added"`
	Removed         int        `json:"removed"`
	Dropped         int        `json:"dropped"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func newRunSummary(run *models.SyncRun) runSummary {
	return runSummary{
		ID:              run.ID(),
		PlaylistID:      run.PlaylistID,
		PlaylistName:    run.PlaylistName,
		Status:          string(run.Status),
		DryRun:          run.DryRun,
		PlaylistCreated: run.PlaylistCreated,
		LibraryTracks:   run.LikedCount,
		ExistingTracks:  run.ExistingCount,
		Added:           run.TracksAdded,
		Removed:         run.TracksRemoved,
		Dropped:         run.TracksDropped,
		Error:           run.ErrorMessage,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
	}
}

// History prints the most recent sync runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	runs, err := repositories.NewSyncRunRepository(db).List(cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		summaries := make([]runSummary, 0, len(runs))
		for _, run := range runs {
			summaries = append(summaries, newRunSummary(run))
		}
		return r.writeJSON(summaries, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No sync runs recorded yet\n")
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.AppendHeader(table.Row{"Started", "Playlist", "Status", "Library", "Added", "Removed", "Duration"})

	for _, run := range runs {
		name := color.New(color.Bold).Sprint(run.PlaylistName)
		if run.DryRun {
			name += color.HiBlackString(" (dry run)")
		}
		t.AppendRow(table.Row{
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			name,
			statusText(run),
			run.LikedCount,
			run.TracksAdded,
			run.TracksRemoved,
			run.Duration().Round(time.Millisecond),
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func statusText(run *models.SyncRun) string {
	switch run.Status {
	case models.RunStatusCompleted:
		return color.GreenString(string(run.Status))
	case models.RunStatusFailed:
		return color.RedString(string(run.Status))
	default:
		return color.YellowString(string(run.Status))
	}
}
