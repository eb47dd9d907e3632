package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/repositories"
	"github.com/desertthunder/likesync/internal/retry"
	"github.com/desertthunder/likesync/internal/services"
	"github.com/desertthunder/likesync/internal/shared"
	"github.com/desertthunder/likesync/internal/tasks"
	"github.com/desertthunder/likesync/internal/ui"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

// Sync reconciles the library playlist with liked tracks and liked albums.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	library, err := r.connectLibrary(ctx, cmd)
	if err != nil {
		return err
	}

	opts := tasks.OptionsFromConfig(config.Sync)
	if cmd.IsSet("name") {
		opts.PlaylistName = cmd.String("name")
	}
	opts.DryRun = cmd.Bool("dry-run")

	var progress chan tasks.ProgressUpdate
	retrier := retry.New(retry.PolicyFromConfig(config.Retry), r.logger, retry.WithNotify(func(w retry.Wait) {
		select {
		case progress <- tasks.WaitUpdate(w):
		default:
		}
	}))
	engine := tasks.NewEngine(library, retrier, r.logger, opts)
	runOnce := func() (*tasks.SyncResult, error) {
		progress = make(chan tasks.ProgressUpdate, 32)
		return r.runEngine(ctx, engine, progress)
	}

	run := models.NewSyncRun(engine.Options().PlaylistName, opts.DryRun)
	history, closeHistory := r.openHistory()
	defer closeHistory()
	r.recordStart(history, run)

	if opts.DryRun {
		r.writePlain("%s\n", ui.Styles().Warn("Dry run: the playlist will not be modified"))
	}

	result, err := runOnce()
	if spotifyService, ok := library.(*services.SpotifyService); ok && r.library == nil && isAuthFailure(err) {
		r.logger.Warn("stored token was rejected, reauthorizing", "error", err)
		if authErr := r.authorize(ctx, spotifyService); authErr != nil {
			err = fmt.Errorf("%w (reauthorization failed: %w)", err, authErr)
		} else {
			result, err = runOnce()
		}
	}
	r.recordResult(history, run, result, err)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	return r.printSummary(result)
}

// connectLibrary returns the injected library or an authenticated Spotify client.
func (r *Runner) connectLibrary(ctx context.Context, cmd *cli.Command) (services.Library, error) {
	if r.library != nil {
		return r.library, nil
	}

	spotifyService, err := r.newSpotifyService(cmd)
	if err != nil {
		return nil, err
	}
	if err := r.connect(ctx, spotifyService); err != nil {
		return nil, err
	}
	return spotifyService, nil
}

// runEngine runs the pipeline, printing progress lines as they arrive. progress is closed on return.
func (r *Runner) runEngine(ctx context.Context, engine *tasks.Engine, progress chan tasks.ProgressUpdate) (*tasks.SyncResult, error) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", ui.ProgressLine(update))
		}
	}()

	result, err := engine.Run(ctx, progress)
	close(progress)
	<-done
	return result, err
}

// openHistory opens the run history. Failures are logged and yield a nil repository.
func (r *Runner) openHistory() (*repositories.SyncRunRepository, func()) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return nil, func() {}
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
	}
	return repositories.NewSyncRunRepository(db), closeDB
}

func (r *Runner) recordStart(history *repositories.SyncRunRepository, run *models.SyncRun) {
	if history == nil {
		return
	}
	if err := history.Create(run); err != nil {
		r.logger.Warn("failed to record sync run", "error", err)
	}
}

func (r *Runner) recordResult(history *repositories.SyncRunRepository, run *models.SyncRun, result *tasks.SyncResult, err error) {
	if history == nil || run.ID() == "" {
		return
	}

	if result != nil {
		run.PlaylistID = result.PlaylistID
		run.PlaylistCreated = result.PlaylistCreated
		run.LikedCount = result.LibraryTracks
		run.ExistingCount = result.ExistingTracks
		run.TracksAdded = result.Added
		run.TracksRemoved = result.Removed
		run.TracksDropped = result.Diff.Dropped
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Warn("sync interrupted")
	}
	run.Complete(err)

	if updateErr := history.Update(run); updateErr != nil {
		r.logger.Warn("failed to record sync result", "error", updateErr)
	}
}

func (r *Runner) printSummary(result *tasks.SyncResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.SetTitle(color.New(color.Bold).Sprint(result.PlaylistName))
	t.AppendHeader(table.Row{"", "Tracks"})

	t.AppendRows([]table.Row{
		{"Liked songs", result.LikedTracks},
		{fmt.Sprintf("Liked albums (%d)", result.Albums), result.AlbumTracks},
		{"Library (union)", result.LibraryTracks},
		{"Already in playlist", result.ExistingTracks},
	})
	t.AppendSeparator()

	if result.DryRun {
		t.AppendRows([]table.Row{
			{"Would add", color.GreenString("%d", len(result.Diff.Add))},
			{"Would remove", color.RedString("%d", len(result.Diff.Remove))},
		})
	} else {
		t.AppendRows([]table.Row{
			{"Added", color.GreenString("%d", result.Added)},
			{"Removed", color.RedString("%d", result.Removed)},
		})
	}
	if result.Diff.Dropped > 0 {
		t.AppendRow(table.Row{"Over limit", color.YellowString("%d", result.Diff.Dropped)})
	}
	if waits := result.Retries.RateLimitWaits + result.Retries.Retries; waits > 0 {
		t.AppendFooter(table.Row{"Retries", fmt.Sprintf("%d (%s waited)", waits, result.Retries.Waited)})
	}

	t.SetStyle(table.StyleRounded)

	r.writePlain("\n")
	t.Render()

	if result.PlaylistID != "" {
		r.writePlain("%s\n", color.HiBlackString("https://open.spotify.com/playlist/%s", result.PlaylistID))
	}
	return nil
}
