package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/retry"
	"github.com/desertthunder/likesync/internal/services"
	tu "github.com/desertthunder/likesync/internal/testing"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testRetrier() *retry.Retrier {
	return retry.New(retry.DefaultPolicy(), nil, retry.WithSleep(noSleep))
}

func TestWalk(t *testing.T) {
	t.Run("Visits Every Page", func(t *testing.T) {
		lib := tu.NewFakeLibrary(ids("t", 100)...)
		lib.PageSize = 40

		var sizes []int
		err := Walk(context.Background(), testRetrier(), lib.SavedTracks, func(p *services.Page[services.Track]) error {
			sizes = append(sizes, len(p.Items))
			return nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(sizes) != 3 || sizes[0] != 40 || sizes[1] != 40 || sizes[2] != 20 {
			t.Errorf("expected pages of 40/40/20, got %v", sizes)
		}
	})

	t.Run("Empty Collection", func(t *testing.T) {
		lib := tu.NewFakeLibrary()

		pages := 0
		err := Walk(context.Background(), testRetrier(), lib.SavedTracks, func(p *services.Page[services.Track]) error {
			pages++
			return nil
		})
		if err != nil || pages != 1 {
			t.Errorf("expected a single empty page, got %d pages (%v)", pages, err)
		}
	})

	t.Run("Retries A Failed Page", func(t *testing.T) {
		lib := tu.NewFakeLibrary(ids("t", 100)...)
		lib.PageSize = 40
		lib.Fail(tu.MethodSavedTracks, nil, &tu.RateLimitError{After: time.Second})

		set := models.NewTrackSet()
		if err := Paginate(context.Background(), testRetrier(), lib.SavedTracks, trackKey, set); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if set.Len() != 100 {
			t.Errorf("expected 100 tracks, got %d", set.Len())
		}
		if lib.CallCount(tu.MethodSavedTracks) != 4 {
			t.Errorf("expected 4 calls, got %d", lib.CallCount(tu.MethodSavedTracks))
		}
	})

	t.Run("Visit Error Stops Walk", func(t *testing.T) {
		lib := tu.NewFakeLibrary(ids("t", 100)...)
		lib.PageSize = 10
		boom := errors.New("boom")

		err := Walk(context.Background(), testRetrier(), lib.SavedTracks, func(p *services.Page[services.Track]) error {
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected visit error, got %v", err)
		}
		if lib.CallCount(tu.MethodSavedTracks) != 1 {
			t.Errorf("expected walk to stop after the first page, got %d calls", lib.CallCount(tu.MethodSavedTracks))
		}
	})
}

func TestPaginate(t *testing.T) {
	t.Run("Overlapping Pages Collapse", func(t *testing.T) {
		dup := append(ids("t", 30), ids("t", 30)...)
		lib := tu.NewFakeLibrary(dup...)
		lib.PageSize = 25

		set := models.NewTrackSet()
		if err := Paginate(context.Background(), testRetrier(), lib.SavedTracks, trackKey, set); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if set.Len() != 30 {
			t.Errorf("expected 30 distinct tracks, got %d", set.Len())
		}
	})

	t.Run("Exhausted Retries Abort", func(t *testing.T) {
		lib := tu.NewFakeLibrary(ids("t", 10)...)
		timeouts := make([]error, 5)
		for i := range timeouts {
			timeouts[i] = tu.TimeoutError{}
		}
		lib.Fail(tu.MethodSavedTracks, timeouts...)

		err := Paginate(context.Background(), testRetrier(), lib.SavedTracks, trackKey, models.NewTrackSet())
		if !errors.Is(err, retry.ErrMaxRetries) {
			t.Errorf("expected ErrMaxRetries, got %v", err)
		}
		if lib.CallCount(tu.MethodSavedTracks) != 5 {
			t.Errorf("expected 5 attempts, got %d", lib.CallCount(tu.MethodSavedTracks))
		}
	})
}
