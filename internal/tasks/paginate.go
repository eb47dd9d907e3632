package tasks

import (
	"context"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/retry"
	"github.com/desertthunder/likesync/internal/services"
)

// PageFunc fetches the page addressed by cursor. The empty cursor addresses the first page.
type PageFunc[T any] func(ctx context.Context, cursor string) (*services.Page[T], error)

// Walk fetches every page of a collection, calling visit once per page in order.
// Each fetch goes through r. Walking stops at the first page without a next cursor.
func Walk[T any](ctx context.Context, r *retry.Retrier, fetch PageFunc[T], visit func(*services.Page[T]) error) error {
	cursor := ""
	for {
		page, err := retry.Do(ctx, r, func(ctx context.Context) (*services.Page[T], error) {
			return fetch(ctx, cursor)
		})
		if err != nil {
			return err
		}

		if err := visit(page); err != nil {
			return err
		}

		if page.Next == "" || page.Next == cursor {
			return nil
		}
		cursor = page.Next
	}
}

// Paginate walks a collection and adds key(item) of every item to dst. Empty keys are skipped.
func Paginate[T any](ctx context.Context, r *retry.Retrier, fetch PageFunc[T], key func(T) models.TrackID, dst models.TrackSet) error {
	return Walk(ctx, r, fetch, func(page *services.Page[T]) error {
		for _, item := range page.Items {
			dst.Add(key(item))
		}
		return nil
	})
}

func trackKey(t services.Track) models.TrackID { return t.ID }
