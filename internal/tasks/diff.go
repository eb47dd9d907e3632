package tasks

import (
	"github.com/desertthunder/likesync/internal/models"
)

// ComputeDiff returns the tracks to add to and remove from current so it equals liked.
//
// When more than limit tracks would be added, only the limit smallest identifiers are kept and
// the rest are counted in Dropped. A non-positive limit disables the cap.
func ComputeDiff(liked, current models.TrackSet, limit int) models.Diff {
	add := liked.Difference(current).Slice()
	remove := current.Difference(liked).Slice()

	diff := models.Diff{Add: add, Remove: remove}
	if limit > 0 && len(add) > limit {
		diff.Add = add[:limit]
		diff.Dropped = len(add) - limit
	}
	return diff
}

// Batches splits ids into consecutive chunks of at most size items.
func Batches(ids []models.TrackID, size int) [][]models.TrackID {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(ids)
	}

	batches := make([][]models.TrackID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end:end])
	}
	return batches
}
