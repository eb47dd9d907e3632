package ui

import (
	"github.com/desertthunder/likesync/internal/tasks"
)

// ProgressLine renders a progress update as a single terminal line with a phase marker.
func ProgressLine(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.CreatePlaylist:
		if u.Total > 0 {
			return styles.OK("✓ %s", u.Message)
		}
		return styles.Warn("→ %s", u.Message)
	case tasks.Compare:
		return styles.Title("≈ %s", u.Message)
	case tasks.RemoveTracks:
		return styles.Warn("− %s", u.Message)
	case tasks.AddTracks:
		return styles.OK("+ %s", u.Message)
	case tasks.Complete:
		return styles.OK("✓ %s", u.Message)
	case tasks.Retrying:
		return styles.Warn("↻ %s", u.Message)
	default:
		if u.Total > 0 && u.Step >= u.Total {
			return styles.OK("✓ %s", u.Message)
		}
		return styles.Help("→ %s", u.Message)
	}
}
