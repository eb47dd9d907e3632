// Package ui holds the terminal styling used by the command line.
//
// [Palette] renders titles, success, error, warning and help text with lipgloss. Colors are dropped
// automatically when output is not a terminal. [ProgressLine] turns a [tasks.ProgressUpdate] into a
// single marked line ("→", "✓", "+", "−") for the sync progress stream.
package ui
