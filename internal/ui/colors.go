package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Spotify green, success green, red, amber, grey.
var styles = NewPalette("#1DB954", "#04B575", "#FF5F5F", "#FFA500", "#8A8A8A")

// Styles returns the default palette.
func Styles() *Palette { return styles }

// interface Painter defines coloring text with [lipgloss] styles
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func (p *Palette) Title(format string, args ...any) string { return render(p.title, format, args) }
func (p *Palette) OK(format string, args ...any) string    { return render(p.ok, format, args) }
func (p *Palette) Err(format string, args ...any) string   { return render(p.err, format, args) }
func (p *Palette) Warn(format string, args ...any) string  { return render(p.warn, format, args) }
func (p *Palette) Help(format string, args ...any) string  { return render(p.help, format, args) }

// On renders s on a background color.
func (p *Palette) On(s string, bg lipgloss.Color) string {
	return lipgloss.NewStyle().Background(bg).Render(s)
}

// As renders s in a foreground color.
func (p *Palette) As(s string, fg lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(fg).Render(s)
}

func render(style lipgloss.Style, format string, args []any) string {
	if len(args) == 0 {
		return style.Render(format)
	}
	return style.Render(fmt.Sprintf(format, args...))
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

var _ Painter = (*Palette)(nil)
