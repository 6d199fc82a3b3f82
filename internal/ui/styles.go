package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent = lipgloss.Color("#3178C6")
	colorMuted  = lipgloss.Color("#6E7681")
	colorError  = lipgloss.Color("#E5534B")
	colorInfo   = lipgloss.Color("#57AB5A")
)

// styles holds the window's lipgloss styles, bound to one renderer so the
// color profile follows the output writer.
type styles struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Info      lipgloss.Style
	Error     lipgloss.Style
	Choice    lipgloss.Style
	StatusBar lipgloss.Style
	Item      lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Title:     r.NewStyle().Bold(true).Foreground(colorAccent),
		Muted:     r.NewStyle().Foreground(colorMuted),
		Info:      r.NewStyle().Foreground(colorInfo),
		Error:     r.NewStyle().Bold(true).Foreground(colorError),
		Choice:    r.NewStyle().Foreground(colorAccent),
		StatusBar: r.NewStyle().Foreground(colorMuted),
		Item:      r.NewStyle().Padding(0, 1),
	}
}

// icons maps the codicons used in status text to terminal glyphs.
var icons = map[string]string{
	"beaker":  "⚗",
	"sync":    "↻",
	"error":   "✗",
	"check":   "✓",
	"warning": "⚠",
}

// renderIcons replaces $(name) codicon references. Unknown icons are
// dropped.
func renderIcons(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "$(")
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := strings.IndexByte(text[start:], ')')
		if end < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])
		name := text[start+2 : start+end]
		name, _, _ = strings.Cut(name, "~")
		b.WriteString(icons[name])
		text = text[start+end+1:]
	}
}
