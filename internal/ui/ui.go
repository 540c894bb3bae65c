// Package ui renders command output.
//
// Output to a terminal is styled; anything else (pipes, files, tests) gets
// plain ASCII with the same layout.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goalcoach/goalcoach/internal/insights"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 80

// UI writes styled output to one writer.
type UI struct {
	w     io.Writer
	tty   bool
	width int

	title   lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	faint   lipgloss.Style
	accent  lipgloss.Style
}

// New creates a UI for w. Styling is enabled only when w is a terminal.
func New(w io.Writer) *UI {
	tty, width := false, defaultWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}

	var r *lipgloss.Renderer
	if tty {
		r = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.EnvColorProfile()))
	} else {
		r = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
	}

	return &UI{
		w:       w,
		tty:     tty,
		width:   width,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#3a86ff")),
		success: r.NewStyle().Foreground(lipgloss.Color("#04a777")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("#fb5607")),
		faint:   r.NewStyle().Faint(true),
		accent:  r.NewStyle().Foreground(lipgloss.Color("#8338ec")),
	}
}

// IsTerminal reports whether output goes to a terminal.
func (u *UI) IsTerminal() bool {
	return u.tty
}

// Title prints a heading.
func (u *UI) Title(s string) {
	fmt.Fprintln(u.w, u.title.Render(s))
}

// Success prints a confirmation.
func (u *UI) Success(format string, args ...any) {
	fmt.Fprintln(u.w, u.success.Render(u.mark("✓", "OK")+" "+fmt.Sprintf(format, args...)))
}

// Warn prints a warning.
func (u *UI) Warn(format string, args ...any) {
	fmt.Fprintln(u.w, u.warn.Render(u.mark("!", "WARNING:")+" "+fmt.Sprintf(format, args...)))
}

// Info prints a plain line.
func (u *UI) Info(format string, args ...any) {
	fmt.Fprintf(u.w, format+"\n", args...)
}

// Empty prints the placeholder for an empty list.
func (u *UI) Empty(what string) {
	fmt.Fprintln(u.w, u.faint.Render("No "+what+" yet."))
}

func (u *UI) mark(fancy, plain string) string {
	if u.tty {
		return fancy
	}
	return plain
}

// ProgressBar renders progress (0-100) as a fixed-width bar.
func (u *UI) ProgressBar(progress, width int) string {
	progress = max(model.MinProgress, min(model.MaxProgress, progress))
	filled := progress * width / model.MaxProgress
	full, empty := "█", "░"
	if !u.tty {
		full, empty = "#", "-"
	}
	return "[" + strings.Repeat(full, filled) + strings.Repeat(empty, width-filled) + "]"
}

// Goal prints one goal line.
func (u *UI) Goal(g model.Goal) {
	status := fmt.Sprintf("%3d%%", g.Progress)
	if g.IsCompleted() {
		status = u.success.Render("done")
	}
	line := fmt.Sprintf("%s %s %s  %s", u.faint.Render(short(g.ID)), u.ProgressBar(g.Progress, 20), status, g.Title)
	fmt.Fprintln(u.w, line)

	var meta []string
	meta = append(meta, string(g.Category))
	if g.Deadline != nil {
		meta = append(meta, "due "+g.Deadline.Local().Format("2006-01-02"))
	}
	if g.CompletedAt != nil {
		meta = append(meta, "completed "+g.CompletedAt.Local().Format("2006-01-02"))
	}
	fmt.Fprintln(u.w, "         "+u.faint.Render(strings.Join(meta, ", ")))
}

// JournalEntry prints one entry. goals resolves goal titles; a goal id that
// does not resolve is shown as unlinked.
func (u *UI) JournalEntry(e model.JournalEntry, goals map[string]string) {
	header := u.faint.Render(short(e.ID)) + " " + e.SubmittedAt.Local().Format("2006-01-02 15:04")
	if title, ok := goals[e.GoalID]; ok && e.Linked() {
		header += " " + u.accent.Render("["+title+"]")
	}
	if e.Confidence != nil {
		header += fmt.Sprintf(" confidence %d/10", *e.Confidence)
	}
	fmt.Fprintln(u.w, header)
	fmt.Fprintln(u.w, "  "+u.wrap(e.Body, 2))
}

// Place prints one saved place.
func (u *UI) Place(p model.Place) {
	fmt.Fprintf(u.w, "%s %s  %s  (%.5f, %.5f)\n",
		u.faint.Render(short(p.ID)), p.Name, u.faint.Render(p.CityState()), p.Latitude, p.Longitude)
}

// Trend prints a confidence trend, one sparkline per series.
func (u *UI) Trend(series []insights.Series) {
	if len(series) == 0 {
		u.Empty("confidence ratings")
		return
	}
	for _, s := range series {
		style := u.title.Foreground(lipgloss.Color(fmt.Sprintf("#%06x", s.Color&0xFFFFFF)))
		last := s.Points[len(s.Points)-1]
		fmt.Fprintf(u.w, "%s %s  last %d/10 on %s\n",
			style.Render(s.Label), u.Sparkline(s.Points), last.Confidence, last.At.Local().Format("2006-01-02"))
	}
}

// Sparkline renders confidence points (0-10) as one character each.
func (u *UI) Sparkline(points []insights.Point) string {
	var b strings.Builder
	for _, p := range points {
		c := max(model.MinConfidence, min(model.MaxConfidence, p.Confidence))
		if u.tty {
			levels := []rune("▁▂▃▄▅▆▇█")
			b.WriteRune(levels[c*(len(levels)-1)/model.MaxConfidence])
		} else {
			fmt.Fprintf(&b, "%d ", c)
		}
	}
	return strings.TrimSpace(b.String())
}

// Relative formats t relative to now, for status lines.
func Relative(t, now time.Time) string {
	d := now.Sub(t).Round(time.Second)
	switch {
	case t.IsZero():
		return "never"
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// wrap breaks s into lines fitting the terminal width, indenting follow-on
// lines by indent spaces.
func (u *UI) wrap(s string, indent int) string {
	width := u.width - indent
	if width < 20 {
		width = 20
	}
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Fields(s) {
		if cur != "" && len(cur)+1+len(word) > width {
			lines = append(lines, cur)
			cur = word
			continue
		}
		if cur == "" {
			cur = word
		} else {
			cur += " " + word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return strings.Join(lines, "\n"+strings.Repeat(" ", indent))
}

// short abbreviates a UUID for display.
func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
