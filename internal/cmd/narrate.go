package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/splatpipe/splatpipe/internal/event"
)

var (
	accentColor  = lipgloss.Color("#A78BFA") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray

	stageStyle   = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

// narrator prints one line per stage transition.
type narrator struct {
	out    io.Writer
	styled bool
	// width truncates lines on a terminal; 0 leaves them whole.
	width int
	total int
}

// newNarrator styles output only when w is a terminal.
func newNarrator(w io.Writer) *narrator {
	n := &narrator{out: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		n.styled = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			n.width = width
		}
	}
	return n
}

// println writes one line, cut to the terminal width without breaking
// escape sequences.
func (n *narrator) println(line string) {
	if n.width > 3 && lipgloss.Width(line) > n.width {
		line = ansi.Truncate(line, n.width, "...")
	}
	fmt.Fprintln(n.out, line)
}

func (n *narrator) render(s lipgloss.Style, text string) string {
	if !n.styled {
		return text
	}
	return s.Render(text)
}

// attach subscribes the narrator to bus.
func (n *narrator) attach(bus *event.Bus) {
	bus.SubscribeAll(n.handle)
}

func (n *narrator) handle(e event.Event) {
	switch ev := e.(type) {
	case event.PipelineStartedEvent:
		n.total = len(ev.Stages)
		n.println(n.render(stageStyle, "run") + " " + n.render(mutedStyle, ev.RunID))
	case event.StageStartedEvent:
		n.println(n.render(mutedStyle, fmt.Sprintf("[%d/%d]", ev.Index+1, n.total)) + " " + n.render(stageStyle, ev.Stage))
	case event.StageCompletedEvent:
		line := fmt.Sprintf("  %s %s", n.render(successStyle, "ok"), n.render(mutedStyle, ev.Duration.Round(time.Millisecond).String()))
		if ev.Output != "" {
			line += " " + ev.Output
		}
		n.println(line)
	case event.PipelineFailedEvent:
		n.println(fmt.Sprintf("  %s %s: %v", n.render(errorStyle, "failed"), ev.Stage, ev.Err))
	case event.PipelineCompletedEvent:
		n.println(fmt.Sprintf("%s %s in %s", n.render(successStyle, "done"), ev.Asset, ev.Duration.Round(time.Millisecond)))
	}
}
