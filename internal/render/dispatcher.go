package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"agentcli/internal/stream"

	"github.com/charmbracelet/lipgloss"
)

// Styles decorate tool annotations. Text deltas are always written as-is.
type Styles struct {
	ToolCall   lipgloss.Style
	ToolResult lipgloss.Style
}

// DefaultStyles colours tool traffic cyan on stdout.
func DefaultStyles() *Styles {
	return StylesFor(os.Stdout)
}

// StylesFor colours tool traffic cyan when w is a colour terminal. Any other
// writer gets the annotations unchanged.
func StylesFor(w io.Writer) *Styles {
	cyan := lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("6"))
	return &Styles{ToolCall: cyan, ToolResult: cyan}
}

// paint applies st line by line. Tool output keeps its tabs and line
// lengths; only escape sequences are added around each line.
func paint(st lipgloss.Style, s string) string {
	st = st.Inline(true).TabWidth(lipgloss.NoTabConversion)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = st.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

type Option func(*Dispatcher)

// WithStyles enables styled annotations. A nil value keeps plain output.
func WithStyles(s *Styles) Option {
	return func(d *Dispatcher) { d.styles = s }
}

type flusher interface {
	Flush() error
}

// Dispatcher renders events to a sink in the order they are given.
type Dispatcher struct {
	w      io.Writer
	styles *Styles
}

func NewDispatcher(w io.Writer, opts ...Option) *Dispatcher {
	d := &Dispatcher{w: w}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch writes ev and flushes the sink. Kinds without a rendering are
// ignored. Only sink failures are returned.
func (d *Dispatcher) Dispatch(ev stream.Event) error {
	var out string
	switch e := ev.(type) {
	case stream.TextDelta:
		out = e.Text
	case stream.ToolCall:
		line := fmt.Sprintf("  [calling %s]", e.ToolName)
		if d.styles != nil {
			line = paint(d.styles.ToolCall, line)
		}
		out = "\n" + line + "\n"
	case stream.ToolResult:
		line := fmt.Sprintf("  [result: %s]", e.Result)
		if d.styles != nil {
			line = paint(d.styles.ToolResult, line)
		}
		out = line + "\n"
	default:
		return nil
	}

	if out == "" {
		return nil
	}
	if _, err := io.WriteString(d.w, out); err != nil {
		return fmt.Errorf("writing %s: %w", ev.Kind(), err)
	}
	if f, ok := d.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flushing output: %w", err)
		}
	}
	return nil
}
