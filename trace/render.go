package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer is the output surface a Tracer streams into. Done releases the
// surface and must be called on every exit path; after Done the renderer
// must leave the terminal in a clean state even when the answer never
// finished. Saved, when a trace file is written, fires after Done.
type Renderer interface {
	Question(text string)
	Thinking(text string)
	ToolCall(name string)
	ToolResult(preview string)
	AnswerChunk(text string)
	Notice(text string)
	Saved(path string)
	Done()
}

// PlainRenderer prints unstyled prefixed lines, for piped output and tests.
type PlainRenderer struct {
	Out io.Writer
}

func (r *PlainRenderer) Question(text string)      { fmt.Fprintf(r.Out, "Question: %s\n", text) }
func (r *PlainRenderer) Thinking(text string)      { fmt.Fprintf(r.Out, "Thinking: %s\n", text) }
func (r *PlainRenderer) ToolCall(name string)      { fmt.Fprintf(r.Out, "Tool call: [%s]\n", name) }
func (r *PlainRenderer) ToolResult(preview string) { fmt.Fprintf(r.Out, "Tool result: %s\n", preview) }
func (r *PlainRenderer) AnswerChunk(text string)   { fmt.Fprint(r.Out, text) }
func (r *PlainRenderer) Notice(text string)        { fmt.Fprintf(r.Out, "%s\n", text) }
func (r *PlainRenderer) Saved(path string)         { fmt.Fprintf(r.Out, "Trace saved to %s\n", path) }
func (r *PlainRenderer) Done()                     { fmt.Fprintln(r.Out) }

var (
	thinkingPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("170")).
				Italic(true).
				Faint(true).
				Padding(0, 1)

	toolPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("220")).
			Padding(0, 1)

	resultPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")).
				Padding(0, 1)

	answerPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("42")).
				Padding(1, 2)

	panelTitleStyle = lipgloss.NewStyle().Bold(true)

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	savedStyle = lipgloss.NewStyle().Faint(true)
)

// PanelRenderer draws bordered lipgloss panels, one per trace event, in the
// spirit of the Bubble Tea feed but usable outside a full-screen program.
// Answer chunks accumulate and render as a single panel when the stream
// finishes.
type PanelRenderer struct {
	Out    io.Writer
	Width  int
	answer strings.Builder
}

// NewPanelRenderer builds a panel renderer with a sane default width.
func NewPanelRenderer(out io.Writer) *PanelRenderer {
	return &PanelRenderer{Out: out, Width: 80}
}

func (r *PanelRenderer) panel(style lipgloss.Style, title, body string) {
	content := panelTitleStyle.Render(title) + "\n" + body
	fmt.Fprintln(r.Out, style.Width(r.Width).Render(content))
}

func (r *PanelRenderer) Question(text string) {
	fmt.Fprintln(r.Out)
}

func (r *PanelRenderer) Thinking(text string) {
	r.panel(thinkingPanelStyle, "💭 Thinking", text)
}

func (r *PanelRenderer) ToolCall(name string) {
	r.panel(toolPanelStyle, "🔧 Tool", "Searching: "+name)
}

func (r *PanelRenderer) ToolResult(preview string) {
	r.panel(resultPanelStyle, "📥 Search Results", preview)
}

func (r *PanelRenderer) AnswerChunk(text string) {
	r.answer.WriteString(text)
}

func (r *PanelRenderer) Notice(text string) {
	fmt.Fprintln(r.Out, noticeStyle.Render(text))
}

func (r *PanelRenderer) Saved(path string) {
	fmt.Fprintln(r.Out, savedStyle.Render("📁 Trace saved to "+path))
}

// Done flushes the accumulated answer, partial or complete, so an aborted
// stream never leaves buffered output behind.
func (r *PanelRenderer) Done() {
	if r.answer.Len() == 0 {
		return
	}
	r.panel(answerPanelStyle, "✅ Answer", r.answer.String())
	r.answer.Reset()
}
