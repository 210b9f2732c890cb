package trace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lexcodex/delver/agents"
	"github.com/lexcodex/delver/framework"
)

// Options carries the presentation and persistence knobs the tracer needs.
type Options struct {
	// OutputsDir is where flushed trace files land.
	OutputsDir string
	// PreviewLimit bounds tool-result previews, in runes.
	PreviewLimit int
	// FlushPerQuestion persists the session after every Run. The safer
	// default: an abnormal exit can only lose the question in flight.
	FlushPerQuestion bool
}

// Tracer drives one question at a time through the agent, renders the event
// stream incrementally, and accumulates the session trace. Session lines are
// append-only and ordered by emission; nothing that happens on the stream is
// allowed to escape Run as an error.
type Tracer struct {
	factory  *agents.Factory
	renderer Renderer
	opts     Options

	mu      sync.Mutex
	lines   []string
	flushed int
}

// NewTracer builds a tracer over the given factory and output surface.
func NewTracer(factory *agents.Factory, renderer Renderer, opts Options) *Tracer {
	if opts.OutputsDir == "" {
		opts.OutputsDir = "outputs"
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = 300
	}
	return &Tracer{factory: factory, renderer: renderer, opts: opts}
}

// Run answers one question. The only error it returns is a failure to
// acquire an agent (every candidate model unavailable); stream failures are
// classified, rendered, and recorded as session lines instead.
func (t *Tracer) Run(ctx context.Context, question string) error {
	handle, err := t.factory.Get(ctx)
	if err != nil {
		return err
	}
	t.append("Question: " + question)
	t.append("Timestamp: " + time.Now().Format(time.RFC3339))
	t.append(strings.Repeat("-", 60))
	t.renderer.Question(question)

	var answer strings.Builder
	failed := false
	answered := false
	for ev := range handle.Ask(ctx, question) {
		switch ev.Kind {
		case agents.EventThinking:
			t.renderer.Thinking(ev.Text)
			t.append("Thinking: " + ev.Text)
		case agents.EventToolCall:
			t.renderer.ToolCall(ev.Tool)
			t.append(fmt.Sprintf("Tool call: [%s]", ev.Tool))
		case agents.EventToolResult:
			preview := previewText(ev.Content, t.opts.PreviewLimit)
			t.renderer.ToolResult(preview)
			t.append("Tool result: " + preview)
		case agents.EventAnswerChunk:
			answer.WriteString(ev.Text)
			t.renderer.AnswerChunk(ev.Text)
		case agents.EventAnswerDone:
			answered = true
		case agents.EventError:
			failed = true
			t.recordFailure(ev.Err)
		}
	}
	if ctx.Err() != nil && !failed && !answered {
		// Cancellation can close the stream before the error event lands.
		// A cancel that merely raced a completed answer is not a failure.
		t.recordFailure(ctx.Err())
	}

	if answer.Len() > 0 {
		t.append("Final answer:\n" + answer.String())
	}
	// Done precedes Saved: buffered renderers flush the answer before the
	// trace-file note.
	t.renderer.Done()

	if t.opts.FlushPerQuestion {
		if path, err := t.Flush(); err == nil && path != "" {
			t.renderer.Saved(path)
		}
	}
	return nil
}

// recordFailure maps a stream failure onto the recovery policy: capacity
// failures invalidate the cached agent so the next question re-probes and
// can fall through to another candidate; rate limits and everything else
// leave the cache alone.
func (t *Tracer) recordFailure(err error) {
	switch framework.Classify(err) {
	case framework.ErrorCapacity:
		t.renderer.Notice("⚠️  The model is temporarily busy; the next question will retry with a fallback model.")
		t.factory.Reset()
		t.append("Error: " + err.Error())
	case framework.ErrorRateLimit:
		t.renderer.Notice("⚠️  Rate limited; wait a moment and ask again.")
		t.append("Error: " + err.Error())
	case framework.ErrorInterrupted:
		t.renderer.Notice("⏹  Interrupted.")
		t.append("Interrupted by user")
	default:
		t.renderer.Notice(fmt.Sprintf("❌ Error: %v", err))
		t.append("Error: " + err.Error())
	}
}

// Flush persists the session trace to a timestamped file under the outputs
// directory and returns its path. A session with no lines flushes nothing.
func (t *Tracer) Flush() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(t.opts.OutputsDir, 0o755); err != nil {
		return "", err
	}
	now := time.Now()
	name := fmt.Sprintf("trace_%s_%06d.txt", now.Format("20060102_150405"), now.Nanosecond()/1000)
	path := filepath.Join(t.opts.OutputsDir, name)
	if err := os.WriteFile(path, []byte(strings.Join(t.lines, "\n")), 0o644); err != nil {
		return "", err
	}
	t.flushed = len(t.lines)
	return path, nil
}

// Dirty reports whether lines were appended since the last flush.
func (t *Tracer) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines) > t.flushed
}

// Clear resets the in-memory session trace.
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
	t.flushed = 0
}

// Lines returns a snapshot of the session trace.
func (t *Tracer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

func (t *Tracer) append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
}

// previewText truncates on rune boundaries so multibyte content survives.
func previewText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
