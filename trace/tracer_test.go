package trace

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/delver/agents"
	"github.com/lexcodex/delver/framework"
)

// recordingRenderer captures every renderer call; order tracks the relative
// sequence of the lifecycle calls.
type recordingRenderer struct {
	questions []string
	thinking  []string
	toolCalls []string
	results   []string
	chunks    []string
	notices   []string
	saved     []string
	doneCalls int
	order     []string
}

func (r *recordingRenderer) Question(text string)      { r.questions = append(r.questions, text) }
func (r *recordingRenderer) Thinking(text string)      { r.thinking = append(r.thinking, text) }
func (r *recordingRenderer) ToolCall(name string)      { r.toolCalls = append(r.toolCalls, name) }
func (r *recordingRenderer) ToolResult(preview string) { r.results = append(r.results, preview) }
func (r *recordingRenderer) AnswerChunk(text string)   { r.chunks = append(r.chunks, text) }
func (r *recordingRenderer) Notice(text string)        { r.notices = append(r.notices, text) }

func (r *recordingRenderer) Saved(path string) {
	r.saved = append(r.saved, path)
	r.order = append(r.order, "saved")
}

func (r *recordingRenderer) Done() {
	r.doneCalls++
	r.order = append(r.order, "done")
}

// scriptedModel answers the factory probe from probeErr and each reasoning
// turn from the next entry in script.
type scriptedModel struct {
	probeErr   error
	probeCalls int
	script     []func() (*framework.LLMResponse, error)
	turn       int
}

func (m *scriptedModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.probeCalls++
	if m.probeErr != nil {
		return nil, m.probeErr
	}
	return &framework.LLMResponse{Text: "pong"}, nil
}

func (m *scriptedModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	if m.turn >= len(m.script) {
		return &framework.LLMResponse{Text: "done"}, nil
	}
	step := m.script[m.turn]
	m.turn++
	return step()
}

type cannedTool struct {
	name    string
	payload string
	calls   int
}

func (t *cannedTool) Name() string                          { return t.name }
func (t *cannedTool) Description() string                   { return "canned search results" }
func (t *cannedTool) Parameters() []framework.ToolParameter { return nil }
func (t *cannedTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	t.calls++
	return t.payload, nil
}

func toolCallResponse(name string) func() (*framework.LLMResponse, error) {
	return func() (*framework.LLMResponse, error) {
		return &framework.LLMResponse{
			Text:      "I should look this up.",
			ToolCalls: []framework.ToolCall{{ID: "call_1", Name: name, Args: map[string]interface{}{"query": "super bowl 2024"}}},
		}, nil
	}
}

func answerResponse(text string) func() (*framework.LLMResponse, error) {
	return func() (*framework.LLMResponse, error) {
		return &framework.LLMResponse{Text: text}, nil
	}
}

func newFixture(t *testing.T, model *scriptedModel, tool framework.Tool, opts Options) (*Tracer, *agents.Factory, *recordingRenderer) {
	t.Helper()
	registry := framework.NewToolRegistry()
	if tool != nil {
		require.NoError(t, registry.Register(tool))
	}
	cfg := agents.DefaultConfig()
	cfg.Models = []string{"primary-model"}
	factory := agents.NewFactoryWithBuilder(cfg, registry, func(modelID string) framework.LanguageModel {
		return model
	})
	renderer := &recordingRenderer{}
	return NewTracer(factory, renderer, opts), factory, renderer
}

func TestRunRecordsFullSession(t *testing.T) {
	tool := &cannedTool{name: "web_search", payload: `{"results": [{"title": "Super Bowl LVIII"}]}`}
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		toolCallResponse("web_search"),
		answerResponse("The Kansas City Chiefs won Super Bowl LVIII."),
	}}
	tracer, _, renderer := newFixture(t, model, tool, Options{OutputsDir: t.TempDir()})

	err := tracer.Run(context.Background(), "Who won the Super Bowl in 2024?")
	require.NoError(t, err)

	assert.Equal(t, 1, tool.calls)
	assert.Equal(t, []string{"Who won the Super Bowl in 2024?"}, renderer.questions)
	assert.Equal(t, []string{"I should look this up."}, renderer.thinking)
	assert.Equal(t, []string{"web_search"}, renderer.toolCalls)
	assert.Equal(t, []string{"The Kansas City Chiefs won Super Bowl LVIII."}, renderer.chunks)
	assert.Equal(t, 1, renderer.doneCalls)
	assert.Empty(t, renderer.notices)

	lines := tracer.Lines()
	require.NotEmpty(t, lines)
	assert.Equal(t, "Question: Who won the Super Bowl in 2024?", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Timestamp: "))
	assert.Equal(t, strings.Repeat("-", 60), lines[2])
	assert.Contains(t, lines, "Tool call: [web_search]")
	assert.Equal(t, "Final answer:\nThe Kansas City Chiefs won Super Bowl LVIII.", lines[len(lines)-1])
	assert.True(t, tracer.Dirty())
}

func TestRunCapacityFailureResetsAgent(t *testing.T) {
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		func() (*framework.LLMResponse, error) {
			return nil, &framework.APIError{Provider: "groq", StatusCode: 503, Message: "Service Unavailable"}
		},
	}}
	tracer, factory, renderer := newFixture(t, model, nil, Options{OutputsDir: t.TempDir()})

	err := tracer.Run(context.Background(), "anything")
	require.NoError(t, err, "stream failures must not escape Run")

	require.Len(t, renderer.notices, 1)
	assert.Contains(t, renderer.notices[0], "busy")
	assert.Equal(t, 1, renderer.doneCalls)
	assert.Contains(t, strings.Join(tracer.Lines(), "\n"), "Error: groq error: HTTP 503")

	// The cached handle was invalidated, so the next question re-probes.
	probesBefore := model.probeCalls
	_, err = factory.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, probesBefore+1, model.probeCalls)
}

func TestRunRateLimitKeepsAgent(t *testing.T) {
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		func() (*framework.LLMResponse, error) {
			return nil, &framework.APIError{Provider: "groq", StatusCode: 429, Message: "Too Many Requests"}
		},
	}}
	tracer, factory, renderer := newFixture(t, model, nil, Options{OutputsDir: t.TempDir()})

	require.NoError(t, tracer.Run(context.Background(), "anything"))

	require.Len(t, renderer.notices, 1)
	assert.Contains(t, renderer.notices[0], "Rate limited")

	// Rate limiting leaves the cache alone: Get returns without re-probing.
	probesBefore := model.probeCalls
	_, err := factory.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, probesBefore, model.probeCalls)
}

func TestRunInterruptedRecordsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		func() (*framework.LLMResponse, error) {
			cancel()
			return nil, context.Canceled
		},
	}}
	tracer, _, renderer := newFixture(t, model, nil, Options{OutputsDir: t.TempDir()})

	require.NoError(t, tracer.Run(ctx, "anything"))

	interrupted := 0
	for _, line := range tracer.Lines() {
		if line == "Interrupted by user" {
			interrupted++
		}
	}
	assert.Equal(t, 1, interrupted)
	assert.Equal(t, 1, renderer.doneCalls)
}

func TestRunUnavailableAgentPropagates(t *testing.T) {
	model := &scriptedModel{probeErr: &framework.APIError{Provider: "groq", StatusCode: 503}}
	tracer, _, renderer := newFixture(t, model, nil, Options{OutputsDir: t.TempDir()})

	err := tracer.Run(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all models are unavailable")
	assert.Empty(t, tracer.Lines(), "no session lines before an agent exists")
	assert.Equal(t, 0, renderer.doneCalls)
}

func TestRunFlushesPerQuestion(t *testing.T) {
	dir := t.TempDir()
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		answerResponse("Paris."),
	}}
	tracer, _, renderer := newFixture(t, model, nil, Options{OutputsDir: dir, FlushPerQuestion: true})

	require.NoError(t, tracer.Run(context.Background(), "Capital of France?"))

	require.Len(t, renderer.saved, 1)
	assert.Equal(t, []string{"done", "saved"}, renderer.order)
	path := renderer.saved[0]
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "trace_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Question: Capital of France?")
	assert.Contains(t, content, "Final answer:\nParis.")
	assert.False(t, tracer.Dirty())
}

func TestFlushEmptySessionWritesNothing(t *testing.T) {
	dir := t.TempDir()
	tracer := NewTracer(nil, &recordingRenderer{}, Options{OutputsDir: dir})

	path, err := tracer.Flush()
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestToolResultPreviewIsRuneBounded(t *testing.T) {
	payload := strings.Repeat("日", 400)
	tool := &cannedTool{name: "web_search", payload: payload}
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		toolCallResponse("web_search"),
		answerResponse("ok"),
	}}
	tracer, _, renderer := newFixture(t, model, tool, Options{OutputsDir: t.TempDir(), PreviewLimit: 300})

	require.NoError(t, tracer.Run(context.Background(), "anything"))

	require.Len(t, renderer.results, 1)
	assert.Equal(t, 300, len([]rune(renderer.results[0])))
	assert.Equal(t, strings.Repeat("日", 300), renderer.results[0])
}

func TestPanelRendererAnswerPrecedesSavedNote(t *testing.T) {
	tool := &cannedTool{name: "web_search", payload: `{"results": [{"title": "Super Bowl LVIII"}]}`}
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		toolCallResponse("web_search"),
		answerResponse("The Kansas City Chiefs won Super Bowl LVIII."),
	}}
	registry := framework.NewToolRegistry()
	require.NoError(t, registry.Register(tool))
	cfg := agents.DefaultConfig()
	cfg.Models = []string{"primary-model"}
	factory := agents.NewFactoryWithBuilder(cfg, registry, func(string) framework.LanguageModel { return model })
	var buf bytes.Buffer
	tracer := NewTracer(factory, NewPanelRenderer(&buf), Options{OutputsDir: t.TempDir(), FlushPerQuestion: true})

	require.NoError(t, tracer.Run(context.Background(), "Who won the Super Bowl in 2024?"))

	out := buf.String()
	answerAt := strings.Index(out, "Kansas City Chiefs")
	savedAt := strings.Index(out, "Trace saved")
	require.GreaterOrEqual(t, answerAt, 0, "answer panel missing:\n%s", out)
	require.GreaterOrEqual(t, savedAt, 0, "saved note missing:\n%s", out)
	assert.Less(t, answerAt, savedAt, "answer panel must print before the saved note")
}

// staleCancelCtx reports cancellation from Err without ever closing Done, so
// event delivery is unaffected and the post-stream check is exercised alone.
type staleCancelCtx struct {
	context.Context
	mu  sync.Mutex
	err error
}

func (c *staleCancelCtx) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *staleCancelCtx) cancel() {
	c.mu.Lock()
	c.err = context.Canceled
	c.mu.Unlock()
}

// cancelOnAnswer cancels the session context the moment the answer streams,
// the shape of a ctrl+c landing while the stream is closing.
type cancelOnAnswer struct {
	*recordingRenderer
	cancel func()
}

func (r *cancelOnAnswer) AnswerChunk(text string) {
	r.recordingRenderer.AnswerChunk(text)
	r.cancel()
}

func TestRunCancelRacingCompletedAnswerIsNotInterrupted(t *testing.T) {
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		answerResponse("Paris."),
	}}
	registry := framework.NewToolRegistry()
	cfg := agents.DefaultConfig()
	cfg.Models = []string{"primary-model"}
	factory := agents.NewFactoryWithBuilder(cfg, registry, func(string) framework.LanguageModel { return model })
	ctx := &staleCancelCtx{Context: context.Background()}
	renderer := &cancelOnAnswer{recordingRenderer: &recordingRenderer{}, cancel: ctx.cancel}
	tracer := NewTracer(factory, renderer, Options{OutputsDir: t.TempDir()})

	require.NoError(t, tracer.Run(ctx, "Capital of France?"))

	lines := tracer.Lines()
	assert.Contains(t, lines, "Final answer:\nParis.")
	assert.NotContains(t, lines, "Interrupted by user")
	assert.Empty(t, renderer.notices)
	assert.Equal(t, 1, renderer.doneCalls)
}

func TestClearResetsSession(t *testing.T) {
	model := &scriptedModel{script: []func() (*framework.LLMResponse, error){
		answerResponse("hello"),
	}}
	tracer, _, _ := newFixture(t, model, nil, Options{OutputsDir: t.TempDir()})

	require.NoError(t, tracer.Run(context.Background(), "hi"))
	require.NotEmpty(t, tracer.Lines())

	tracer.Clear()
	assert.Empty(t, tracer.Lines())
	assert.False(t, tracer.Dirty())
}
