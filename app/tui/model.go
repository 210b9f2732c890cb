package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/lexcodex/delver/agents"
	"github.com/lexcodex/delver/trace"
)

// Run bootstraps the full-screen research shell.
func Run(ctx context.Context, factory *agents.Factory, cfg *agents.Config) error {
	if factory == nil {
		return fmt.Errorf("agent factory is required")
	}
	model := NewModel(ctx, factory, cfg)
	program := tea.NewProgram(
		model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := program.Run()
	return err
}

// Model implements the Bubble Tea Model interface and coordinates the feed,
// prompt bar, and status bar.
type Model struct {
	ctx     context.Context
	factory *agents.Factory
	tracer  *trace.Tracer
	stream  *streamRenderer

	feed    *viewport.Model
	input   textinput.Model
	spinner spinner.Model

	statusBar StatusBar

	messages []Message
	session  *Session

	width  int
	height int
	ready  bool

	streaming bool
	streamBuf *MessageBuilder
	streamCh  chan tea.Msg
	cancel    context.CancelFunc

	autoFollow bool
}

// Message structures the feed entries for rendering.
type Message struct {
	ID        string
	Timestamp time.Time
	Role      MessageRole
	Content   MessageContent
	Metadata  MessageMetadata
}

// MessageRole identifies the role of each entry in the feed.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// MessageContent stores the answer text and the research steps that led to it.
type MessageContent struct {
	Text     string
	Steps    []ResearchStep
	Expanded bool
}

// ResearchStep captures one event from the reasoning stream.
type ResearchStep struct {
	Kind StepKind
	Text string
	Time time.Time
}

// StepKind enumerates research phases.
type StepKind string

const (
	StepThinking StepKind = "thinking"
	StepSearch   StepKind = "search"
	StepResults  StepKind = "results"
	StepNotice   StepKind = "notice"
)

// MessageMetadata contains per-answer metrics.
type MessageMetadata struct {
	Duration time.Duration
	Model    string
}

// Session tracks high-level session metadata for the status bar.
type Session struct {
	ID            string
	StartTime     time.Time
	Model         string
	OutputsDir    string
	Questions     int
	TotalDuration time.Duration
}

// NewModel initializes the prompt/input/feed model from the loaded config.
func NewModel(ctx context.Context, factory *agents.Factory, cfg *agents.Config) Model {
	if cfg == nil {
		cfg = agents.DefaultConfig()
	}
	input := textinput.New()
	input.Placeholder = "Ask a research question"
	input.Focus()

	v := viewport.New(0, 0)
	vp := &v

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	modelID := ""
	if len(cfg.Models) > 0 {
		modelID = cfg.Models[0]
	}
	session := &Session{
		ID:         fmt.Sprintf("session-%d", time.Now().UnixNano()),
		StartTime:  time.Now(),
		Model:      modelID,
		OutputsDir: cfg.OutputsDir,
	}

	status := StatusBar{
		model:      session.Model,
		outputs:    session.OutputsDir,
		questions:  0,
		duration:   0,
		lastUpdate: time.Now(),
	}

	stream := &streamRenderer{}
	tracer := trace.NewTracer(factory, stream, trace.Options{
		OutputsDir:       cfg.OutputsDir,
		PreviewLimit:     cfg.PreviewLimit,
		FlushPerQuestion: true,
	})

	return Model{
		ctx:        ctx,
		factory:    factory,
		tracer:     tracer,
		stream:     stream,
		feed:       vp,
		input:      input,
		spinner:    sp,
		statusBar:  status,
		messages:   []Message{},
		session:    session,
		autoFollow: true,
	}
}

// submitPrompt sends the current input through the tracer and starts
// listening for stream events.
func (m Model) submitPrompt() (Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" || m.streaming {
		return m, nil
	}

	userMsg := Message{
		ID:        generateID(),
		Timestamp: time.Now(),
		Role:      RoleUser,
		Content:   MessageContent{Text: value},
	}
	m.messages = append(m.messages, userMsg)
	m = m.refreshFeedContent()

	m.input.SetValue("")

	m.streaming = true
	m.streamBuf = NewMessageBuilder()

	ch := make(chan tea.Msg)
	m.streamCh = ch
	m.stream.reset(ch)

	qctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	go m.runQuestion(qctx, ch, value)

	return m, tea.Batch(listenToStream(ch), m.spinner.Tick)
}

// runQuestion drives one question to completion off the UI goroutine. Stream
// failures are rendered by the tracer itself; only a failure to acquire an
// agent surfaces here.
func (m Model) runQuestion(ctx context.Context, ch chan tea.Msg, question string) {
	if err := m.tracer.Run(ctx, question); err != nil {
		m.stream.send(StreamErrorMsg{Error: err})
	}
	m.stream.detach()
	close(ch)
}

// generateID produces a unique identifier for feed entries.
func generateID() string {
	return "msg-" + uuid.NewString()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// refreshFeedContent ensures the viewport reflects the latest messages.
func (m Model) refreshFeedContent() Model {
	if !m.ready || m.feed == nil {
		return m
	}
	m.feed.SetContent(m.renderMessages())
	if m.autoFollow {
		m.feed.GotoBottom()
	}
	return m
}
