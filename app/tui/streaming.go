package tui

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/delver/trace"
)

// StreamTokenMsg represents one streamed event from an in-flight question.
type StreamTokenMsg struct {
	Token     string
	TokenType TokenType
}

// TokenType enumerates the supported streaming categories.
type TokenType string

const (
	TokenText     TokenType = "text"
	TokenThinking TokenType = "thinking"
	TokenSearch   TokenType = "search"
	TokenResults  TokenType = "results"
	TokenNotice   TokenType = "notice"
)

// StreamCompleteMsg signals that the question finished streaming.
type StreamCompleteMsg struct {
	Duration time.Duration
}

// StreamErrorMsg wraps agent acquisition failures for display.
type StreamErrorMsg struct {
	Error error
}

// StreamSavedMsg reports the trace file written for the question.
type StreamSavedMsg struct {
	Path string
}

// streamRenderer adapts the tracer's render surface onto a Bubble Tea
// message channel. One question streams at a time; reset rebinds the channel
// before each question and detach unbinds it once the stream closes.
type streamRenderer struct {
	mu    sync.Mutex
	ch    chan<- tea.Msg
	start time.Time
}

func (r *streamRenderer) reset(ch chan<- tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ch = ch
	r.start = time.Now()
}

func (r *streamRenderer) detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ch = nil
}

func (r *streamRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

var _ trace.Renderer = (*streamRenderer)(nil)

func (r *streamRenderer) Question(text string) {}

func (r *streamRenderer) Thinking(text string) {
	r.send(StreamTokenMsg{TokenType: TokenThinking, Token: text})
}

func (r *streamRenderer) ToolCall(name string) {
	r.send(StreamTokenMsg{TokenType: TokenSearch, Token: name})
}

func (r *streamRenderer) ToolResult(preview string) {
	r.send(StreamTokenMsg{TokenType: TokenResults, Token: preview})
}

func (r *streamRenderer) AnswerChunk(text string) {
	r.send(StreamTokenMsg{TokenType: TokenText, Token: text})
}

func (r *streamRenderer) Notice(text string) {
	r.send(StreamTokenMsg{TokenType: TokenNotice, Token: text})
}

func (r *streamRenderer) Saved(path string) {
	r.send(StreamSavedMsg{Path: path})
}

func (r *streamRenderer) Done() {
	r.mu.Lock()
	start := r.start
	r.mu.Unlock()
	r.send(StreamCompleteMsg{Duration: time.Since(start)})
}

// MessageBuilder accumulates streaming state until completion.
type MessageBuilder struct {
	startTime time.Time
	text      strings.Builder
	steps     []ResearchStep
}

// NewMessageBuilder constructs a builder stamped with the question start.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{startTime: time.Now()}
}

// AddToken ingests the next streaming token.
func (mb *MessageBuilder) AddToken(token StreamTokenMsg) {
	switch token.TokenType {
	case TokenText:
		mb.text.WriteString(token.Token)
	case TokenThinking:
		mb.addStep(StepThinking, token.Token)
	case TokenSearch:
		mb.addStep(StepSearch, token.Token)
	case TokenResults:
		mb.addStep(StepResults, token.Token)
	case TokenNotice:
		mb.addStep(StepNotice, token.Token)
	}
}

func (mb *MessageBuilder) addStep(kind StepKind, text string) {
	mb.steps = append(mb.steps, ResearchStep{Kind: kind, Text: text, Time: time.Now()})
}

// Build finalizes the streaming message into a concrete agent message.
func (mb *MessageBuilder) Build(duration time.Duration, model string) Message {
	return Message{
		ID:        generateID(),
		Timestamp: mb.startTime,
		Role:      RoleAgent,
		Content: MessageContent{
			Text:     mb.text.String(),
			Steps:    append([]ResearchStep(nil), mb.steps...),
			Expanded: true,
		},
		Metadata: MessageMetadata{Duration: duration, Model: model},
	}
}

// BuildPartial renders the in-progress agent response.
func (mb *MessageBuilder) BuildPartial() Message {
	return Message{
		ID:        "streaming",
		Timestamp: mb.startTime,
		Role:      RoleAgent,
		Content: MessageContent{
			Text:     mb.text.String(),
			Steps:    append([]ResearchStep(nil), mb.steps...),
			Expanded: true,
		},
	}
}
