package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Init fulfills the Bubble Tea Model interface.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update applies incoming Bubble Tea messages to mutate the Model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "ctrl+l":
			m.messages = nil
			return m.refreshFeedContent(), nil
		case "esc":
			if m.streaming && m.cancel != nil {
				m.cancel()
				return m, nil
			}
		}
		return m.handleKey(msg)
	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case StreamTokenMsg:
		return m.handleStreamToken(msg)
	case StreamCompleteMsg:
		return m.handleStreamComplete(msg)
	case StreamErrorMsg:
		return m.handleStreamError(msg)
	case StreamSavedMsg:
		return m.handleStreamSaved(msg)
	}
	return m, nil
}

// handleResize adjusts the feed/input layout on terminal resize events.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	statusBarHeight := 1
	promptBarHeight := 1
	feedHeight := max(1, msg.Height-statusBarHeight-promptBarHeight)

	if !m.ready {
		v := viewport.New(msg.Width, feedHeight)
		m.feed = &v
		m.ready = true
	} else {
		m.feed.Width = msg.Width
		m.feed.Height = feedHeight
	}
	m.input.Width = max(10, msg.Width-4)
	return m.refreshFeedContent(), nil
}

// handleKey implements the prompt behavior.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.submitPrompt()
	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		var v viewport.Model
		v, cmd = m.feed.Update(msg)
		m.feed = &v
		return m, cmd
	case "tab":
		return m.toggleExpandLatest()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

// handleStreamToken updates the live streaming message as new events arrive.
func (m Model) handleStreamToken(msg StreamTokenMsg) (tea.Model, tea.Cmd) {
	if !m.streaming || m.streamBuf == nil {
		return m, nil
	}
	m.streamBuf.AddToken(msg)
	partial := m.streamBuf.BuildPartial()

	if len(m.messages) > 0 && m.messages[len(m.messages)-1].ID == "streaming" {
		m.messages[len(m.messages)-1] = partial
	} else {
		m.messages = append(m.messages, partial)
	}
	m = m.refreshFeedContent()
	if m.streamCh != nil {
		return m, listenToStream(m.streamCh)
	}
	return m, nil
}

// handleStreamComplete finalizes the message once streaming stops.
func (m Model) handleStreamComplete(msg StreamCompleteMsg) (tea.Model, tea.Cmd) {
	if !m.streaming || m.streamBuf == nil {
		return m, nil
	}
	final := m.streamBuf.Build(msg.Duration, m.factory.ActiveModel())
	if len(m.messages) > 0 && m.messages[len(m.messages)-1].ID == "streaming" {
		m.messages[len(m.messages)-1] = final
	} else {
		m.messages = append(m.messages, final)
	}

	m.session.Questions++
	m.session.TotalDuration += msg.Duration
	m.session.Model = m.factory.ActiveModel()

	m.statusBar.model = m.session.Model
	m.statusBar.questions = m.session.Questions
	m.statusBar.duration = m.session.TotalDuration
	m.statusBar.lastUpdate = time.Now()

	m.streaming = false
	m.streamBuf = nil
	m.cancel = nil
	m = m.refreshFeedContent()
	// The saved-trace note arrives after completion; keep listening until
	// the stream channel closes.
	return m, listenToStream(m.streamCh)
}

// handleStreamError surfaces agent acquisition failures in the feed.
func (m Model) handleStreamError(msg StreamErrorMsg) (tea.Model, tea.Cmd) {
	m.streaming = false
	m.streamBuf = nil
	m.streamCh = nil
	m.cancel = nil
	return m.addSystemMessage(fmt.Sprintf("⚠️  %v", msg.Error)), nil
}

// handleStreamSaved notes the trace file written for the last question.
func (m Model) handleStreamSaved(msg StreamSavedMsg) (tea.Model, tea.Cmd) {
	m = m.addSystemMessage("📁 Trace saved to " + msg.Path)
	ch := m.streamCh
	m.streamCh = nil
	return m, listenToStream(ch)
}

func (m Model) addSystemMessage(text string) Model {
	sys := Message{
		ID:        generateID(),
		Timestamp: time.Now(),
		Role:      RoleSystem,
		Content:   MessageContent{Text: text},
	}
	m.messages = append(m.messages, sys)
	return m.refreshFeedContent()
}

// toggleExpandLatest collapses or expands the research steps on the newest
// agent message.
func (m Model) toggleExpandLatest() (tea.Model, tea.Cmd) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := &m.messages[i]
		if msg.Role != RoleAgent {
			continue
		}
		msg.Content.Expanded = !msg.Content.Expanded
		break
	}
	return m.refreshFeedContent(), nil
}

// listenToStream adapts Go channels to Bubble Tea commands for streaming.
func listenToStream(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
