package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lexcodex/delver/framework"
)

// Handle is a configured reasoning engine: one model, one tool set, one
// system prompt. Handles are built and cached by the Factory; a handle never
// mutates after construction, so one question at a time can safely borrow it.
type Handle struct {
	model         framework.LanguageModel
	modelID       string
	tools         *framework.ToolRegistry
	systemPrompt  string
	temperature   float64
	maxTokens     int
	maxIterations int
	debug         bool
}

// ModelID reports which model candidate this handle is bound to.
func (h *Handle) ModelID() string { return h.modelID }

// Ask answers one question with the reason/act/observe loop and returns the
// event stream. The channel is unbuffered: the producer blocks until the
// consumer takes the next event, which keeps rendering and trace order
// identical to emission order. The channel is closed when the question is
// finished, whether it ended in an answer or an error event.
func (h *Handle) Ask(ctx context.Context, question string) <-chan Event {
	ch := make(chan Event)
	go h.run(ctx, question, ch)
	return ch
}

func (h *Handle) run(ctx context.Context, question string, ch chan<- Event) {
	defer close(ch)

	messages := []framework.Message{
		{Role: "system", Content: h.systemPrompt},
		{Role: "user", Content: question},
	}
	options := &framework.LLMOptions{
		Model:       h.modelID,
		Temperature: h.temperature,
		MaxTokens:   h.maxTokens,
	}

	for iter := 0; iter < h.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			h.emit(ctx, ch, Event{Kind: EventError, Err: err})
			return
		}
		resp, err := h.model.ChatWithTools(ctx, messages, h.tools.All(), options)
		if err != nil {
			h.emit(ctx, ch, Event{Kind: EventError, Err: err})
			return
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Text != "" {
				h.emit(ctx, ch, Event{Kind: EventAnswerChunk, Text: resp.Text})
			}
			h.emit(ctx, ch, Event{Kind: EventAnswerDone})
			return
		}

		if resp.Text != "" {
			h.emit(ctx, ch, Event{Kind: EventThinking, Text: resp.Text})
		}

		calls := fillCallIDs(resp.ToolCalls)
		messages = append(messages, framework.Message{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: calls,
		})
		for _, call := range calls {
			h.emit(ctx, ch, Event{Kind: EventToolCall, Tool: call.Name})
			content, err := h.invokeTool(ctx, call)
			if err != nil {
				h.emit(ctx, ch, Event{Kind: EventError, Err: err})
				return
			}
			h.emit(ctx, ch, Event{Kind: EventToolResult, Tool: call.Name, Content: content})
			messages = append(messages, framework.Message{
				Role:       "tool",
				Name:       call.Name,
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	h.emit(ctx, ch, Event{
		Kind: EventError,
		Err:  fmt.Errorf("agent exceeded %d reasoning iterations without a final answer", h.maxIterations),
	})
}

// invokeTool dispatches one tool call. An unknown tool name is fed back to
// the model as a JSON error payload so the loop can recover; only a tool's
// own hard failure (a missing credential) ends the question.
func (h *Handle) invokeTool(ctx context.Context, call framework.ToolCall) (string, error) {
	tool, ok := h.tools.Get(call.Name)
	if !ok {
		if h.debug {
			log.Printf("[agent] model requested unknown tool %q", call.Name)
		}
		payload, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("unknown tool: %s", call.Name)})
		return string(payload), nil
	}
	return tool.Execute(ctx, call.Args)
}

// emit delivers an event unless the consumer has gone away. Selecting on the
// context keeps cancellation from leaking this goroutine mid-send.
func (h *Handle) emit(ctx context.Context, ch chan<- Event, ev Event) {
	ev.Timestamp = time.Now()
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// fillCallIDs assigns IDs to tool calls the provider returned without one,
// so the follow-up tool message can always reference its call.
func fillCallIDs(calls []framework.ToolCall) []framework.ToolCall {
	out := make([]framework.ToolCall, len(calls))
	copy(out, calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}
