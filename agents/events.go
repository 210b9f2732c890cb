package agents

import "time"

// EventKind categorizes events on the agent stream.
type EventKind string

const (
	// EventThinking is free text the model wrote before calling a tool.
	EventThinking EventKind = "thinking"
	// EventToolCall marks one named tool invocation.
	EventToolCall EventKind = "tool_call"
	// EventToolResult carries the raw content a tool returned.
	EventToolResult EventKind = "tool_result"
	// EventAnswerChunk is a fragment of the final answer.
	EventAnswerChunk EventKind = "answer_chunk"
	// EventAnswerDone marks the end of the answer.
	EventAnswerDone EventKind = "answer_done"
	// EventError ends the stream with a failure; no further events follow.
	EventError EventKind = "error"
)

// Event is the tagged union emitted by a Handle while answering one
// question. Consumers switch on Kind; unrecognized kinds must be ignored,
// never treated as fatal.
type Event struct {
	Kind      EventKind
	Text      string // thinking text or answer fragment
	Tool      string // tool name for call/result events
	Content   string // raw tool result
	Err       error  // set only for EventError
	Timestamp time.Time
}
