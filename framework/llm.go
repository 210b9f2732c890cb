package framework

import "context"

// LLMOptions represents options for LLM calls.
type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stop        []string
	TopP        float64
}

// ToolCall is a request from the model to invoke one tool with decoded
// arguments.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// LLMResponse represents a response from an LLM.
type LLMResponse struct {
	Text         string
	FinishReason string
	Usage        map[string]int
	ToolCalls    []ToolCall
}

// Message represents a chat message. Tool result messages carry the name of
// the tool and the ID of the call they answer.
type Message struct {
	Role       string
	Content    string
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
}

// LanguageModel is the interface for LLM interactions. Implementations are
// provider clients; callers pass nil options to accept the client defaults.
type LanguageModel interface {
	Chat(ctx context.Context, messages []Message, options *LLMOptions) (*LLMResponse, error)
	ChatWithTools(ctx context.Context, messages []Message, tools []Tool, options *LLMOptions) (*LLMResponse, error)
}
