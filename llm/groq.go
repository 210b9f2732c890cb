package llm

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lexcodex/delver/framework"
)

// DefaultEndpoint is the Groq OpenAI-compatible API base URL.
const DefaultEndpoint = "https://api.groq.com/openai/v1"

// GroqClient implements framework.LanguageModel against the Groq chat
// completions endpoint.
type GroqClient struct {
	Model string
	Debug bool

	http *resty.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type toolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type toolDef struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type wireToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewGroqClient builds a chat client bound to one model identifier.
func NewGroqClient(endpoint, apiKey, model string) *GroqClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(endpoint, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(3 * time.Minute)
	return &GroqClient{Model: model, http: http}
}

// Chat implements chat style conversation.
func (c *GroqClient) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	req := chatRequest{
		Model:    c.model(options),
		Messages: convertMessages(messages),
	}
	applyOptions(&req, options)
	return c.doRequest(ctx, req)
}

// ChatWithTools handles tool calling metadata.
func (c *GroqClient) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	req := chatRequest{
		Model:    c.model(options),
		Messages: convertMessages(messages),
		Tools:    convertTools(tools),
	}
	applyOptions(&req, options)
	return c.doRequest(ctx, req)
}

// SetDebugLogging enables or disables verbose logging for requests/responses.
func (c *GroqClient) SetDebugLogging(enabled bool) {
	c.Debug = enabled
}

func (c *GroqClient) model(options *framework.LLMOptions) string {
	if options != nil && options.Model != "" {
		return options.Model
	}
	return c.Model
}

func applyOptions(req *chatRequest, options *framework.LLMOptions) {
	if options == nil {
		return
	}
	// Zero is a meaningful temperature, so it always goes on the wire.
	temp := options.Temperature
	req.Temperature = &temp
	if options.MaxTokens != 0 {
		req.MaxTokens = options.MaxTokens
	}
	if options.Stop != nil {
		req.Stop = options.Stop
	}
	if options.TopP != 0 {
		req.TopP = options.TopP
	}
}

func (c *GroqClient) doRequest(ctx context.Context, payload chatRequest) (*framework.LLMResponse, error) {
	c.logPayload(payload)
	var out chatResponse
	var apiErr apiErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		return nil, &framework.APIError{Provider: "groq", StatusCode: resp.StatusCode(), Message: msg}
	}
	c.logResponse(resp.Body())
	return decodeLLMResponse(&out)
}

func convertMessages(messages []framework.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		m := chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			wire := wireToolCall{ID: call.ID, Type: "function"}
			wire.Function.Name = call.Name
			args := call.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			encoded, err := json.Marshal(args)
			if err != nil {
				encoded = []byte("{}")
			}
			wire.Function.Arguments = string(encoded)
			m.ToolCalls = append(m.ToolCalls, wire)
		}
		out = append(out, m)
	}
	return out
}

func convertTools(tools []framework.Tool) []toolDef {
	res := make([]toolDef, 0, len(tools))
	for _, tool := range tools {
		props := make(map[string]interface{})
		var required []string
		for _, param := range tool.Parameters() {
			prop := map[string]interface{}{
				"type":        param.Type,
				"description": param.Description,
			}
			if param.Default != nil {
				prop["default"] = param.Default
			}
			props[param.Name] = prop
			if param.Required {
				required = append(required, param.Name)
			}
		}
		parameters := map[string]interface{}{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			parameters["required"] = required
		}
		res = append(res, toolDef{
			Type: "function",
			Function: toolFunction{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  parameters,
			},
		})
	}
	return res
}

func decodeLLMResponse(raw *chatResponse) (*framework.LLMResponse, error) {
	resp := &framework.LLMResponse{}
	if len(raw.Choices) == 0 {
		return resp, nil
	}
	choice := raw.Choices[0]
	resp.Text = choice.Message.Content
	resp.FinishReason = choice.FinishReason
	resp.ToolCalls = parseToolCalls(choice.Message.ToolCalls)
	usage := make(map[string]int)
	if raw.Usage.PromptTokens > 0 {
		usage["prompt_tokens"] = raw.Usage.PromptTokens
	}
	if raw.Usage.CompletionTokens > 0 {
		usage["completion_tokens"] = raw.Usage.CompletionTokens
	}
	if len(usage) > 0 {
		resp.Usage = usage
	}
	return resp, nil
}

func parseToolCalls(calls []wireToolCall) []framework.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	results := make([]framework.ToolCall, 0, len(calls))
	for _, call := range calls {
		results = append(results, framework.ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: parseArguments(call.Function.Arguments),
		})
	}
	return results
}

// parseArguments decodes the stringly-typed arguments blob the API returns.
func parseArguments(raw string) map[string]interface{} {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj
	}
	return map[string]interface{}{"_raw": raw}
}

func (c *GroqClient) logPayload(payload chatRequest) {
	if !c.Debug {
		return
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return
	}
	log.Printf("[groq] request payload: %s", truncate(string(encoded), 2048))
}

func (c *GroqClient) logResponse(body []byte) {
	if !c.Debug {
		return
	}
	log.Printf("[groq] response payload: %s", truncate(string(body), 2048))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
