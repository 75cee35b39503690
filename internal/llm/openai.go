package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcus/foreman/internal/tools"
)

// OpenAIClient talks to an OpenAI-compatible chat completions API.
// Works against any provider exposing the /chat/completions shape.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.client = hc }
}

// NewOpenAIClient creates a client for the given model.
func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		baseURL: "https://api.openai.com/v1",
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string       `json:"name"`
		Description string       `json:"description"`
		Parameters  tools.Schema `json:"parameters"`
	} `json:"function"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []chatTool    `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
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

// Complete sends the request and maps the first choice back to the
// provider-neutral response shape.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	payload := chatRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, convertMessage(m)...)
	}
	for _, t := range req.Tools {
		var ct chatTool
		ct.Type = "function"
		ct.Function.Name = t.Name
		ct.Function.Description = t.Description
		ct.Function.Parameters = t.Schema
		payload.Tools = append(payload.Tools, ct)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("completion request: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	choice := out.Choices[0]
	result := &Response{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.PromptTokens + out.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		call := ToolCall{ID: tc.ID, Name: tc.Function.Name}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments); err != nil {
				return nil, fmt.Errorf("decoding tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, call)
	}
	return result, nil
}

// convertMessage flattens a provider-neutral message into the chat
// wire shape. Tool results become separate tool-role messages.
func convertMessage(m Message) []chatMessage {
	out := []chatMessage{}

	msg := chatMessage{Role: m.Role, Content: m.Content}
	for _, tc := range m.ToolCalls {
		wire := chatToolCall{ID: tc.ID, Type: "function"}
		wire.Function.Name = tc.Name
		args, _ := json.Marshal(tc.Arguments)
		wire.Function.Arguments = string(args)
		msg.ToolCalls = append(msg.ToolCalls, wire)
	}
	if msg.Content != "" || len(msg.ToolCalls) > 0 {
		out = append(out, msg)
	}

	for _, tr := range m.ToolResults {
		out = append(out, chatMessage{
			Role:       "tool",
			Content:    tr.Content,
			ToolCallID: tr.CallID,
		})
	}
	return out
}
