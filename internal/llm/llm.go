// Package llm defines the completion-client capability agents consume.
// A client receives a system prompt, conversation history and tool
// definitions, and answers with either text or tool-call requests.
package llm

import (
	"context"

	"github.com/marcus/foreman/internal/tools"
)

// CompletionClient is any LLM provider.
type CompletionClient interface {
	// Complete sends a request and returns the model's response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Model returns the model identifier.
	Model() string
}

// Request contains all parameters for a completion.
type Request struct {
	System    string           `json:"system,omitempty"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// Message is one turn of the conversation.
type Message struct {
	Role        string       `json:"role"` // user, assistant, tool
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolDefinition describes a callable tool for the model.
type ToolDefinition struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Schema      tools.Schema `json:"input_schema"`
}

// ToolCall is the model's request to execute a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult reports a tool execution back to the model.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Response is the model's answer: text, tool calls, or both.
type Response struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason,omitempty"`
	Usage      Usage      `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Definitions builds tool definitions from a tool list.
func Definitions(ts []*tools.Tool) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(ts))
	for _, t := range ts {
		defs = append(defs, ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Schema:      t.Schema,
		})
	}
	return defs
}
