package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marcus/foreman/internal/tools"
)

func TestOpenAICompleteText(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "hello"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	resp, err := c.Complete(context.Background(), Request{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Content != "hello" || resp.StopReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}

	messages := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %v", messages)
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be brief" {
		t.Errorf("system message = %v", first)
	}
}

func TestOpenAICompleteToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		wireTools := body["tools"].([]any)
		if len(wireTools) != 1 {
			t.Errorf("tools = %v", wireTools)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "read_file",
							"arguments": `{"path":"go.mod"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	resp, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "read the module file"}},
		Tools: Definitions([]*tools.Tool{{
			Name:        "read_file",
			Description: "read a file",
			Schema:      tools.Schema{Type: "object"},
		}}),
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "read_file" {
		t.Errorf("call = %+v", call)
	}
	if call.Arguments["path"] != "go.mod" {
		t.Errorf("arguments = %v", call.Arguments)
	}
}

func TestOpenAICompleteSendsToolResults(t *testing.T) {
	var messages []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []map[string]any `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		messages = body.Messages

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "done"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: "user", Content: "go"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_1", Name: "read_file"}}},
			{Role: "tool", ToolResults: []ToolResult{{CallID: "call_1", Content: "module foreman"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(messages) != 3 {
		t.Fatalf("messages = %v", messages)
	}
	last := messages[2]
	if last["role"] != "tool" || last["tool_call_id"] != "call_1" || last["content"] != "module foreman" {
		t.Errorf("tool message = %v", last)
	}
}

func TestOpenAICompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
