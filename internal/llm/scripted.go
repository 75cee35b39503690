package llm

import (
	"context"
	"sync"
)

// ScriptedClient replays a fixed sequence of responses. Used by tests
// and by the CLI's dry-run mode, where no real provider is wired.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []Response
	calls     []Request
	index     int
}

// NewScriptedClient creates a client that returns the given responses
// in order, then repeats the final one.
func NewScriptedClient(responses ...Response) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Complete returns the next scripted response.
func (c *ScriptedClient) Complete(_ context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, req)

	if len(c.responses) == 0 {
		return &Response{Content: "done", StopReason: "end_turn"}, nil
	}
	resp := c.responses[c.index]
	if c.index < len(c.responses)-1 {
		c.index++
	}
	return &resp, nil
}

// Model returns the scripted model identifier.
func (c *ScriptedClient) Model() string {
	return "scripted"
}

// Calls returns the requests seen so far.
func (c *ScriptedClient) Calls() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Request, len(c.calls))
	copy(out, c.calls)
	return out
}
