package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/foreman/internal/llm"
	"github.com/marcus/foreman/internal/logging"
	"github.com/marcus/foreman/internal/tasks"
	"github.com/marcus/foreman/internal/tools"
)

// allowCommitsOption is the task option that lets a commit-capable
// agent see the git_commit tool.
const allowCommitsOption = "allow_commits"

// Capabilities declares what an agent is allowed to do beyond the
// default tool set.
type Capabilities struct {
	CanCommit bool
}

// BaseAgent carries the shared bounded tool-calling loop. Role agents
// embed it and supply planning, prompts and validation.
type BaseAgent struct {
	role         tasks.Type
	caps         Capabilities
	systemPrompt string
	logger       *logging.Logger
}

func newBase(role tasks.Type, caps Capabilities, systemPrompt string) BaseAgent {
	return BaseAgent{
		role:         role,
		caps:         caps,
		systemPrompt: systemPrompt,
		logger:       logging.Component("agent." + string(role)),
	}
}

// Role returns the task type this agent handles.
func (b *BaseAgent) Role() tasks.Type {
	return b.role
}

// availableTools filters the registry down to what this agent may use
// for this task. The git_commit tool is included only when the agent
// can commit and the task explicitly enabled commits.
func (b *BaseAgent) availableTools(c *Context) []*tools.Tool {
	all := c.Tools.GetAll()
	out := make([]*tools.Tool, 0, len(all))
	for _, t := range all {
		if t.Name == "git_commit" && !(b.caps.CanCommit && c.Task.OptionBool(allowCommitsOption)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// runLoop drives the bounded tool-calling loop: up to maxIterations
// completions, each of which may request tool calls. A text-only
// response is the completion signal; exhausting the budget fails the
// result. Tool panics are recovered and recorded as failed tool uses,
// and the loop moves on.
func (b *BaseAgent) runLoop(ctx context.Context, c *Context, userPrompt string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	available := b.availableTools(c)
	byName := make(map[string]*tools.Tool, len(available))
	for _, t := range available {
		byName[t.Name] = t
	}
	defs := llm.Definitions(available)

	messages := []llm.Message{{Role: "user", Content: userPrompt}}
	maxIter := c.maxIterations()

	c.emit(Event{Type: EventStarted})

	for iteration := 1; iteration <= maxIter; iteration++ {
		result.Iterations = iteration
		c.emit(Event{Type: EventIterationStart, Iteration: iteration})

		resp, err := c.Client.Complete(ctx, llm.Request{
			System:   b.systemPrompt,
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("completion: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			// Text-only answer is the completion signal.
			result.Success = true
			result.Summary = resp.Content
			result.Duration = time.Since(start)
			c.emit(Event{Type: EventCompleted, Iteration: iteration})
			return result, nil
		}

		if resp.Content != "" {
			c.emit(Event{Type: EventThinking, Iteration: iteration, Message: resp.Content})
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		toolMsg := llm.Message{Role: "tool"}
		for _, call := range resp.ToolCalls {
			c.emit(Event{Type: EventToolCall, Iteration: iteration, Tool: call.Name})

			res := invokeTool(ctx, byName[call.Name], call)
			record := ToolUseRecord{
				Tool:   call.Name,
				Input:  call.Arguments,
				Result: res,
				Time:   time.Now(),
			}
			result.ToolUses = append(result.ToolUses, record)

			if change, ok := fileChangeFrom(res); ok {
				result.FileChanges = append(result.FileChanges, change)
			}

			content := res.Output
			if !res.Success {
				content = res.Error
				b.logger.WarnCtx("tool failed", map[string]any{
					"task": c.Task.ID, "tool": call.Name, "error": res.Error,
				})
			}
			toolMsg.ToolResults = append(toolMsg.ToolResults, llm.ToolResult{
				CallID:  call.ID,
				Content: content,
				IsError: !res.Success,
			})
			c.emit(Event{Type: EventToolResult, Iteration: iteration, Tool: call.Name})
		}
		messages = append(messages, toolMsg)
	}

	result.Success = false
	result.Error = fmt.Sprintf("max iterations (%d) reached", maxIter)
	result.Duration = time.Since(start)
	c.emit(Event{Type: EventFailed, Message: result.Error})
	return result, nil
}

// invokeTool runs one tool call, converting unavailable tools, nil
// results and panics into failed results.
func invokeTool(ctx context.Context, tool *tools.Tool, call llm.ToolCall) (res *tools.Result) {
	if tool == nil {
		return &tools.Result{Success: false, Error: fmt.Sprintf("tool not available: %s", call.Name)}
	}

	defer func() {
		if r := recover(); r != nil {
			res = &tools.Result{Success: false, Error: fmt.Sprintf("tool %s panicked: %v", call.Name, r)}
		}
	}()

	res = tool.Run(ctx, call.Arguments)
	if res == nil {
		res = &tools.Result{Success: false, Error: fmt.Sprintf("tool %s returned no result", call.Name)}
	}
	return res
}

// fileChangeFrom extracts a file change from tool result metadata.
// File-modifying tools report {"path": ..., "action": ...}.
func fileChangeFrom(res *tools.Result) (FileChange, bool) {
	if !res.Success || res.Metadata == nil {
		return FileChange{}, false
	}
	path, _ := res.Metadata["path"].(string)
	action, _ := res.Metadata["action"].(string)
	if path == "" || action == "" {
		return FileChange{}, false
	}
	switch action {
	case "created", "modified", "deleted":
	default:
		return FileChange{}, false
	}
	diff, _ := res.Metadata["diff"].(string)
	return FileChange{Path: path, Action: action, Diff: diff}, true
}

// taskPrompt renders the shared task header used by role prompts.
func taskPrompt(c *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task\nID: %s\nTitle: %s\nDescription: %s\n", c.Task.ID, c.Task.Title, c.Task.Description)
	if c.Task.Target != "" {
		fmt.Fprintf(&b, "Target: %s\n", c.Task.Target)
	}
	return b.String()
}
