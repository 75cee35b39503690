// Package agents provides the role-specific policies that plan,
// execute and validate tasks. All roles share one bounded tool-calling
// loop; they differ in planning, prompts and result validation.
package agents

import (
	"context"
	"errors"
	"time"

	"github.com/marcus/foreman/internal/llm"
	"github.com/marcus/foreman/internal/tasks"
	"github.com/marcus/foreman/internal/tools"
)

// DefaultMaxIterations bounds the agent loop when the context does not
// supply a limit.
const DefaultMaxIterations = 10

// ErrAgentNotFound is returned when no agent handles a task type.
var ErrAgentNotFound = errors.New("no agent for role")

// Agent is a role-specific task execution policy.
type Agent interface {
	// Role returns the task type this agent handles.
	Role() tasks.Type

	// Plan builds an execution plan without side effects.
	Plan(ctx context.Context, c *Context) (*Plan, error)

	// Execute runs the bounded tool-calling loop for the task.
	Execute(ctx context.Context, c *Context) (*Result, error)

	// Validate self-checks an execution result. Issues are surfaced
	// to the caller; they never flip the result's success flag.
	Validate(r *Result) *Validation
}

// Context carries everything an agent needs for one task.
type Context struct {
	Task          *tasks.Task
	WorkDir       string
	MaxIterations int
	Client        llm.CompletionClient
	Tools         *tools.Registry
	Emit          func(Event) // optional event sink
}

func (c *Context) emit(e Event) {
	if c.Emit != nil {
		e.Time = time.Now()
		e.TaskID = c.Task.ID
		c.Emit(e)
	}
}

func (c *Context) maxIterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return DefaultMaxIterations
}

// EventType classifies agent execution events.
type EventType string

const (
	EventStarted          EventType = "started"
	EventIterationStart   EventType = "iteration_start"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventThinking         EventType = "thinking"
	EventAwaitingApproval EventType = "awaiting_approval"
	EventApproved         EventType = "approved"
	EventRejected         EventType = "rejected"
	EventCompleted        EventType = "completed"
	EventFailed           EventType = "failed"
)

// Event is a fine-grained agent execution event.
type Event struct {
	Type      EventType
	TaskID    string
	Time      time.Time
	Iteration int
	Tool      string
	Message   string
}

// Step is one ordered unit of an execution plan.
type Step struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Tool        string   `json:"tool,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
}

// Plan is the agent's pre-execution proposal: ordered steps plus the
// risks it discloses to the approval gate.
type Plan struct {
	Steps              []Step   `json:"steps"`
	EstimatedToolCalls int      `json:"estimated_tool_calls"`
	RequiresApproval   bool     `json:"requires_approval,omitempty"` // forces approval regardless of autonomy
	Risks              []string `json:"risks,omitempty"`
}

// ToolUseRecord captures one tool invocation during execution.
type ToolUseRecord struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input"`
	Result *tools.Result  `json:"result"`
	Time   time.Time      `json:"time"`
}

// FileChange records a file touched by a file-modifying tool.
type FileChange struct {
	Path   string `json:"path"`
	Action string `json:"action"` // created, modified, deleted
	Diff   string `json:"diff,omitempty"`
}

// Result is the outcome of an agent execution.
type Result struct {
	Success     bool            `json:"success"`
	Summary     string          `json:"summary"`
	Error       string          `json:"error,omitempty"`
	Iterations  int             `json:"iterations"`
	ToolUses    []ToolUseRecord `json:"tool_uses,omitempty"`
	FileChanges []FileChange    `json:"file_changes,omitempty"`
	Duration    time.Duration   `json:"duration"`
	Validation  *Validation     `json:"validation,omitempty"`
}

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Validation is the agent's self-check of its own result.
type Validation struct {
	Issues      []Issue  `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// HasErrors reports whether any issue is error severity.
func (v *Validation) HasErrors() bool {
	for _, i := range v.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Set maps task types to their agents: closed, compile-time dispatch.
type Set map[tasks.Type]Agent

// DefaultSet returns the full agent roster.
func DefaultSet() Set {
	return Set{
		tasks.TypeTest:     NewTestAgent(),
		tasks.TypeQA:       NewQAAgent(),
		tasks.TypeFeature:  NewFeatureAgent(),
		tasks.TypeRefactor: NewRefactorAgent(),
		tasks.TypeDocs:     NewDocsAgent(),
		tasks.TypeSecurity: NewSecurityAgent(),
	}
}

// ForRole resolves the agent for a task type.
func (s Set) ForRole(t tasks.Type) (Agent, error) {
	a, ok := s[t]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return a, nil
}
