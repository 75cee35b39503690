// Package tasks defines the task model and the in-memory task queue.
// The queue owns the canonical set of tasks, enforces the status state
// machine, and fans out change events to registered handlers.
package tasks

import (
	"time"
)

// Type selects the agent responsible for a task.
type Type string

const (
	TypeTest     Type = "test"
	TypeQA       Type = "qa"
	TypeFeature  Type = "feature"
	TypeRefactor Type = "refactor"
	TypeDocs     Type = "docs"
	TypeSecurity Type = "security"
)

// Types lists all known task types in a stable order.
func Types() []Type {
	return []Type{TypeTest, TypeQA, TypeFeature, TypeRefactor, TypeDocs, TypeSecurity}
}

// Valid reports whether t is a known task type.
func (t Type) Valid() bool {
	switch t {
	case TypeTest, TypeQA, TypeFeature, TypeRefactor, TypeDocs, TypeSecurity:
		return true
	}
	return false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending          Status = "pending"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusRunning          Status = "running"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
)

// Terminal reports whether s is a sink state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Priority orders tasks for selection.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Rank returns the sort rank of a priority; lower runs first.
// Unknown priorities rank after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Autonomy controls whether a task needs human approval before execution.
type Autonomy string

const (
	AutonomyFull       Autonomy = "full"
	AutonomySupervised Autonomy = "supervised"
	AutonomyManual     Autonomy = "manual"
)

// Metrics summarizes resource usage of a completed execution.
type Metrics struct {
	Duration      time.Duration `json:"duration"`
	Iterations    int           `json:"iterations"`
	ToolCalls     int           `json:"tool_calls"`
	FilesModified int           `json:"files_modified"`
}

// Result is the outcome of executing a task.
type Result struct {
	Success bool    `json:"success"`
	Summary string  `json:"summary"`
	Error   string  `json:"error,omitempty"`
	Metrics Metrics `json:"metrics"`
}

// DefaultMaxRetries is the retry budget assigned when none is given.
const DefaultMaxRetries = 3

// Task is a unit of work for an AI agent.
//
// Tasks are owned by the Queue; callers must mutate them only through
// Queue methods so events fire and state-machine invariants hold.
type Task struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Autonomy    Autonomy       `json:"autonomy"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Target      string         `json:"target,omitempty"`
	Options     map[string]any `json:"options,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Result       *Result  `json:"result,omitempty"`
	ChildTaskIDs []string `json:"child_task_ids,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Option returns a string option by key, or "" if absent.
func (t *Task) Option(key string) string {
	if t.Options == nil {
		return ""
	}
	s, _ := t.Options[key].(string)
	return s
}

// OptionBool returns a boolean option by key, or false if absent.
func (t *Task) OptionBool(key string) bool {
	if t.Options == nil {
		return false
	}
	b, _ := t.Options[key].(bool)
	return b
}

// CreateInput describes a task to be created.
type CreateInput struct {
	Type        Type           `json:"type"`
	Priority    Priority       `json:"priority"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Target      string         `json:"target,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
	MaxRetries  int            `json:"max_retries,omitempty"`
}

// transitions is the task status state machine. Terminal states have no
// outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:          {StatusAwaitingApproval, StatusRunning, StatusCancelled},
	StatusAwaitingApproval: {StatusRunning, StatusCancelled},
	StatusRunning:          {StatusCompleted, StatusFailed, StatusCancelled},
}

// canTransition reports whether from -> to is a legal status change.
func canTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
