// Package approval enforces the human-in-the-loop checkpoint before a
// task below full autonomy may execute. The gate is two-tier: the
// task's autonomy level decides whether to ask, and the injected
// handler decides the answer when asked.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/foreman/internal/agents"
	"github.com/marcus/foreman/internal/logging"
	"github.com/marcus/foreman/internal/tasks"
)

// DefaultMaxAutoApprovals is the advisory auto-approval budget.
const DefaultMaxAutoApprovals = 10

// Decision is the outcome of an approval request.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Request is the ephemeral record of one pending human decision. It
// lives only for the duration of the handler call; a process restart
// mid-approval loses it and the request must be re-derived from the
// task's plan.
type Request struct {
	ID        string       `json:"id"`
	Task      *tasks.Task  `json:"task"`
	Plan      *agents.Plan `json:"plan"`
	Summary   string       `json:"summary"`
	Risks     []string     `json:"risks,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Handler decides an approval request. It may block on human input.
type Handler func(ctx context.Context, req *Request) (Decision, error)

// Gate brokers approval decisions and tracks the auto-approval count.
type Gate struct {
	mu               sync.Mutex
	handler          Handler
	pending          map[string]*Request
	autoApprovals    int
	maxAutoApprovals int
	logger           *logging.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithHandler sets the decision handler. Without one, every request
// that needs approval is rejected.
func WithHandler(h Handler) Option {
	return func(g *Gate) {
		g.handler = h
	}
}

// WithMaxAutoApprovals sets the advisory auto-approval budget.
func WithMaxAutoApprovals(n int) Option {
	return func(g *Gate) {
		g.maxAutoApprovals = n
	}
}

// NewGate creates an approval gate.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		pending:          make(map[string]*Request),
		maxAutoApprovals: DefaultMaxAutoApprovals,
		logger:           logging.Component("approval"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequiresApproval reports whether the task's plan needs human
// sign-off. The plan can force approval regardless of autonomy;
// otherwise full autonomy skips it and everything else, including
// unrecognized autonomy values, asks. Fail closed.
func (g *Gate) RequiresApproval(task *tasks.Task, plan *agents.Plan) bool {
	if plan != nil && plan.RequiresApproval {
		return true
	}
	switch task.Autonomy {
	case tasks.AutonomyFull:
		return false
	case tasks.AutonomySupervised, tasks.AutonomyManual:
		return true
	default:
		return true
	}
}

// RequestApproval resolves the approval decision for a task. Tasks
// that need no approval are auto-approved immediately without invoking
// the handler; otherwise the handler decides, and a missing handler
// rejects.
func (g *Gate) RequestApproval(ctx context.Context, task *tasks.Task, plan *agents.Plan) Decision {
	if !g.RequiresApproval(task, plan) {
		g.mu.Lock()
		g.autoApprovals++
		count := g.autoApprovals
		g.mu.Unlock()

		g.logger.DebugCtx("auto-approved", map[string]any{"task": task.ID, "count": count})
		return Decision{Approved: true, Reason: "Auto-approved based on autonomy level"}
	}

	req := &Request{
		ID:        uuid.NewString(),
		Task:      task,
		Plan:      plan,
		Summary:   buildSummary(task, plan),
		CreatedAt: time.Now(),
	}
	if plan != nil {
		req.Risks = plan.Risks
	}

	g.mu.Lock()
	handler := g.handler
	g.pending[req.ID] = req
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, req.ID)
		g.mu.Unlock()
	}()

	if handler == nil {
		g.logger.WarnCtx("no approval handler configured", map[string]any{"task": task.ID})
		return Decision{Approved: false, Reason: "No approval handler configured"}
	}

	decision, err := handler(ctx, req)
	if err != nil {
		g.logger.ErrorCtx("approval handler failed", map[string]any{"task": task.ID, "error": err.Error()})
		return Decision{Approved: false, Reason: fmt.Sprintf("approval handler failed: %v", err)}
	}
	return decision
}

// AutoApprovals returns the number of auto-approvals granted.
func (g *Gate) AutoApprovals() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoApprovals
}

// ResetAutoApprovals zeroes the auto-approval counter.
func (g *Gate) ResetAutoApprovals() {
	g.mu.Lock()
	g.autoApprovals = 0
	g.mu.Unlock()
}

// ShouldAutoApprove reports whether the advisory budget still has
// room. The gate itself never enforces this; callers compose it with
// RequiresApproval when they want a hard cap.
func (g *Gate) ShouldAutoApprove() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoApprovals < g.maxAutoApprovals
}

// PendingCount returns the number of requests awaiting a decision.
func (g *Gate) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// buildSummary renders the human-readable approval summary.
func buildSummary(task *tasks.Task, plan *agents.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s [%s]: %s\n", task.ID, task.Type, task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "%s\n", task.Description)
	}
	if plan == nil {
		return b.String()
	}

	fmt.Fprintf(&b, "\nPlan (%d steps, ~%d tool calls):\n", len(plan.Steps), plan.EstimatedToolCalls)
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "  %d. %s", i+1, step.Description)
		if step.Tool != "" {
			fmt.Fprintf(&b, " [%s]", step.Tool)
		}
		b.WriteString("\n")
	}
	if len(plan.Risks) > 0 {
		b.WriteString("\nRisks:\n")
		for _, risk := range plan.Risks {
			fmt.Fprintf(&b, "  - %s\n", risk)
		}
	}
	return b.String()
}
