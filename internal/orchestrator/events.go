package orchestrator

import (
	"github.com/marcus/foreman/internal/agents"
	"github.com/marcus/foreman/internal/tasks"
)

// Notifier receives orchestrator lifecycle notifications. Delivery is
// synchronous, in subscription order.
type Notifier interface {
	TaskStarted(t *tasks.Task)
	TaskCompleted(t *tasks.Task, r *agents.Result)
	TaskFailed(t *tasks.Task, err error)
	ApprovalRequired(t *tasks.Task)
	AgentEvent(e agents.Event)
}

// NotifierFuncs adapts optional callbacks to the Notifier interface.
// Nil fields are skipped.
type NotifierFuncs struct {
	OnTaskStarted      func(t *tasks.Task)
	OnTaskCompleted    func(t *tasks.Task, r *agents.Result)
	OnTaskFailed       func(t *tasks.Task, err error)
	OnApprovalRequired func(t *tasks.Task)
	OnAgentEvent       func(e agents.Event)
}

func (n NotifierFuncs) TaskStarted(t *tasks.Task) {
	if n.OnTaskStarted != nil {
		n.OnTaskStarted(t)
	}
}

func (n NotifierFuncs) TaskCompleted(t *tasks.Task, r *agents.Result) {
	if n.OnTaskCompleted != nil {
		n.OnTaskCompleted(t, r)
	}
}

func (n NotifierFuncs) TaskFailed(t *tasks.Task, err error) {
	if n.OnTaskFailed != nil {
		n.OnTaskFailed(t, err)
	}
}

func (n NotifierFuncs) ApprovalRequired(t *tasks.Task) {
	if n.OnApprovalRequired != nil {
		n.OnApprovalRequired(t)
	}
}

func (n NotifierFuncs) AgentEvent(e agents.Event) {
	if n.OnAgentEvent != nil {
		n.OnAgentEvent(e)
	}
}
