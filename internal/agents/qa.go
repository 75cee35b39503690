package agents

import (
	"context"

	"github.com/marcus/foreman/internal/tasks"
)

// QAAgent runs the existing quality gates (tests, lint) and reports
// findings without changing code.
type QAAgent struct {
	BaseAgent
}

// NewQAAgent creates the QA sweep agent.
func NewQAAgent() *QAAgent {
	return &QAAgent{
		BaseAgent: newBase(tasks.TypeQA, Capabilities{}, `You are a QA agent.
Run the project's tests and checks, inspect failures, and report what you
find. You do not fix code; you diagnose. Reply with a findings summary
when the sweep is complete.`),
	}
}

func (a *QAAgent) Plan(_ context.Context, c *Context) (*Plan, error) {
	return &Plan{
		Steps: []Step{
			{ID: "tests", Description: "Run the full test suite", Tool: "run_tests"},
			{ID: "status", Description: "Check the working tree for stray changes", Tool: "git_status", DependsOn: []string{"tests"}},
			{ID: "report", Description: "Summarize failures and suspicious findings", DependsOn: []string{"tests", "status"}},
		},
		EstimatedToolCalls: 4,
	}, nil
}

func (a *QAAgent) Execute(ctx context.Context, c *Context) (*Result, error) {
	prompt := taskPrompt(c) + `
## Instructions
1. Run the test suite; on failures, read the failing code to diagnose.
2. Check git status for unexpected working-tree changes.
3. Do not modify any files.
4. Reply with a findings report when done.`
	return a.runLoop(ctx, c, prompt)
}

// Validate warns when a QA sweep modified files or did nothing at all.
func (a *QAAgent) Validate(r *Result) *Validation {
	v := &Validation{}
	if len(r.FileChanges) > 0 {
		v.Issues = append(v.Issues, Issue{Severity: SeverityError, Message: "QA sweep modified files; it must be read-only"})
	}
	if r.Success && len(r.ToolUses) == 0 {
		v.Issues = append(v.Issues, Issue{Severity: SeverityWarning, Message: "sweep completed without running any checks"})
	}
	return v
}
