package agents

import (
	"context"

	"github.com/marcus/foreman/internal/tasks"
)

// RefactorAgent restructures code without changing behavior.
type RefactorAgent struct {
	BaseAgent
}

// NewRefactorAgent creates the refactoring agent.
func NewRefactorAgent() *RefactorAgent {
	return &RefactorAgent{
		BaseAgent: newBase(tasks.TypeRefactor, Capabilities{CanCommit: true}, `You are a refactoring agent.
Restructure the target code for clarity without changing observable
behavior. The test suite must pass before and after. Reply with a
summary of the restructuring when done.`),
	}
}

func (a *RefactorAgent) Plan(_ context.Context, c *Context) (*Plan, error) {
	return &Plan{
		Steps: []Step{
			{ID: "baseline", Description: "Run the suite to establish a green baseline", Tool: "run_tests"},
			{ID: "restructure", Description: "Apply the refactoring", Tool: "write_file", DependsOn: []string{"baseline"}},
			{ID: "verify", Description: "Run the suite again; behavior must be unchanged", Tool: "run_tests", DependsOn: []string{"restructure"}},
		},
		EstimatedToolCalls: 8,
		Risks:              []string{"touches many files", "behavior regressions if tests are thin"},
	}, nil
}

func (a *RefactorAgent) Execute(ctx context.Context, c *Context) (*Result, error) {
	prompt := taskPrompt(c) + `
## Instructions
1. Run the suite first; do not refactor on a red baseline.
2. Restructure in small steps, re-running tests as you go.
3. Keep public APIs stable unless the task says otherwise.
4. Reply with a summary when done.`
	return a.runLoop(ctx, c, prompt)
}

// Validate warns when the suite was not re-run after edits.
func (a *RefactorAgent) Validate(r *Result) *Validation {
	v := &Validation{}
	if !r.Success || len(r.FileChanges) == 0 {
		return v
	}

	// The last run_tests must come after the last file change.
	lastChange, lastRun := -1, -1
	for i, use := range r.ToolUses {
		switch use.Tool {
		case "write_file":
			lastChange = i
		case "run_tests":
			lastRun = i
		}
	}
	if lastRun < lastChange {
		v.Issues = append(v.Issues, Issue{Severity: SeverityWarning, Message: "files changed after the last test run"})
		v.Suggestions = append(v.Suggestions, "re-run the suite after the final edit")
	}
	return v
}
