package agents

import (
	"context"
	"fmt"

	"github.com/marcus/foreman/internal/tasks"
)

// specOption is the task option carrying the feature specification.
const specOption = "spec"

// FeatureAgent implements new behavior from a spec carried in the
// task options.
type FeatureAgent struct {
	BaseAgent
}

// NewFeatureAgent creates the feature implementation agent.
func NewFeatureAgent() *FeatureAgent {
	return &FeatureAgent{
		BaseAgent: newBase(tasks.TypeFeature, Capabilities{CanCommit: true}, `You are a feature implementation agent.
Implement the requested behavior with minimal, idiomatic changes. Keep
the test suite green. Reply with an implementation summary when done.`),
	}
}

// Plan proposes the implement-and-verify sequence. A task without a
// spec forces human approval: the agent would be guessing at intent.
func (a *FeatureAgent) Plan(_ context.Context, c *Context) (*Plan, error) {
	spec := c.Task.Option(specOption)

	steps := []Step{
		{ID: "survey", Description: "Read the code the feature touches", Tool: "read_file"},
		{ID: "implement", Description: "Make the code changes", Tool: "write_file", DependsOn: []string{"survey"}},
		{ID: "verify", Description: "Run the test suite", Tool: "run_tests", DependsOn: []string{"implement"}},
	}
	if c.Task.OptionBool(allowCommitsOption) {
		steps = append(steps, Step{ID: "commit", Description: "Commit the change", Tool: "git_commit", DependsOn: []string{"verify"}, Optional: true})
	}

	return &Plan{
		Steps:              steps,
		EstimatedToolCalls: 8,
		RequiresApproval:   spec == "",
		Risks:              []string{"modifies source files", "may add dependencies"},
	}, nil
}

func (a *FeatureAgent) Execute(ctx context.Context, c *Context) (*Result, error) {
	prompt := taskPrompt(c)
	if spec := c.Task.Option(specOption); spec != "" {
		prompt += fmt.Sprintf("\n## Specification\n%s\n", spec)
	}
	prompt += `
## Instructions
1. Survey the affected code before changing it.
2. Implement the smallest change that satisfies the request.
3. Run the test suite and fix regressions.
4. Reply with a summary of what changed when done.`
	return a.runLoop(ctx, c, prompt)
}

// Validate requires a successful feature run to have touched code.
func (a *FeatureAgent) Validate(r *Result) *Validation {
	v := &Validation{}
	if r.Success && len(r.FileChanges) == 0 {
		v.Issues = append(v.Issues, Issue{Severity: SeverityError, Message: "feature reported success without modifying any files"})
	}
	return v
}
