package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcus/foreman/internal/tasks"
)

// TestAgent writes and runs tests for a target package or file.
type TestAgent struct {
	BaseAgent
}

// NewTestAgent creates the test-writing agent.
func NewTestAgent() *TestAgent {
	return &TestAgent{
		BaseAgent: newBase(tasks.TypeTest, Capabilities{}, `You are a test engineering agent.
You write focused, table-driven Go tests for the code you are pointed at.
Use the provided tools to read code, write test files and run the suite.
When the suite passes and coverage of the target is reasonable, reply with
a plain-text summary of what you tested and stop calling tools.`),
	}
}

// Plan proposes the standard analyze-write-run sequence.
func (a *TestAgent) Plan(_ context.Context, c *Context) (*Plan, error) {
	target := c.Task.Target
	if target == "" {
		target = "the repository"
	}
	return &Plan{
		Steps: []Step{
			{ID: "analyze", Description: fmt.Sprintf("Read %s and identify untested paths", target), Tool: "read_file"},
			{ID: "write", Description: "Write or extend _test.go files", Tool: "write_file", DependsOn: []string{"analyze"}},
			{ID: "run", Description: "Run the test suite and fix failures", Tool: "run_tests", DependsOn: []string{"write"}},
		},
		EstimatedToolCalls: 6,
		Risks:              []string{"creates or modifies test files"},
	}, nil
}

// Execute runs the shared loop with the test prompt.
func (a *TestAgent) Execute(ctx context.Context, c *Context) (*Result, error) {
	prompt := taskPrompt(c) + `
## Instructions
1. Read the target code before writing anything.
2. Write table-driven tests alongside the code they cover.
3. Run the suite with run_tests and iterate until green.
4. Reply with a summary when done.`
	return a.runLoop(ctx, c, prompt)
}

// Validate flags test runs that touched no test files or never ran the
// suite.
func (a *TestAgent) Validate(r *Result) *Validation {
	v := &Validation{}
	if !r.Success {
		return v
	}

	wroteTests := false
	for _, fc := range r.FileChanges {
		if strings.HasSuffix(fc.Path, "_test.go") {
			wroteTests = true
			break
		}
	}
	if !wroteTests {
		v.Issues = append(v.Issues, Issue{Severity: SeverityError, Message: "no test files were created or modified"})
	}

	ranSuite := false
	for _, use := range r.ToolUses {
		if use.Tool == "run_tests" {
			ranSuite = true
			break
		}
	}
	if !ranSuite {
		v.Issues = append(v.Issues, Issue{Severity: SeverityWarning, Message: "test suite was never executed"})
		v.Suggestions = append(v.Suggestions, "run the suite before reporting success")
	}
	return v
}
