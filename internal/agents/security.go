package agents

import (
	"context"

	"github.com/marcus/foreman/internal/tasks"
)

// SecurityAgent audits code for vulnerabilities. Its plans always
// force human approval: audit output can expose sensitive paths.
type SecurityAgent struct {
	BaseAgent
}

// NewSecurityAgent creates the security audit agent.
func NewSecurityAgent() *SecurityAgent {
	return &SecurityAgent{
		BaseAgent: newBase(tasks.TypeSecurity, Capabilities{}, `You are a security audit agent.
Search the code for injection risks, secret leakage, unsafe file and
process handling, and missing input validation. You do not fix code;
you report. Reply with a findings report when the audit is complete.`),
	}
}

func (a *SecurityAgent) Plan(_ context.Context, c *Context) (*Plan, error) {
	return &Plan{
		Steps: []Step{
			{ID: "scan", Description: "Search for dangerous patterns (exec, eval, raw SQL, secrets)", Tool: "search_code"},
			{ID: "inspect", Description: "Read flagged files and confirm findings", Tool: "read_file", DependsOn: []string{"scan"}},
			{ID: "report", Description: "Write the findings report", DependsOn: []string{"inspect"}},
		},
		EstimatedToolCalls: 6,
		RequiresApproval:   true,
		Risks:              []string{"findings may reference sensitive code paths"},
	}, nil
}

func (a *SecurityAgent) Execute(ctx context.Context, c *Context) (*Result, error) {
	prompt := taskPrompt(c) + `
## Instructions
1. Search for risky patterns: command execution, SQL strings, secrets.
2. Read each hit and decide whether it is a real finding.
3. Do not modify any files.
4. Reply with a findings report, one finding per line, when done.`
	return a.runLoop(ctx, c, prompt)
}

func (a *SecurityAgent) Validate(r *Result) *Validation {
	v := &Validation{}
	if len(r.FileChanges) > 0 {
		v.Issues = append(v.Issues, Issue{Severity: SeverityError, Message: "security audit modified files; it must be read-only"})
	}
	if r.Success && r.Summary == "" {
		v.Issues = append(v.Issues, Issue{Severity: SeverityWarning, Message: "audit completed without a findings report"})
	}
	return v
}
