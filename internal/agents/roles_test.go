package agents

import (
	"context"
	"testing"

	"github.com/marcus/foreman/internal/tasks"
)

func hasIssue(v *Validation, severity Severity, substr string) bool {
	for _, issue := range v.Issues {
		if issue.Severity == severity && issue.Message == substr {
			return true
		}
	}
	return false
}

func TestTestAgentValidate(t *testing.T) {
	agent := NewTestAgent()

	tests := []struct {
		name       string
		result     *Result
		wantErrors int
		wantWarns  int
	}{
		{
			name: "wrote and ran tests",
			result: &Result{
				Success:     true,
				FileChanges: []FileChange{{Path: "pkg/a_test.go", Action: "created"}},
				ToolUses:    []ToolUseRecord{{Tool: "run_tests"}},
			},
		},
		{
			name:       "no test files",
			result:     &Result{Success: true, ToolUses: []ToolUseRecord{{Tool: "run_tests"}}},
			wantErrors: 1,
		},
		{
			name: "never ran the suite",
			result: &Result{
				Success:     true,
				FileChanges: []FileChange{{Path: "pkg/a_test.go", Action: "modified"}},
			},
			wantWarns: 1,
		},
		{
			name:   "failed runs are not validated",
			result: &Result{Success: false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := agent.Validate(tt.result)
			var errs, warns int
			for _, issue := range v.Issues {
				switch issue.Severity {
				case SeverityError:
					errs++
				case SeverityWarning:
					warns++
				}
			}
			if errs != tt.wantErrors || warns != tt.wantWarns {
				t.Errorf("issues = %+v", v.Issues)
			}
		})
	}
}

func TestFeatureAgentPlanApproval(t *testing.T) {
	agent := NewFeatureAgent()

	c := testContext(t, nil)
	c.Task.Type = tasks.TypeFeature

	plan, err := agent.Plan(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !plan.RequiresApproval {
		t.Error("spec-less feature must require approval")
	}
	if len(plan.Steps) != 3 {
		t.Errorf("steps = %d, want 3", len(plan.Steps))
	}

	c.Task.Options = map[string]any{"spec": "add a --json flag", "allow_commits": true}
	plan, err = agent.Plan(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if plan.RequiresApproval {
		t.Error("specced feature should not force approval")
	}
	last := plan.Steps[len(plan.Steps)-1]
	if last.Tool != "git_commit" || !last.Optional {
		t.Errorf("commit step = %+v", last)
	}
}

func TestFeatureAgentValidate(t *testing.T) {
	agent := NewFeatureAgent()

	v := agent.Validate(&Result{Success: true})
	if !hasIssue(v, SeverityError, "feature reported success without modifying any files") {
		t.Errorf("issues = %+v", v.Issues)
	}

	v = agent.Validate(&Result{
		Success:     true,
		FileChanges: []FileChange{{Path: "client.go", Action: "modified"}},
	})
	if len(v.Issues) != 0 {
		t.Errorf("issues = %+v", v.Issues)
	}

	v = agent.Validate(&Result{Success: false})
	if len(v.Issues) != 0 {
		t.Error("failed runs are not validated")
	}
}

func TestTestAgentPlanTargetsRepository(t *testing.T) {
	agent := NewTestAgent()
	c := testContext(t, nil)

	plan, err := agent.Plan(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("steps = %d", len(plan.Steps))
	}
	if plan.Steps[1].DependsOn[0] != "analyze" || plan.Steps[2].DependsOn[0] != "write" {
		t.Errorf("step dependencies = %+v", plan.Steps)
	}
}
