// Package ui renders terminal output for foreman commands. Uses
// lipgloss for styled task lists, run summaries and approval prompts.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/foreman/internal/agents"
	"github.com/marcus/foreman/internal/tasks"
)

// Styles holds lipgloss styles shared by the renderers.
type Styles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	Highlight lipgloss.Style

	StatusOK      lipgloss.Style
	StatusWarn    lipgloss.Style
	StatusError   lipgloss.Style
	StatusRunning lipgloss.Style

	Border lipgloss.Style
}

// NewStyles creates the default style set.
func NewStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#58a6ff"}

	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333", Dark: "#ccc"}),

		Label: lipgloss.NewStyle().
			Foreground(subtle),

		Value: lipgloss.NewStyle().
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(subtle),

		Highlight: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		StatusOK: lipgloss.NewStyle().
			Foreground(green).
			Bold(true),

		StatusWarn: lipgloss.NewStyle().
			Foreground(yellow).
			Bold(true),

		StatusError: lipgloss.NewStyle().
			Foreground(red).
			Bold(true),

		StatusRunning: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1),
	}
}

// Renderer produces styled output for the CLI.
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a renderer with the default styles.
func NewRenderer() *Renderer {
	return &Renderer{styles: NewStyles()}
}

// statusStyle maps a task status to its display style.
func (r *Renderer) statusStyle(status tasks.Status) lipgloss.Style {
	switch status {
	case tasks.StatusCompleted:
		return r.styles.StatusOK
	case tasks.StatusFailed, tasks.StatusCancelled:
		return r.styles.StatusError
	case tasks.StatusRunning:
		return r.styles.StatusRunning
	case tasks.StatusAwaitingApproval:
		return r.styles.StatusWarn
	default:
		return r.styles.Muted
	}
}

// TaskList renders a table of tasks ordered by creation time, newest
// first.
func (r *Renderer) TaskList(list []*tasks.Task) string {
	if len(list) == 0 {
		return r.styles.Muted.Render("No tasks") + "\n"
	}

	sorted := make([]*tasks.Task, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var b strings.Builder
	b.WriteString(r.styles.Header.Render(fmt.Sprintf("%-24s %-10s %-10s %-18s %s",
		"ID", "TYPE", "PRIORITY", "STATUS", "TITLE")))
	b.WriteString("\n")

	for _, t := range sorted {
		status := r.statusStyle(t.Status).Render(fmt.Sprintf("%-18s", t.Status))
		b.WriteString(fmt.Sprintf("%-24s %-10s %-10s %s %s\n",
			t.ID, t.Type, t.Priority, status, truncate(t.Title, 48)))
	}
	return b.String()
}

// TaskDetail renders a single task with its result, if any.
func (r *Renderer) TaskDetail(t *tasks.Task) string {
	var b strings.Builder

	b.WriteString(r.styles.Title.Render(t.Title))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(r.styles.Label.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("ID", t.ID)
	row("Type", string(t.Type))
	row("Priority", string(t.Priority))
	row("Autonomy", string(t.Autonomy))
	row("Status", r.statusStyle(t.Status).Render(string(t.Status)))
	row("Created", t.CreatedAt.Format(time.RFC3339))
	if t.StartedAt != nil {
		row("Started", t.StartedAt.Format(time.RFC3339))
	}
	if t.CompletedAt != nil {
		row("Completed", t.CompletedAt.Format(time.RFC3339))
	}
	if t.Description != "" {
		b.WriteString("\n")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}

	if t.Result != nil {
		b.WriteString("\n")
		b.WriteString(r.styles.Header.Render("Result"))
		b.WriteString("\n")
		if t.Result.Success {
			row("Outcome", r.styles.StatusOK.Render("success"))
		} else {
			row("Outcome", r.styles.StatusError.Render("failed"))
			if t.Result.Error != "" {
				row("Error", t.Result.Error)
			}
		}
		if t.Result.Summary != "" {
			row("Summary", t.Result.Summary)
		}
		row("Duration", formatDuration(t.Result.Metrics.Duration))
		row("Iterations", fmt.Sprintf("%d", t.Result.Metrics.Iterations))
		row("Tool calls", fmt.Sprintf("%d", t.Result.Metrics.ToolCalls))
		row("Files", fmt.Sprintf("%d", t.Result.Metrics.FilesModified))
	}
	return b.String()
}

// ApprovalPrompt renders the plan shown before asking for approval.
func (r *Renderer) ApprovalPrompt(t *tasks.Task, plan *agents.Plan) string {
	var b strings.Builder

	b.WriteString(r.styles.Title.Render("Approval required"))
	b.WriteString("\n\n")
	b.WriteString(r.styles.Label.Render("Task: "))
	b.WriteString(r.styles.Value.Render(t.Title))
	b.WriteString(r.styles.Muted.Render(fmt.Sprintf("  (%s, %s)", t.Type, t.Priority)))
	b.WriteString("\n\n")

	if plan != nil && len(plan.Steps) > 0 {
		b.WriteString(r.styles.Header.Render("Plan"))
		b.WriteString("\n")
		for i, step := range plan.Steps {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step.Description))
		}
	}
	if plan != nil && len(plan.Risks) > 0 {
		b.WriteString("\n")
		b.WriteString(r.styles.StatusWarn.Render("Risks"))
		b.WriteString("\n")
		for _, risk := range plan.Risks {
			b.WriteString("  - " + risk + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(r.styles.Muted.Render("[y] approve  [n] reject  [m] modify"))
	b.WriteString("\n")
	return b.String()
}

// RunSummary renders the outcome of a completed run.
func (r *Renderer) RunSummary(t *tasks.Task, res *agents.Result) string {
	var b strings.Builder

	if res.Success {
		b.WriteString(r.styles.StatusOK.Render("PASS"))
	} else {
		b.WriteString(r.styles.StatusError.Render("FAIL"))
	}
	b.WriteString("  ")
	b.WriteString(r.styles.Value.Render(t.Title))
	b.WriteString(r.styles.Muted.Render(fmt.Sprintf("  %s, %d iterations, %d tool calls",
		formatDuration(res.Duration), res.Iterations, len(res.ToolUses))))
	b.WriteString("\n")

	if res.Summary != "" {
		b.WriteString(res.Summary)
		b.WriteString("\n")
	}
	if res.Error != "" {
		b.WriteString(r.styles.StatusError.Render("error: "))
		b.WriteString(res.Error)
		b.WriteString("\n")
	}

	if len(res.FileChanges) > 0 {
		b.WriteString(r.styles.Header.Render("Files"))
		b.WriteString("\n")
		for _, fc := range res.FileChanges {
			b.WriteString(fmt.Sprintf("  %-8s %s\n", fc.Action, fc.Path))
		}
	}

	if res.Validation != nil {
		for _, issue := range res.Validation.Issues {
			style := r.styles.StatusWarn
			if issue.Severity == agents.SeverityError {
				style = r.styles.StatusError
			}
			b.WriteString(style.Render(string(issue.Severity)))
			b.WriteString(": " + issue.Message + "\n")
		}
	}
	return b.String()
}

// QueueStatus renders the scheduler's queue for the status command.
func (r *Renderer) QueueStatus(queued []string, running int) string {
	var b strings.Builder
	b.WriteString(r.styles.Label.Render("Running: "))
	b.WriteString(r.styles.Value.Render(fmt.Sprintf("%d", running)))
	b.WriteString("   ")
	b.WriteString(r.styles.Label.Render("Queued: "))
	b.WriteString(r.styles.Value.Render(fmt.Sprintf("%d", len(queued))))
	b.WriteString("\n")
	for i, id := range queued {
		b.WriteString(r.styles.Muted.Render(fmt.Sprintf("  %2d. %s\n", i+1, id)))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max || max <= 3 {
		return s
	}
	return s[:max-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
