package reporting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultRunReportPath returns the default path for a run report file.
func DefaultRunReportPath(ts time.Time) string {
	return filepath.Join(DefaultReportsDir(),
		fmt.Sprintf("run-%s.md", ts.Format("2006-01-02-150405")))
}

// RenderRunReport renders a markdown report for a single run.
func RenderRunReport(results *RunResults, logPath string) (string, error) {
	if results == nil {
		return "", fmt.Errorf("results cannot be nil")
	}

	var completed, failed, cancelled []TaskReport
	for _, task := range results.Tasks {
		switch task.Status {
		case "completed":
			completed = append(completed, task)
		case "failed":
			failed = append(failed, task)
		case "cancelled":
			cancelled = append(cancelled, task)
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Foreman Run - %s\n\n", results.StartTime.Format("2006-01-02 15:04"))

	buf.WriteString("## Summary\n")
	duration := results.EndTime.Sub(results.StartTime)
	fmt.Fprintf(&buf, "- Duration: %s\n", formatDuration(duration))
	fmt.Fprintf(&buf, "- Tasks: %d completed, %d failed, %d cancelled\n",
		len(completed), len(failed), len(cancelled))
	if logPath != "" {
		fmt.Fprintf(&buf, "- Logs: %s\n", logPath)
	}
	buf.WriteString("\n")

	writeTaskSection(&buf, "Tasks Completed", completed)
	writeTaskSection(&buf, "Tasks Failed", failed)
	writeTaskSection(&buf, "Tasks Cancelled", cancelled)

	return buf.String(), nil
}

// SaveRunReport writes a run report to disk.
func SaveRunReport(results *RunResults, path string, logPath string) error {
	content, err := RenderRunReport(results, logPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func writeTaskSection(buf *bytes.Buffer, title string, reports []TaskReport) {
	if len(reports) == 0 {
		return
	}
	buf.WriteString("## " + title + "\n")
	for _, task := range reports {
		line := fmt.Sprintf("- %s (%s, %s)", task.Title, task.Type, task.Priority)
		if task.Duration > 0 {
			line += fmt.Sprintf(" — %s", formatDuration(task.Duration))
		}
		if task.ToolCalls > 0 {
			line += fmt.Sprintf(" — %d tool calls", task.ToolCalls)
		}
		if task.FilesModified > 0 {
			line += fmt.Sprintf(" — %d files", task.FilesModified)
		}
		if task.Error != "" {
			line += fmt.Sprintf(" — %s", task.Error)
		}
		buf.WriteString(line + "\n")
	}
	buf.WriteString("\n")
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
