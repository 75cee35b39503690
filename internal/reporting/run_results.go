// Package reporting aggregates run outcomes into reports. Results are
// collected while the orchestrator runs, rendered as markdown and
// saved as JSON for later inspection.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcus/foreman/internal/agents"
	"github.com/marcus/foreman/internal/tasks"
)

// TaskReport records the outcome of one task in a run.
type TaskReport struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Priority      string        `json:"priority"`
	Title         string        `json:"title"`
	Status        string        `json:"status"` // completed, failed, cancelled
	Error         string        `json:"error,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	Iterations    int           `json:"iterations"`
	ToolCalls     int           `json:"tool_calls"`
	FilesModified int           `json:"files_modified"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// RunResults holds all task outcomes from one orchestrator run.
type RunResults struct {
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Tasks     []TaskReport `json:"tasks"`
}

// Collector accumulates task outcomes during a run. It implements the
// orchestrator's notifier callbacks via OnCompleted and OnFailed.
type Collector struct {
	mu      sync.Mutex
	results RunResults
}

// NewCollector creates a collector stamped with the run start time.
func NewCollector() *Collector {
	return &Collector{results: RunResults{StartTime: time.Now()}}
}

// OnCompleted records a successful task.
func (c *Collector) OnCompleted(t *tasks.Task, res *agents.Result) {
	c.add(t, res, "completed")
}

// OnFailed records a failed or rejected task.
func (c *Collector) OnFailed(t *tasks.Task, err error) {
	report := TaskReport{
		ID:       t.ID,
		Type:     string(t.Type),
		Priority: string(t.Priority),
		Title:    t.Title,
		Status:   "failed",
	}
	if err != nil {
		report.Error = err.Error()
	}
	c.mu.Lock()
	c.results.Tasks = append(c.results.Tasks, report)
	c.mu.Unlock()
}

func (c *Collector) add(t *tasks.Task, res *agents.Result, status string) {
	report := TaskReport{
		ID:            t.ID,
		Type:          string(t.Type),
		Priority:      string(t.Priority),
		Title:         t.Title,
		Status:        status,
		Summary:       res.Summary,
		Error:         res.Error,
		Iterations:    res.Iterations,
		ToolCalls:     len(res.ToolUses),
		Duration:      res.Duration,
		FilesModified: len(res.FileChanges),
	}
	c.mu.Lock()
	c.results.Tasks = append(c.results.Tasks, report)
	c.mu.Unlock()
}

// Results finalizes and returns the accumulated run results.
func (c *Collector) Results() *RunResults {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.results
	out.EndTime = time.Now()
	out.Tasks = make([]TaskReport, len(c.results.Tasks))
	copy(out.Tasks, c.results.Tasks)
	return &out
}

// DefaultReportsDir returns the default directory for run reports.
func DefaultReportsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "foreman", "reports")
}

// DefaultRunResultsPath returns the default path for a run results JSON file.
func DefaultRunResultsPath(ts time.Time) string {
	return filepath.Join(DefaultReportsDir(),
		fmt.Sprintf("run-%s.json", ts.Format("2006-01-02-150405")))
}

// SaveRunResults writes structured run results to disk as JSON.
func SaveRunResults(results *RunResults, path string) error {
	if results == nil {
		return fmt.Errorf("results cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// LoadRunResults reads structured run results from disk.
func LoadRunResults(path string) (*RunResults, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	var results RunResults
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	return &results, nil
}
