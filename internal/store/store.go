// Package store defines the minimal persistence contract the
// orchestrator consumes. The orchestrator never owns storage; it
// writes through whichever TaskStore it was handed.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/marcus/foreman/internal/tasks"
)

// ErrNotFound is returned when a task id is unknown to the store.
var ErrNotFound = errors.New("task not found")

// Event is a persisted task lifecycle event.
type Event struct {
	TaskID  string         `json:"task_id"`
	Type    string         `json:"type"`
	Message string         `json:"message,omitempty"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// TaskStore persists tasks, results and events.
type TaskStore interface {
	CreateTask(ctx context.Context, t *tasks.Task) error
	UpdateStatus(ctx context.Context, taskID string, status tasks.Status) error
	RecordResult(ctx context.Context, taskID string, r *tasks.Result) error
	RecordEvent(ctx context.Context, e Event) error
	GetTask(ctx context.Context, taskID string) (*tasks.Task, error)
	GetTaskEvents(ctx context.Context, taskID string) ([]Event, error)
	GetRecentTasks(ctx context.Context, limit int) ([]*tasks.Task, error)
}
