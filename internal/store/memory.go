package store

import (
	"context"
	"sort"
	"sync"

	"github.com/marcus/foreman/internal/tasks"
)

// MemoryStore is the in-memory TaskStore used by default and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	tasks  map[string]*tasks.Task
	events map[string][]Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:  make(map[string]*tasks.Task),
		events: make(map[string][]Event),
	}
}

// cloneTask deep-copies a task so stored snapshots never alias the
// live queue task's maps, slices or timestamp pointers.
func cloneTask(t *tasks.Task) *tasks.Task {
	c := *t
	if t.Options != nil {
		c.Options = make(map[string]any, len(t.Options))
		for k, v := range t.Options {
			c.Options[k] = v
		}
	}
	if t.ChildTaskIDs != nil {
		c.ChildTaskIDs = append([]string(nil), t.ChildTaskIDs...)
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}

// CreateTask stores a snapshot of the task.
func (s *MemoryStore) CreateTask(_ context.Context, t *tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// UpdateStatus records a status change.
func (s *MemoryStore) UpdateStatus(_ context.Context, taskID string, status tasks.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

// RecordResult attaches a result to a stored task.
func (s *MemoryStore) RecordResult(_ context.Context, taskID string, r *tasks.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	result := *r
	t.Result = &result
	return nil
}

// RecordEvent appends a task event.
func (s *MemoryStore) RecordEvent(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.TaskID] = append(s.events[e.TaskID], e)
	return nil
}

// GetTask returns a stored task or ErrNotFound.
func (s *MemoryStore) GetTask(_ context.Context, taskID string) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTask(t), nil
}

// GetTaskEvents returns the events recorded for a task, oldest first.
func (s *MemoryStore) GetTaskEvents(_ context.Context, taskID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[taskID]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}

// GetRecentTasks returns up to limit tasks, newest first.
func (s *MemoryStore) GetRecentTasks(_ context.Context, limit int) ([]*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*tasks.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
