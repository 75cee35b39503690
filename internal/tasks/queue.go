package tasks

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcus/foreman/internal/logging"
)

// Queue holds tasks and enforces status transitions.
type Queue struct {
	mu       sync.Mutex
	tasks    map[string]*Task
	autonomy map[Type]Autonomy
	handlers []Handler
	seq      int64
	nowFunc  func() time.Time
	logger   *logging.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithAutonomy sets the role-to-autonomy map used at task creation.
// Tasks snapshot their autonomy level when created; later changes to
// the map do not affect existing tasks.
func WithAutonomy(m map[Type]Autonomy) QueueOption {
	return func(q *Queue) {
		q.autonomy = m
	}
}

// WithClock overrides the queue's clock, for tests.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.nowFunc = now
	}
}

// NewQueue creates an empty task queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		tasks:    make(map[string]*Task),
		autonomy: make(map[Type]Autonomy),
		nowFunc:  time.Now,
		logger:   logging.Component("queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnEvent registers a handler for queue events.
func (q *Queue) OnEvent(h Handler) {
	q.mu.Lock()
	q.handlers = append(q.handlers, h)
	q.mu.Unlock()
}

// emit delivers an event to all handlers, synchronously and in
// registration order. Must be called without holding q.mu.
func (q *Queue) emit(e Event) {
	q.mu.Lock()
	handlers := make([]Handler, len(q.handlers))
	copy(handlers, q.handlers)
	q.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

// Create adds a new pending task and emits an added event.
func (q *Queue) Create(in CreateInput) *Task {
	q.mu.Lock()

	now := q.nowFunc()
	q.seq++

	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	maxRetries := in.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	t := &Task{
		ID:          fmt.Sprintf("task-%d-%04d", now.UnixMilli(), q.seq),
		Type:        in.Type,
		Status:      StatusPending,
		Priority:    priority,
		Autonomy:    q.resolveAutonomy(in.Type),
		Title:       in.Title,
		Description: in.Description,
		Target:      in.Target,
		Options:     in.Options,
		CreatedAt:   now,
		MaxRetries:  maxRetries,
	}
	q.tasks[t.ID] = t
	q.mu.Unlock()

	q.emit(Event{Kind: EventAdded, Task: t})
	return t
}

// resolveAutonomy maps a task type to its configured autonomy level.
// Unconfigured types default to supervised, the fail-closed choice.
func (q *Queue) resolveAutonomy(typ Type) Autonomy {
	if a, ok := q.autonomy[typ]; ok {
		return a
	}
	return AutonomySupervised
}

// UpdateStatus transitions a task to the given status. Returns false if
// the task is unknown or the transition is not legal; illegal
// transitions are logged and otherwise ignored.
func (q *Queue) UpdateStatus(id string, status Status) bool {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	prev := t.Status
	if !canTransition(prev, status) {
		q.mu.Unlock()
		q.logger.WarnCtx("illegal status transition", map[string]any{
			"task": id, "from": prev, "to": status,
		})
		return false
	}

	now := q.nowFunc()
	t.Status = status
	if status == StatusRunning && t.StartedAt == nil {
		started := now
		t.StartedAt = &started
	}
	if status.Terminal() && t.CompletedAt == nil {
		completed := now
		t.CompletedAt = &completed
	}
	q.mu.Unlock()

	q.emit(Event{Kind: EventStatusChanged, Task: t, Previous: prev})
	return true
}

// Update applies a mutation to a task and emits an updated event.
// Returns false if the task is unknown. The mutation must not touch
// Status or timestamps; use UpdateStatus for those.
func (q *Queue) Update(id string, apply func(*Task)) bool {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	apply(t)
	q.mu.Unlock()

	q.emit(Event{Kind: EventUpdated, Task: t})
	return true
}

// SetResult attaches an execution result to a task.
func (q *Queue) SetResult(id string, r *Result) bool {
	return q.Update(id, func(t *Task) {
		t.Result = r
	})
}

// AppendChild records a spawned sub-task id on the parent.
func (q *Queue) AppendChild(parentID, childID string) bool {
	return q.Update(parentID, func(t *Task) {
		t.ChildTaskIDs = append(t.ChildTaskIDs, childID)
	})
}

// Get returns the task with the given id.
func (q *Queue) Get(id string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	return t, ok
}

// GetAll returns all tasks, ordered by creation time.
func (q *Queue) GetAll() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked(func(*Task) bool { return true })
}

// GetByStatus returns tasks with the given status, ordered by creation time.
func (q *Queue) GetByStatus(status Status) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked(func(t *Task) bool { return t.Status == status })
}

// GetByType returns tasks of the given type, ordered by creation time.
func (q *Queue) GetByType(typ Type) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked(func(t *Task) bool { return t.Type == typ })
}

// Filter selects tasks matching all non-empty criteria.
type Filter struct {
	Statuses      []Status
	Types         []Type
	Priorities    []Priority
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

func (f Filter) matches(t *Task) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, t.Type) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if !f.CreatedAfter.IsZero() && t.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && t.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}

// FilterTasks returns tasks matching the filter, ordered by creation time.
func (q *Queue) FilterTasks(f Filter) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked(f.matches)
}

// Next returns the next pending task by priority rank (critical first)
// then creation time. This is an advisory fallback ordering; the
// scheduler's score-based ordering is the one the run loop uses.
func (q *Queue) Next() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.sortedLocked(func(t *Task) bool { return t.Status == StatusPending })
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := pending[i].Priority.Rank(), pending[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending[0]
}

// CanRetry reports whether the task has retry budget left.
func (q *Queue) CanRetry(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return false
	}
	return t.RetryCount < t.MaxRetries
}

// IncrementRetry consumes one unit of the task's retry budget.
func (q *Queue) IncrementRetry(id string) bool {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if ok {
		t.RetryCount++
	}
	q.mu.Unlock()
	return ok
}

// Len returns the number of tasks in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// sortedLocked returns tasks matching keep, ordered by creation time
// then id. Caller must hold q.mu.
func (q *Queue) sortedLocked(keep func(*Task) bool) []*Task {
	out := make([]*Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// queueSnapshot is the serialized queue structure.
type queueSnapshot struct {
	Version int     `json:"version"`
	Tasks   []*Task `json:"tasks"`
	Seq     int64   `json:"seq"`
}

const snapshotVersion = 1

// ToJSON serializes the full task set.
func (q *Queue) ToJSON() ([]byte, error) {
	q.mu.Lock()
	snap := queueSnapshot{
		Version: snapshotVersion,
		Tasks:   q.sortedLocked(func(*Task) bool { return true }),
		Seq:     q.seq,
	}
	q.mu.Unlock()
	return json.MarshalIndent(snap, "", "  ")
}

// FromJSON reconstructs a queue from a ToJSON snapshot. Options apply
// as for NewQueue; the autonomy map only affects tasks created later.
func FromJSON(data []byte, opts ...QueueOption) (*Queue, error) {
	var snap queueSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing queue snapshot: %w", err)
	}

	q := NewQueue(opts...)
	q.seq = snap.Seq
	for _, t := range snap.Tasks {
		q.tasks[t.ID] = t
	}
	return q, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(list []Type, t Type) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsPriority(list []Priority, p Priority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
