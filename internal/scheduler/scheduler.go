// Package scheduler decides which pending task runs next and when
// concurrency and per-type cooldowns allow it.
//
// Tasks are kept in a list ordered by descending priority score. The
// score combines a priority weight, a per-agent-type weight, and an
// aging bonus of one point per full minute waited, so a long-waiting
// task eventually outranks fresh higher-priority arrivals and nothing
// starves.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/marcus/foreman/internal/tasks"
)

// Defaults for Options.
const (
	DefaultMaxConcurrent = 1
	DefaultCooldown      = time.Second
	// perTaskEstimate is the advisory forecast of how long one queued
	// task ahead of another delays its start.
	perTaskEstimate = 2 * time.Minute
	agingInterval   = time.Minute
)

// Options configures a Scheduler.
type Options struct {
	MaxConcurrent   int
	PriorityWeights map[tasks.Priority]int
	TypeWeights     map[tasks.Type]int
	Cooldown        time.Duration
}

// DefaultOptions returns the standard scheduling configuration.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent: DefaultMaxConcurrent,
		PriorityWeights: map[tasks.Priority]int{
			tasks.PriorityCritical: 1000,
			tasks.PriorityHigh:     100,
			tasks.PriorityNormal:   10,
			tasks.PriorityLow:      1,
		},
		TypeWeights: map[tasks.Type]int{
			tasks.TypeQA:       100,
			tasks.TypeTest:     80,
			tasks.TypeFeature:  50,
			tasks.TypeRefactor: 30,
		},
		Cooldown: DefaultCooldown,
	}
}

// ScheduledTask wraps a task with scheduling metadata.
type ScheduledTask struct {
	Task           *tasks.Task
	ScheduledAt    time.Time
	EstimatedStart time.Time // advisory forecast, not a guarantee
	Score          int       // recomputed by Reprioritize
}

// Scheduler orders pending tasks and tracks running ones.
type Scheduler struct {
	mu      sync.Mutex
	opts    Options
	queue   []*ScheduledTask // descending score
	running map[string]tasks.Type
	lastRun map[tasks.Type]time.Time
	nowFunc func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOptions sets the scheduling configuration.
func WithOptions(opts Options) Option {
	return func(s *Scheduler) {
		s.opts = opts
	}
}

// WithClock overrides the scheduler's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

// New creates a scheduler with the given options.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		opts:    DefaultOptions(),
		running: make(map[string]tasks.Type),
		lastRun: make(map[tasks.Type]time.Time),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.opts.MaxConcurrent <= 0 {
		s.opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if s.opts.Cooldown <= 0 {
		s.opts.Cooldown = DefaultCooldown
	}
	return s
}

// score computes a task's current priority score. Monotonically
// non-decreasing in wait time for a fixed task.
func (s *Scheduler) score(t *tasks.Task, now time.Time) int {
	base := s.opts.PriorityWeights[t.Priority] * s.opts.TypeWeights[t.Type]
	aging := int(now.Sub(t.CreatedAt) / agingInterval)
	if aging < 0 {
		aging = 0
	}
	return base + aging
}

// Schedule inserts a task into the queue at its scored position.
// The insert is stable descending: equal scores keep insertion order.
func (s *Scheduler) Schedule(t *tasks.Task) *ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	st := &ScheduledTask{
		Task:        t,
		ScheduledAt: now,
		Score:       s.score(t, now),
	}
	st.EstimatedStart = s.estimateLocked(st, now)

	pos := len(s.queue)
	for i, existing := range s.queue {
		if existing.Score < st.Score {
			pos = i
			break
		}
	}
	s.queue = append(s.queue, nil)
	copy(s.queue[pos+1:], s.queue[pos:])
	s.queue[pos] = st

	return st
}

// GetNext returns the highest-scored task whose type is not in
// cooldown, or nil when at the concurrency cap or when every candidate
// is cooling down. The returned task stays queued until MarkRunning.
func (s *Scheduler) GetNext() *tasks.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.running) >= s.opts.MaxConcurrent {
		return nil
	}

	now := s.nowFunc()
	for _, st := range s.queue {
		if s.inCooldownLocked(st.Task.Type, now) {
			continue
		}
		return st.Task
	}
	return nil
}

// inCooldownLocked reports whether the type ran too recently.
func (s *Scheduler) inCooldownLocked(typ tasks.Type, now time.Time) bool {
	last, ok := s.lastRun[typ]
	if !ok {
		return false
	}
	return now.Sub(last) < s.opts.Cooldown
}

// MarkRunning moves a task from the queue to the running set.
// Returns false if the task is not queued.
func (s *Scheduler) MarkRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, st := range s.queue {
		if st.Task.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.running[id] = st.Task.Type
			return true
		}
	}
	return false
}

// MarkComplete removes a task from the running set and starts the
// cooldown window for its type. Safe no-op for unknown ids.
func (s *Scheduler) MarkComplete(id string, typ tasks.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, id)
	s.lastRun[typ] = s.nowFunc()
}

// Unschedule removes a queued task without running it.
// Returns false if the task is not queued.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, st := range s.queue {
		if st.Task.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Reprioritize recomputes every queued task's score, capturing newly
// accrued aging, and re-sorts. The run loop calls this periodically so
// long-waiting tasks climb without new insertions.
func (s *Scheduler) Reprioritize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for _, st := range s.queue {
		st.Score = s.score(st.Task, now)
	}
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].Score > s.queue[j].Score
	})
}

// EstimateStartTime forecasts when a task would start: now, plus any
// remaining cooldown for its type, plus two minutes per queued task
// with a strictly higher current score. Advisory only.
func (s *Scheduler) EstimateStartTime(t *tasks.Task) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	st := &ScheduledTask{Task: t, Score: s.score(t, now)}
	return s.estimateLocked(st, now)
}

func (s *Scheduler) estimateLocked(st *ScheduledTask, now time.Time) time.Time {
	estimate := now

	if last, ok := s.lastRun[st.Task.Type]; ok {
		if remaining := s.opts.Cooldown - now.Sub(last); remaining > 0 {
			estimate = estimate.Add(remaining)
		}
	}

	ahead := 0
	for _, queued := range s.queue {
		if queued.Task.ID == st.Task.ID {
			continue
		}
		if s.score(queued.Task, now) > st.Score {
			ahead++
		}
	}
	return estimate.Add(time.Duration(ahead) * perTaskEstimate)
}

// QueueLen returns the number of queued (not running) tasks.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// RunningCount returns the number of running tasks.
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Queued returns a snapshot of the scheduled queue in score order.
func (s *Scheduler) Queued() []*ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ScheduledTask, len(s.queue))
	copy(out, s.queue)
	return out
}
