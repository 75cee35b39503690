// Package orchestrator composes the task queue, scheduler, approval
// gate and agents into the execution pipeline: create, schedule,
// approve, run, persist, notify.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcus/foreman/internal/agents"
	"github.com/marcus/foreman/internal/approval"
	"github.com/marcus/foreman/internal/llm"
	"github.com/marcus/foreman/internal/logging"
	"github.com/marcus/foreman/internal/scheduler"
	"github.com/marcus/foreman/internal/store"
	"github.com/marcus/foreman/internal/tasks"
	"github.com/marcus/foreman/internal/tools"
)

// Constants for orchestration.
const (
	DefaultMaxIterations     = 10
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultReprioritizeEvery = 30 * time.Second
)

// ErrTaskNotFound is returned by RunTask for unknown task ids.
var ErrTaskNotFound = errors.New("task not found")

// Config holds orchestrator configuration.
type Config struct {
	MaxIterations     int           // agent loop bound (default: 10)
	WorkDir           string        // working directory for tools
	PollInterval      time.Duration // run-loop sleep when idle
	ReprioritizeEvery time.Duration // how often aging re-sorts the queue
}

// DefaultConfig returns default orchestrator config.
func DefaultConfig() Config {
	return Config{
		MaxIterations:     DefaultMaxIterations,
		PollInterval:      DefaultPollInterval,
		ReprioritizeEvery: DefaultReprioritizeEvery,
	}
}

// Orchestrator drives tasks from creation to a terminal status. It
// exclusively owns its queue and scheduler; the approval handler,
// completion client and store are supplied by the embedder.
type Orchestrator struct {
	queue    *tasks.Queue
	sched    *scheduler.Scheduler
	gate     *approval.Gate
	registry *tools.Registry
	agents   agents.Set
	client   llm.CompletionClient
	store    store.TaskStore
	config   Config
	logger   *logging.Logger

	mu        sync.Mutex
	notifiers []Notifier

	running atomic.Bool
	cancel  context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithQueue sets the task queue.
func WithQueue(q *tasks.Queue) Option {
	return func(o *Orchestrator) { o.queue = q }
}

// WithScheduler sets the scheduler.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(o *Orchestrator) { o.sched = s }
}

// WithGate sets the approval gate.
func WithGate(g *approval.Gate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// WithTools sets the tool registry shared by all agents.
func WithTools(r *tools.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithAgents sets the agent roster.
func WithAgents(set agents.Set) Option {
	return func(o *Orchestrator) { o.agents = set }
}

// WithClient sets the completion client agents execute against.
func WithClient(c llm.CompletionClient) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithStore sets the persistence backend.
func WithStore(s store.TaskStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithConfig sets orchestrator configuration.
func WithConfig(c Config) Option {
	return func(o *Orchestrator) { o.config = c }
}

// New creates an orchestrator with the given options. Components not
// supplied get working in-memory defaults.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config: DefaultConfig(),
		logger: logging.Component("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.queue == nil {
		o.queue = tasks.NewQueue()
	}
	if o.sched == nil {
		o.sched = scheduler.New()
	}
	if o.gate == nil {
		o.gate = approval.NewGate()
	}
	if o.registry == nil {
		o.registry = tools.NewRegistry()
	}
	if o.agents == nil {
		o.agents = agents.DefaultSet()
	}
	if o.store == nil {
		o.store = store.NewMemoryStore()
	}
	if o.config.PollInterval <= 0 {
		o.config.PollInterval = DefaultPollInterval
	}
	if o.config.ReprioritizeEvery <= 0 {
		o.config.ReprioritizeEvery = DefaultReprioritizeEvery
	}
	return o
}

// Subscribe registers a notifier for lifecycle events.
func (o *Orchestrator) Subscribe(n Notifier) {
	o.mu.Lock()
	o.notifiers = append(o.notifiers, n)
	o.mu.Unlock()
}

func (o *Orchestrator) eachNotifier(fn func(Notifier)) {
	o.mu.Lock()
	notifiers := make([]Notifier, len(o.notifiers))
	copy(notifiers, o.notifiers)
	o.mu.Unlock()

	for _, n := range notifiers {
		fn(n)
	}
}

func (o *Orchestrator) emitAgentEvent(e agents.Event) {
	o.eachNotifier(func(n Notifier) { n.AgentEvent(e) })
}

// Queue exposes the task queue for read-side queries.
func (o *Orchestrator) Queue() *tasks.Queue {
	return o.queue
}

// Scheduler exposes the scheduler for read-side queries.
func (o *Orchestrator) Scheduler() *scheduler.Scheduler {
	return o.sched
}

// Gate exposes the approval gate.
func (o *Orchestrator) Gate() *approval.Gate {
	return o.gate
}

// CreateTask creates, persists and schedules a new task.
func (o *Orchestrator) CreateTask(ctx context.Context, in tasks.CreateInput) *tasks.Task {
	t := o.queue.Create(in)

	if err := o.store.CreateTask(ctx, t); err != nil {
		o.logger.ErrorCtx("persisting task", map[string]any{"task": t.ID, "error": err.Error()})
	}
	st := o.sched.Schedule(t)
	o.recordEvent(ctx, t.ID, "created", fmt.Sprintf("scheduled, estimated start %s", st.EstimatedStart.Format(time.RFC3339)))

	o.logger.InfoCtx("task created", map[string]any{
		"task": t.ID, "type": t.Type, "priority": t.Priority, "autonomy": t.Autonomy,
	})
	return t
}

// ScheduleBacklog schedules every pending or approval-waiting task in
// the queue. Used after restoring a queue snapshot, before Run.
func (o *Orchestrator) ScheduleBacklog() int {
	count := 0
	for _, t := range o.queue.GetAll() {
		switch t.Status {
		case tasks.StatusPending, tasks.StatusAwaitingApproval:
			o.sched.Schedule(t)
			count++
		}
	}
	if count > 0 {
		o.logger.Infof("scheduled %d task(s) from backlog", count)
	}
	return count
}

// RunTask executes a single task through plan, approval and the agent
// loop. Unknown task ids and unknown roles are errors; everything else
// lands in the returned result and the task's terminal status. The
// scheduler slot is always released, even on panics.
func (o *Orchestrator) RunTask(ctx context.Context, id string) (result *agents.Result, err error) {
	t, ok := o.queue.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	// Registered before the role lookup: an unknown role must still
	// release the scheduler slot, or one bad task wedges the run loop.
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			o.logger.ErrorCtx("task panicked", map[string]any{"task": id, "error": msg})
			result = o.failTask(ctx, t, result, msg)
			err = nil
		}
		o.sched.MarkComplete(id, t.Type)
	}()

	agent, aerr := o.agents.ForRole(t.Type)
	if aerr != nil {
		return nil, fmt.Errorf("%w: %s", aerr, t.Type)
	}

	actx := &agents.Context{
		Task:          t,
		WorkDir:       o.config.WorkDir,
		MaxIterations: o.config.MaxIterations,
		Client:        o.client,
		Tools:         o.registry,
		Emit:          o.emitAgentEvent,
	}

	plan, perr := agent.Plan(ctx, actx)
	if perr != nil {
		return o.failTask(ctx, t, nil, fmt.Sprintf("planning failed: %v", perr)), nil
	}

	if o.gate.RequiresApproval(t, plan) {
		o.queue.UpdateStatus(id, tasks.StatusAwaitingApproval)
		o.persistStatus(ctx, id, tasks.StatusAwaitingApproval)
		o.emitAgentEvent(agents.Event{Type: agents.EventAwaitingApproval, TaskID: id, Time: time.Now()})
		o.eachNotifier(func(n Notifier) { n.ApprovalRequired(t) })

		decision := o.gate.RequestApproval(ctx, t, plan)
		if !decision.Approved {
			o.emitAgentEvent(agents.Event{Type: agents.EventRejected, TaskID: id, Time: time.Now(), Message: decision.Reason})
			o.queue.UpdateStatus(id, tasks.StatusCancelled)
			o.persistStatus(ctx, id, tasks.StatusCancelled)
			o.recordEvent(ctx, id, "rejected", decision.Reason)

			result = &agents.Result{Success: false, Error: decision.Reason}
			o.persistResult(ctx, t, result)
			o.logger.InfoCtx("task rejected", map[string]any{"task": id, "reason": decision.Reason})
			return result, nil
		}
		o.emitAgentEvent(agents.Event{Type: agents.EventApproved, TaskID: id, Time: time.Now(), Message: decision.Reason})
	}

	o.queue.UpdateStatus(id, tasks.StatusRunning)
	o.persistStatus(ctx, id, tasks.StatusRunning)
	o.eachNotifier(func(n Notifier) { n.TaskStarted(t) })

	res, execErr := agent.Execute(ctx, actx)
	if execErr != nil {
		return o.failTask(ctx, t, res, execErr.Error()), nil
	}

	if v := agent.Validate(res); v != nil {
		res.Validation = v
	}
	for _, issue := range validationIssues(res) {
		o.logger.WarnCtx("validation issue", map[string]any{
			"task": id, "severity": issue.Severity, "message": issue.Message,
		})
	}

	o.persistResult(ctx, t, res)
	if res.Success {
		o.queue.UpdateStatus(id, tasks.StatusCompleted)
		o.persistStatus(ctx, id, tasks.StatusCompleted)
		o.eachNotifier(func(n Notifier) { n.TaskCompleted(t, res) })
	} else {
		o.queue.UpdateStatus(id, tasks.StatusFailed)
		o.persistStatus(ctx, id, tasks.StatusFailed)
		o.eachNotifier(func(n Notifier) { n.TaskFailed(t, errors.New(res.Error)) })
	}

	o.logger.InfoCtx("task finished", map[string]any{
		"task": id, "success": res.Success, "iterations": res.Iterations,
		"tool_calls": len(res.ToolUses), "duration": res.Duration.String(),
	})
	return res, nil
}

// failTask marks a task failed with the given error message, reusing
// any partial result from the agent loop.
func (o *Orchestrator) failTask(ctx context.Context, t *tasks.Task, partial *agents.Result, msg string) *agents.Result {
	res := partial
	if res == nil {
		res = &agents.Result{}
	}
	res.Success = false
	res.Error = msg

	// A failure before the running transition (plan error, panic in
	// approval) still has to reach a terminal state.
	if cur, ok := o.queue.Get(t.ID); ok && cur.Status != tasks.StatusRunning {
		o.queue.UpdateStatus(t.ID, tasks.StatusRunning)
		o.persistStatus(ctx, t.ID, tasks.StatusRunning)
	}

	o.persistResult(ctx, t, res)
	o.queue.UpdateStatus(t.ID, tasks.StatusFailed)
	o.persistStatus(ctx, t.ID, tasks.StatusFailed)
	o.eachNotifier(func(n Notifier) { n.TaskFailed(t, errors.New(msg)) })
	return res
}

// persistStatus writes a status change to the store, logging failures.
func (o *Orchestrator) persistStatus(ctx context.Context, id string, status tasks.Status) {
	if err := o.store.UpdateStatus(ctx, id, status); err != nil {
		o.logger.ErrorCtx("persisting status", map[string]any{"task": id, "status": status, "error": err.Error()})
	}
}

// persistResult attaches the result to the queue task and the store.
func (o *Orchestrator) persistResult(ctx context.Context, t *tasks.Task, res *agents.Result) {
	taskResult := toTaskResult(res)
	o.queue.SetResult(t.ID, taskResult)
	if err := o.store.RecordResult(ctx, t.ID, taskResult); err != nil {
		o.logger.ErrorCtx("persisting result", map[string]any{"task": t.ID, "error": err.Error()})
	}
}

// recordEvent writes a task event to the store, logging failures.
func (o *Orchestrator) recordEvent(ctx context.Context, id, eventType, message string) {
	e := store.Event{TaskID: id, Type: eventType, Message: message, Time: time.Now()}
	if err := o.store.RecordEvent(ctx, e); err != nil {
		o.logger.ErrorCtx("recording event", map[string]any{"task": id, "event": eventType, "error": err.Error()})
	}
}

func validationIssues(res *agents.Result) []agents.Issue {
	if res.Validation == nil {
		return nil
	}
	return res.Validation.Issues
}

// toTaskResult converts an agent result into the task-level record.
func toTaskResult(res *agents.Result) *tasks.Result {
	files := make(map[string]struct{})
	for _, fc := range res.FileChanges {
		files[fc.Path] = struct{}{}
	}
	return &tasks.Result{
		Success: res.Success,
		Summary: res.Summary,
		Error:   res.Error,
		Metrics: tasks.Metrics{
			Duration:      res.Duration,
			Iterations:    res.Iterations,
			ToolCalls:     len(res.ToolUses),
			FilesModified: len(files),
		},
	}
}

// Run pulls tasks off the scheduler until the context is cancelled or
// Stop is called. The loop polls: an empty or blocked queue sleeps for
// PollInterval, and aging re-sorts the queue every ReprioritizeEvery.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.running.Swap(true) {
		return errors.New("orchestrator already running")
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	lastReprioritize := time.Now()

	for o.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Since(lastReprioritize) >= o.config.ReprioritizeEvery {
			o.sched.Reprioritize()
			lastReprioritize = time.Now()
		}

		t := o.sched.GetNext()
		if t == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.config.PollInterval):
			}
			continue
		}

		o.sched.MarkRunning(t.ID)
		if _, err := o.RunTask(ctx, t.ID); err != nil {
			o.logger.Errorf("task %s failed: %v", t.ID, err)
		}
	}
	return nil
}

// Stop cooperatively halts the run loop. The in-flight task finishes;
// no new tasks are pulled afterward.
func (o *Orchestrator) Stop() {
	o.running.Store(false)
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
