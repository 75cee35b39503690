package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcus/foreman/internal/agents"
	"github.com/marcus/foreman/internal/approval"
	"github.com/marcus/foreman/internal/llm"
	"github.com/marcus/foreman/internal/store"
	"github.com/marcus/foreman/internal/tasks"
	"github.com/marcus/foreman/internal/tools"
)

// scriptedOrchestrator wires an orchestrator around a scripted client
// so tests control the whole agent conversation.
func scriptedOrchestrator(t *testing.T, gate *approval.Gate, responses ...llm.Response) (*Orchestrator, *store.MemoryStore) {
	t.Helper()

	registry := tools.NewRegistry()
	if err := registry.Register(&tools.Tool{
		Name:   "touch",
		Schema: tools.Schema{Type: "object"},
		Run: func(context.Context, map[string]any) *tools.Result {
			return &tools.Result{
				Success:  true,
				Output:   "created notes.md",
				Metadata: map[string]any{"path": "notes.md", "action": "created"},
			}
		},
	}); err != nil {
		t.Fatal(err)
	}

	mem := store.NewMemoryStore()
	opts := []Option{
		WithClient(llm.NewScriptedClient(responses...)),
		WithTools(registry),
		WithStore(mem),
	}
	if gate != nil {
		opts = append(opts, WithGate(gate))
	}
	return New(opts...), mem
}

func docsInput() tasks.CreateInput {
	return tasks.CreateInput{
		Type:     tasks.TypeDocs,
		Priority: tasks.PriorityNormal,
		Title:    "document the config format",
	}
}

func TestRunTaskCompletes(t *testing.T) {
	orch, mem := scriptedOrchestrator(t,
		approval.NewGate(approval.WithHandler(approval.AutoApprove())),
		llm.Response{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "touch"}}},
		llm.Response{Content: "docs written"},
	)
	ctx := context.Background()

	task := orch.CreateTask(ctx, docsInput())
	res, err := orch.RunTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}

	got, ok := orch.Queue().Get(task.ID)
	if !ok || got.Status != tasks.StatusCompleted {
		t.Errorf("queue status = %v", got.Status)
	}

	stored, err := mem.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != tasks.StatusCompleted {
		t.Errorf("store status = %v", stored.Status)
	}
	if stored.Result == nil || !stored.Result.Success {
		t.Fatalf("store result = %+v", stored.Result)
	}
	if stored.Result.Metrics.ToolCalls != 1 || stored.Result.Metrics.FilesModified != 1 {
		t.Errorf("metrics = %+v", stored.Result.Metrics)
	}
}

func TestRunTaskUnknownID(t *testing.T) {
	orch, _ := scriptedOrchestrator(t, nil)
	_, err := orch.RunTask(context.Background(), "task-none")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestRunTaskRejectionCancels(t *testing.T) {
	orch, mem := scriptedOrchestrator(t,
		approval.NewGate(approval.WithHandler(approval.AutoReject("not today"))),
		llm.Response{Content: "unused"},
	)
	ctx := context.Background()

	task := orch.CreateTask(ctx, docsInput())
	if task.Autonomy != tasks.AutonomySupervised {
		t.Fatalf("default autonomy = %v", task.Autonomy)
	}

	res, err := orch.RunTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("rejection is not an error: %v", err)
	}
	if res.Success || res.Error != "not today" {
		t.Errorf("result = %+v", res)
	}

	got, _ := orch.Queue().Get(task.ID)
	if got.Status != tasks.StatusCancelled {
		t.Errorf("status = %v, want cancelled", got.Status)
	}
	stored, _ := mem.GetTask(ctx, task.ID)
	if stored.Status != tasks.StatusCancelled {
		t.Errorf("store status = %v", stored.Status)
	}
}

func TestRunTaskFullAutonomySkipsHandler(t *testing.T) {
	// A rejecting handler proves the gate was never consulted.
	orch, _ := scriptedOrchestrator(t,
		approval.NewGate(approval.WithHandler(approval.AutoReject("should not run"))),
		llm.Response{Content: "done"},
	)
	orch.queue = tasks.NewQueue(tasks.WithAutonomy(map[tasks.Type]tasks.Autonomy{
		tasks.TypeDocs: tasks.AutonomyFull,
	}))
	ctx := context.Background()

	task := orch.CreateTask(ctx, docsInput())
	if task.Autonomy != tasks.AutonomyFull {
		t.Fatalf("autonomy = %v", task.Autonomy)
	}

	res, err := orch.RunTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunTaskExhaustionFails(t *testing.T) {
	orch, _ := scriptedOrchestrator(t,
		approval.NewGate(approval.WithHandler(approval.AutoApprove())),
		llm.Response{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "touch"}}},
	)
	orch.config.MaxIterations = 2
	ctx := context.Background()

	task := orch.CreateTask(ctx, docsInput())
	res, err := orch.RunTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("exhausted run must fail")
	}

	got, _ := orch.Queue().Get(task.ID)
	if got.Status != tasks.StatusFailed {
		t.Errorf("status = %v, want failed", got.Status)
	}
}

func TestRunTaskNotifiers(t *testing.T) {
	orch, _ := scriptedOrchestrator(t,
		approval.NewGate(approval.WithHandler(approval.AutoApprove())),
		llm.Response{Content: "done"},
	)
	ctx := context.Background()

	var started, completed, approvalAsked int
	var agentEvents int
	orch.Subscribe(NotifierFuncs{
		OnTaskStarted:      func(*tasks.Task) { started++ },
		OnTaskCompleted:    func(*tasks.Task, *agents.Result) { completed++ },
		OnApprovalRequired: func(*tasks.Task) { approvalAsked++ },
		OnAgentEvent:       func(agents.Event) { agentEvents++ },
	})

	task := orch.CreateTask(ctx, docsInput())
	if _, err := orch.RunTask(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	if started != 1 || completed != 1 || approvalAsked != 1 {
		t.Errorf("started=%d completed=%d approval=%d", started, completed, approvalAsked)
	}
	if agentEvents == 0 {
		t.Error("expected agent events")
	}
}

func TestRunTaskReleasesSchedulerSlot(t *testing.T) {
	orch, _ := scriptedOrchestrator(t,
		approval.NewGate(approval.WithHandler(approval.AutoApprove())),
		llm.Response{Content: "done"},
	)
	ctx := context.Background()

	task := orch.CreateTask(ctx, docsInput())
	orch.Scheduler().MarkRunning(task.ID)
	if _, err := orch.RunTask(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	if n := orch.Scheduler().RunningCount(); n != 0 {
		t.Errorf("running count = %d after RunTask", n)
	}
}

func TestRunTaskUnknownRoleReleasesSlot(t *testing.T) {
	orch, _ := scriptedOrchestrator(t, nil)
	ctx := context.Background()

	// Nothing validates Type at creation, so a task with no agent can
	// reach the run loop (a hand-edited snapshot, for instance).
	task := orch.CreateTask(ctx, tasks.CreateInput{
		Type:     tasks.Type("banana"),
		Priority: tasks.PriorityNormal,
		Title:    "no agent handles this",
	})
	orch.Scheduler().MarkRunning(task.ID)

	if _, err := orch.RunTask(ctx, task.ID); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if n := orch.Scheduler().RunningCount(); n != 0 {
		t.Errorf("running count = %d after unknown-role error; slot leaked", n)
	}
}

func TestScheduleBacklog(t *testing.T) {
	queue := tasks.NewQueue()
	queue.Create(tasks.CreateInput{Type: tasks.TypeDocs, Priority: tasks.PriorityLow, Title: "a"})
	queue.Create(tasks.CreateInput{Type: tasks.TypeTest, Priority: tasks.PriorityHigh, Title: "b"})
	done := queue.Create(tasks.CreateInput{Type: tasks.TypeQA, Priority: tasks.PriorityHigh, Title: "c"})
	queue.UpdateStatus(done.ID, tasks.StatusCancelled)

	orch := New(WithQueue(queue))
	if got := orch.ScheduleBacklog(); got != 2 {
		t.Errorf("scheduled %d, want 2", got)
	}
	if orch.Scheduler().QueueLen() != 2 {
		t.Errorf("queue len = %d", orch.Scheduler().QueueLen())
	}
}

func TestRunDrainsQueueAndStops(t *testing.T) {
	orch, _ := scriptedOrchestrator(t,
		approval.NewGate(approval.WithHandler(approval.AutoApprove())),
		llm.Response{Content: "done"},
	)
	orch.config.PollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task := orch.CreateTask(ctx, docsInput())

	errc := make(chan error, 1)
	go func() { errc <- orch.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for {
		got, _ := orch.Queue().Get(task.ID)
		if got.Status == tasks.StatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("task never completed, status %v", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	orch.Stop()
	select {
	case <-errc:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunRefusesDoubleStart(t *testing.T) {
	orch, _ := scriptedOrchestrator(t, nil)
	orch.config.PollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- orch.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if err := orch.Run(ctx); err == nil {
		t.Error("second Run should fail while running")
	}

	orch.Stop()
	<-errc
}
