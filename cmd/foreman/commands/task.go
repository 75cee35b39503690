package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/foreman/internal/store"
	"github.com/marcus/foreman/internal/tasks"
	"github.com/marcus/foreman/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage and run tasks",
	Long:  `Create tasks, inspect their status and results, and run them directly.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <type> <title>",
	Short: "Create a task",
	Long: `Create a task and persist it to the configured store.

Valid types: test, qa, feature, refactor, docs, security.
Use 'foreman run' to process queued tasks, or 'foreman task run' to
execute one immediately.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show task details and result",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskRunCmd = &cobra.Command{
	Use:   "run <type> <title>",
	Short: "Create and run a task immediately",
	Long: `Create a task and execute it in the foreground, bypassing the
scheduler queue. The approval prompt appears on the terminal unless
--auto-approve is set.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTaskRun,
}

func init() {
	addTaskFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringP("priority", "P", string(tasks.PriorityNormal), "Priority (critical, high, normal, low)")
		cmd.Flags().StringP("description", "d", "", "Longer task description")
		cmd.Flags().String("target", "", "File or package the task targets")
		cmd.Flags().StringToString("option", nil, "Task options as key=value pairs")
	}
	addTaskFlags(taskAddCmd)
	addTaskFlags(taskRunCmd)

	taskListCmd.Flags().IntP("limit", "n", 20, "Maximum tasks to list")
	taskListCmd.Flags().Bool("json", false, "Output as JSON")

	taskShowCmd.Flags().Bool("json", false, "Output as JSON")

	taskRunCmd.Flags().Bool("auto-approve", false, "Approve the plan without prompting")
	taskRunCmd.Flags().Duration("timeout", 30*time.Minute, "Execution timeout")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskRunCmd)
	rootCmd.AddCommand(taskCmd)
}

// createInputFromFlags builds a CreateInput from positional args and
// the shared task flags.
func createInputFromFlags(cmd *cobra.Command, args []string) (tasks.CreateInput, error) {
	taskType := tasks.Type(args[0])
	if !taskType.Valid() {
		return tasks.CreateInput{}, fmt.Errorf("unknown task type: %s (valid: test, qa, feature, refactor, docs, security)", args[0])
	}

	priorityStr, _ := cmd.Flags().GetString("priority")
	priority := tasks.Priority(priorityStr)
	switch priority {
	case tasks.PriorityCritical, tasks.PriorityHigh, tasks.PriorityNormal, tasks.PriorityLow:
	default:
		return tasks.CreateInput{}, fmt.Errorf("unknown priority: %s (valid: critical, high, normal, low)", priorityStr)
	}

	description, _ := cmd.Flags().GetString("description")
	target, _ := cmd.Flags().GetString("target")
	optionPairs, _ := cmd.Flags().GetStringToString("option")

	var options map[string]any
	if len(optionPairs) > 0 {
		options = make(map[string]any, len(optionPairs))
		for k, v := range optionPairs {
			switch v {
			case "true":
				options[k] = true
			case "false":
				options[k] = false
			default:
				options[k] = v
			}
		}
	}

	title := args[1]
	for _, extra := range args[2:] {
		title += " " + extra
	}

	return tasks.CreateInput{
		Type:        taskType,
		Priority:    priority,
		Title:       title,
		Description: description,
		Target:      target,
		Options:     options,
	}, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	in, err := createInputFromFlags(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	taskStore, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	queue := tasks.NewQueue(tasks.WithAutonomy(cfg.AutonomyMap()))
	t := queue.Create(in)
	if err := taskStore.CreateTask(cmd.Context(), t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}

	fmt.Printf("created %s (%s, %s)\n", t.ID, t.Type, t.Priority)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	taskStore, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := taskStore.GetRecentTasks(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	fmt.Print(ui.NewRenderer().TaskList(list))
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	taskStore, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := taskStore.GetTask(cmd.Context(), args[0])
	if err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("task not found: %s", args[0])
		}
		return fmt.Errorf("load task: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	fmt.Print(ui.NewRenderer().TaskDetail(t))
	return nil
}

func runTaskRun(cmd *cobra.Command, args []string) error {
	in, err := createInputFromFlags(cmd, args)
	if err != nil {
		return err
	}

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	orch, cleanup, err := buildOrchestrator(cfg, autoApprove)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\ninterrupt received, stopping...")
		cancel()
	}()

	t := orch.CreateTask(ctx, in)
	fmt.Printf("running %s (%s)\n", t.ID, t.Title)

	orch.Scheduler().MarkRunning(t.ID)
	res, err := orch.RunTask(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("run task: %w", err)
	}

	fmt.Println()
	fmt.Print(ui.NewRenderer().RunSummary(t, res))
	if !res.Success {
		os.Exit(1)
	}
	return nil
}
