package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/foreman/internal/agents"
	"github.com/marcus/foreman/internal/logging"
	"github.com/marcus/foreman/internal/orchestrator"
	"github.com/marcus/foreman/internal/reporting"
	"github.com/marcus/foreman/internal/state"
	"github.com/marcus/foreman/internal/tasks"
	"github.com/marcus/foreman/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator daemon",
	Long: `Start the orchestrator and process tasks until interrupted.

Tasks come from the inbox directory (if enabled), recurring cron
schedules in the config, and 'foreman task add'. A markdown report is
written when the run ends.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().Bool("auto-approve", false, "Approve all plans without prompting")
	runCmd.Flags().Bool("no-report", false, "Skip writing the run report")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	noReport, _ := cmd.Flags().GetBool("no-report")

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	snapshot := state.NewFile("")
	queue, err := snapshot.Load(tasks.WithAutonomy(cfg.AutonomyMap()))
	if err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}

	orch, cleanup, err := buildOrchestrator(cfg, autoApprove, orchestrator.WithQueue(queue))
	if err != nil {
		return err
	}
	defer cleanup()
	orch.ScheduleBacklog()

	logger := logging.Component("daemon")
	renderer := ui.NewRenderer()
	collector := reporting.NewCollector()

	orch.Subscribe(orchestrator.NotifierFuncs{
		OnTaskStarted: func(t *tasks.Task) {
			fmt.Printf("running %s (%s)\n", t.ID, t.Title)
		},
		OnTaskCompleted: func(t *tasks.Task, r *agents.Result) {
			collector.OnCompleted(t, r)
			fmt.Print(renderer.RunSummary(t, r))
		},
		OnTaskFailed: func(t *tasks.Task, err error) {
			collector.OnFailed(t, err)
			fmt.Printf("failed %s: %v\n", t.ID, err)
		},
		OnApprovalRequired: func(t *tasks.Task) {
			fmt.Printf("task %s awaits approval\n", t.ID)
		},
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	submit := func(in tasks.CreateInput) *tasks.Task {
		return orch.CreateTask(ctx, in)
	}

	var inbox *tasks.Inbox
	if cfg.Inbox.Enabled {
		inbox, err = tasks.NewInbox(cfg.Inbox.Dir, submit)
		if err != nil {
			return fmt.Errorf("start inbox: %w", err)
		}
		inbox.Start()
		defer func() { _ = inbox.Close() }()
		logger.Infof("inbox watching %s", cfg.Inbox.Dir)
	}

	if len(cfg.Recurring) > 0 {
		cronSub := tasks.NewCronSubmitter(submit)
		for _, rt := range cfg.Recurring {
			if err := cronSub.Add(rt); err != nil {
				return fmt.Errorf("recurring task: %w", err)
			}
		}
		cronSub.Start()
		defer cronSub.Stop()
		logger.Infof("%d recurring schedule(s) active", len(cfg.Recurring))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\ninterrupt received, stopping...")
		orch.Stop()
		cancel()
	}()

	fmt.Println("foreman running, ctrl-c to stop")
	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if err := snapshot.Save(queue); err != nil {
		logger.Errorf("saving queue snapshot: %v", err)
	}

	if !noReport {
		results := collector.Results()
		path := reporting.DefaultRunReportPath(time.Now())
		if err := reporting.SaveRunReport(results, path, logging.CurrentLogPath()); err != nil {
			logger.Errorf("saving run report: %v", err)
		} else {
			fmt.Printf("report written to %s\n", path)
		}
		if err := reporting.SaveRunResults(results, reporting.DefaultRunResultsPath(time.Now())); err != nil {
			logger.Errorf("saving run results: %v", err)
		}
	}
	return nil
}
