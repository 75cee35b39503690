package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/foreman/internal/approval"
	"github.com/marcus/foreman/internal/config"
	"github.com/marcus/foreman/internal/llm"
	"github.com/marcus/foreman/internal/logging"
	"github.com/marcus/foreman/internal/orchestrator"
	"github.com/marcus/foreman/internal/scheduler"
	"github.com/marcus/foreman/internal/store"
	"github.com/marcus/foreman/internal/tasks"
	"github.com/marcus/foreman/internal/tools"
)

// initLogging configures the global logger from config. --verbose
// forces debug level over whatever the config says.
func initLogging(cmd *cobra.Command) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	lc := cfg.LoggingOptions()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		lc.Level = "debug"
	}
	if err := logging.Init(lc); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	return nil
}

// loadConfigFromFlags loads config from --config or the default path.
func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore builds the TaskStore the config selects. The returned
// cleanup closes backends that hold resources.
func openStore(cfg *config.Config) (store.TaskStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		s, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case config.StoreRemote:
		return store.NewRemoteStore(cfg.Store.URL, cfg.Store.Token), func() {}, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

// buildClient selects the completion provider from config.
func buildClient(cfg *config.Config) llm.CompletionClient {
	if cfg.LLM.Provider == "scripted" {
		return llm.NewScriptedClient()
	}
	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("FOREMAN_API_KEY")
	}
	return llm.NewOpenAIClient(apiKey, cfg.LLM.Model)
}

// stdinPrompt reads one line from stdin for interactive approvals.
func stdinPrompt(question string) (string, error) {
	fmt.Print(question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// buildOrchestrator assembles an orchestrator from config. autoApprove
// replaces the interactive handler, for unattended runs.
func buildOrchestrator(cfg *config.Config, autoApprove bool, extra ...orchestrator.Option) (*orchestrator.Orchestrator, func(), error) {
	taskStore, cleanup, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	handler := approval.Interactive(stdinPrompt)
	if autoApprove {
		handler = approval.AutoApprove()
	}

	gateOpts := []approval.Option{approval.WithHandler(handler)}
	if cfg.Approval.MaxAutoApprovals > 0 {
		gateOpts = append(gateOpts, approval.WithMaxAutoApprovals(cfg.Approval.MaxAutoApprovals))
	}

	registry := tools.NewRegistry()
	if err := registry.RegisterAll(tools.Builtins(cfg.WorkDir)...); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("register tools: %w", err)
	}

	opts := []orchestrator.Option{
		orchestrator.WithQueue(tasks.NewQueue(tasks.WithAutonomy(cfg.AutonomyMap()))),
		orchestrator.WithScheduler(newScheduler(cfg)),
		orchestrator.WithGate(approval.NewGate(gateOpts...)),
		orchestrator.WithTools(registry),
		orchestrator.WithClient(buildClient(cfg)),
		orchestrator.WithStore(taskStore),
		orchestrator.WithConfig(orchestrator.Config{
			MaxIterations: cfg.Agents.MaxIterations,
			WorkDir:       cfg.WorkDir,
		}),
	}
	opts = append(opts, extra...)
	return orchestrator.New(opts...), cleanup, nil
}

func newScheduler(cfg *config.Config) *scheduler.Scheduler {
	return scheduler.New(scheduler.WithOptions(cfg.SchedulerOptions()))
}
