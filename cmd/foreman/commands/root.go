// Package commands implements the foreman CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/foreman/internal/logging"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Agent task orchestrator",
	Long: `Foreman queues development tasks, schedules them by priority, and
runs them through role-specific AI agents with an approval gate in front
of anything risky.

Drop task files in the inbox, define recurring work on cron schedules,
or submit tasks directly from the command line.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initLogging(cmd)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logging.Get().Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.config/foreman/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
}
