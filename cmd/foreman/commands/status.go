package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/foreman/internal/tasks"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent task outcomes",
	Long: `Summarize recent tasks from the configured store: counts per
status plus the latest tasks in each state.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntP("limit", "n", 50, "How many recent tasks to summarize")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

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
		return fmt.Errorf("load tasks: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No tasks recorded.")
		return nil
	}

	counts := map[tasks.Status]int{}
	for _, t := range list {
		counts[t.Status]++
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, status := range []tasks.Status{
		tasks.StatusPending, tasks.StatusAwaitingApproval, tasks.StatusRunning,
		tasks.StatusCompleted, tasks.StatusFailed, tasks.StatusCancelled,
	} {
		if counts[status] > 0 {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", status, counts[status])
		}
	}
	_ = w.Flush()
	fmt.Printf("\n%d task(s) in the last %d\n", len(list), limit)
	return nil
}
