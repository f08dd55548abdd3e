package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// runsCommand creates the run store management command.
func (c *CLI) runsCommand() *cobra.Command {
	var storeDir string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored timeline runs",
	}
	cmd.PersistentFlags().StringVar(&storeDir, "store-dir", "", "run store directory (default: $XDG_DATA_HOME/evolayout/runs)")

	cmd.AddCommand(c.runsListCommand(&storeDir))
	cmd.AddCommand(c.runsDeleteCommand(&storeDir))
	cmd.AddCommand(c.runsPruneCommand(&storeDir))
	return cmd
}

func (c *CLI) runsListCommand(storeDir *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*storeDir)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				printInfo("No stored runs")
				return nil
			}
			now := time.Now()
			for _, r := range runs {
				printKeyValue(r.Mode, fmt.Sprintf("%s  %d frames  %s", r.ID, r.Frames, StyleDim.Render(formatRelativeTime(r.CreatedAt, now))))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 = all)")
	return cmd
}

func (c *CLI) runsDeleteCommand(storeDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run-id]...",
		Short: "Delete stored runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*storeDir)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, id := range args {
				if err := st.DeleteRun(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
			}
			printSuccess("Deleted %d run(s)", len(args))
			return nil
		},
	}
}

func (c *CLI) runsPruneCommand(storeDir *string) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			st, err := openStore(*storeDir)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("prune runs: %w", err)
			}
			printSuccess("Pruned %d run(s)", n)
			printDetail("Directory: %s", st.Path())
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum age of pruned runs")
	return cmd
}
