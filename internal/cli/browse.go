package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// browseCommand creates the browse command for inspecting stored runs.
func (c *CLI) browseCommand() *cobra.Command {
	var storeDir string

	cmd := &cobra.Command{
		Use:   "browse [run-id]",
		Short: "Step through the frames of a stored run",
		Long: `Step through the frames of a stored run in the terminal.

Without a run ID, a list of stored runs is shown first. Each frame is drawn
as a scatter plot of node positions; nodes that appeared in that frame are
highlighted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return c.runBrowse(cmd.Context(), storeDir, id)
		},
	}

	cmd.Flags().StringVar(&storeDir, "store-dir", "", "run store directory (default: $XDG_DATA_HOME/evolayout/runs)")
	return cmd
}

func (c *CLI) runBrowse(ctx context.Context, storeDir, id string) error {
	st, err := openStore(storeDir)
	if err != nil {
		return err
	}
	defer st.Close()

	if id == "" {
		runs, err := st.ListRuns(ctx, 0)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			printInfo("No stored runs")
			printNextStep("Store one", appName+" timeline --save <dir>")
			return nil
		}
		final, err := tea.NewProgram(NewRunListModel(runs), tea.WithContext(ctx)).Run()
		if err != nil {
			return fmt.Errorf("run picker: %w", err)
		}
		sel := final.(RunListModel).Selected
		if sel == nil {
			return nil
		}
		id = sel.ID
	}

	run, err := st.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if _, err := tea.NewProgram(NewFrameBrowserModel(run), tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("frame browser: %w", err)
	}
	return nil
}
