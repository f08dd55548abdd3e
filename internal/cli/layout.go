package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/pipeline"
)

// layoutCommand creates the layout command for solving a single snapshot.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		mode   string
		flags  engineFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Compute a force-directed layout for a graph snapshot",
		Long: `Compute a force-directed layout for a graph snapshot.

The input is a snapshot file (nodes, edges and optional x/y positions).
Positions present in the file are used as the starting layout; missing ones
are scattered around the origin. The output is the same snapshot format with
every position filled in.

Modes:
  static      run the solver on the whole graph
  multilevel  coarsen, solve the coarsest level, then refine level by level

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(mode, c.Logger)
			if err != nil {
				return err
			}
			return c.runSingle(cmd.Context(), args[0], outputPath(args[0], output, ".layout.json"), opts, flags.noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().StringVarP(&mode, "mode", "m", pipeline.ModeStatic, "layout mode: static, multilevel")
	flags.register(cmd)

	return cmd
}

// refineCommand creates the refine command for relaxing high-energy nodes.
func (c *CLI) refineCommand() *cobra.Command {
	var (
		output string
		flags  engineFlags
	)

	cmd := &cobra.Command{
		Use:   "refine [layout.json]",
		Short: "Relax the high-energy nodes of a solved layout",
		Long: `Relax the high-energy nodes of a solved layout.

Every node's potential energy is computed; nodes whose energy deviates from
the mean by more than the configured threshold are moved by a short solver
run while all other nodes stay fixed. Every node of the input must have a
position.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(pipeline.ModeRefine, c.Logger)
			if err != nil {
				return err
			}
			return c.runSingle(cmd.Context(), args[0], outputPath(args[0], output, ".refined.json"), opts, flags.noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.refined.json)")
	flags.register(cmd)

	return cmd
}

// runSingle loads one snapshot, lays it out in opts.Mode and writes output.
func (c *CLI) runSingle(ctx context.Context, input, output string, opts pipeline.Options, noCache bool) error {
	g, pos, err := graph.ReadFile(input)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Computing %s layout...", opts.Mode))
	spinner.Start()

	res, err := runner.Run(ctx, g, pos, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := graph.WriteFile(output, res.Graph, res.Positions); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printSuccess("Layout complete")
	printFile(output)
	printStats(res.Stats, res.CacheHit)
	if res.Energy != nil && len(res.Energy.High) > 0 {
		printDetail("relaxed: %v", res.Energy.High)
	}
	printNewline()
	printNextStep("Render", appName+" render "+output)

	return nil
}
