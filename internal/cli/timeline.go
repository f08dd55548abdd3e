package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/pipeline"
)

// timelineOpts holds the command-line flags for the timeline command.
type timelineOpts struct {
	outDir   string
	formats  []string
	labels   bool
	save     bool
	storeDir string
	engine   engineFlags
}

// timelineCommand creates the timeline command for laying out a series of snapshots.
func (c *CLI) timelineCommand() *cobra.Command {
	var formatsStr string
	opts := timelineOpts{}

	cmd := &cobra.Command{
		Use:   "timeline [dir|timeline.json]",
		Short: "Lay out a series of snapshots with stable positions",
		Long: `Lay out a series of snapshots with stable positions.

The input is either a directory of snapshot files (processed in lexical
order) or a single file holding {"snapshots": [...]}. The first snapshot is
solved with the multilevel coarsener; every later one is an incremental step
from the layout before it, so unchanged regions stay where they were.

Each solved frame is written to the output directory as <label>.layout.json,
and optionally rendered with --format. With --save the run is kept in the
local run store and can be inspected with 'browse'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if formatsStr != "" {
				opts.formats = parseFormats(formatsStr)
				if err := validateFormats(opts.formats); err != nil {
					return err
				}
			}
			return c.runTimeline(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "output", "o", "", "output directory (default: <input>.frames)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "also render each frame: svg, png, dot (comma-separated)")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "draw node labels in renders")
	cmd.Flags().BoolVar(&opts.save, "save", false, "keep the run in the run store")
	cmd.Flags().StringVar(&opts.storeDir, "store-dir", "", "run store directory (default: $XDG_DATA_HOME/evolayout/runs)")
	opts.engine.register(cmd)

	return cmd
}

// runTimeline solves every snapshot of input and writes the frames.
func (c *CLI) runTimeline(ctx context.Context, input string, opts *timelineOpts) error {
	logger := loggerFromContext(ctx)

	snaps, err := graph.ReadTimeline(input)
	if err != nil {
		return fmt.Errorf("load timeline %s: %w", input, err)
	}
	logger.Debugf("Loaded %d snapshots", len(snaps))

	popts, err := opts.engine.options(pipeline.ModeTimeline, c.Logger)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(opts.engine.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	outDir := opts.outDir
	if outDir == "" {
		outDir = outputPath(filepath.Clean(input), "", ".frames")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Solving frame 1/%d...", len(snaps)))
	spinner.Start()

	// Frames are solved in order; their renders run in the background.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	var paths []string

	tl, err := runner.RunTimeline(ctx, snaps, popts, func(i int, label string, res *pipeline.Result) {
		if i+1 < len(snaps) {
			spinner.SetMessage(fmt.Sprintf("Solving frame %d/%d...", i+2, len(snaps)))
		}
		path := filepath.Join(outDir, label+".layout.json")
		paths = append(paths, path)
		eg.Go(func() error {
			if err := graph.WriteFile(path, res.Graph, res.Positions); err != nil {
				return fmt.Errorf("write frame %s: %w", label, err)
			}
			for _, f := range opts.formats {
				ropts := pipeline.RenderOptions{Format: f, Labels: opts.labels}
				if err := writeArtifact(egCtx, runner, res, ropts, filepath.Join(outDir, label+"."+f)); err != nil {
					return err
				}
			}
			return nil
		})
	})
	renderErr := eg.Wait()
	if err != nil {
		spinner.StopWithError("Timeline failed")
		return fmt.Errorf("compute timeline: %w", err)
	}
	if renderErr != nil {
		spinner.StopWithError("Writing frames failed")
		return renderErr
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if opts.save {
		st, err := openStore(opts.storeDir)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRun(ctx, tl.Run(popts.Seed)); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	prog.done("Timeline solved", "frames", len(tl.Frames))
	printSuccess("Timeline complete: %d frames", len(tl.Frames))
	printDetail("Directory: %s", outDir)
	for i, res := range tl.Frames {
		printKeyValue(tl.Labels[i], filepath.Base(paths[i]))
		printStats(res.Stats, res.CacheHit)
	}
	printNewline()
	if opts.save {
		printKeyValue("run", tl.RunID)
		printNextStep("Browse", appName+" browse "+tl.RunID)
	} else {
		printNextStep("Render", appName+" render "+paths[len(paths)-1])
	}
	return nil
}
