package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/pipeline"
)

const watchDebounce = 150 * time.Millisecond

// watchCommand creates the watch command for live incremental layout.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		output string
		flags  engineFlags
	)

	cmd := &cobra.Command{
		Use:   "watch [graph.json]",
		Short: "Re-layout a snapshot incrementally whenever it changes",
		Long: `Re-layout a snapshot incrementally whenever it changes.

The file is solved once with the multilevel coarsener. After that every
save triggers an incremental step from the previous layout, so only the
changed region moves. The layout is written to the output file after each
step. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(pipeline.ModeIncremental, c.Logger)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(flags.noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			w := &snapshotWatcher{
				input:  args[0],
				output: outputPath(args[0], output, ".layout.json"),
				runner: runner,
				opts:   opts,
				logger: c.Logger,
			}
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	flags.register(cmd)

	return cmd
}

// snapshotWatcher keeps the layout of one snapshot file up to date.
type snapshotWatcher struct {
	input  string
	output string
	runner *pipeline.Runner
	opts   pipeline.Options
	logger *log.Logger

	last  *pipeline.Result
	steps int
}

// Run solves the input once and then steps on every change until ctx ends.
// The parent directory is watched because editors often replace files
// instead of writing them in place.
func (w *snapshotWatcher) Run(ctx context.Context) error {
	if err := w.step(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.input)); err != nil {
		return fmt.Errorf("watch %s: %w", w.input, err)
	}
	printInfo("Watching %s", w.input)

	debounce := time.NewTimer(0)
	<-debounce.C
	target := filepath.Clean(w.input)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)

		case <-debounce.C:
			if err := w.step(ctx); err != nil {
				// Half-written files are common; wait for the next save.
				printWarning("%v", err)
			}
		}
	}
}

// step lays out the current file content and writes the result.
func (w *snapshotWatcher) step(ctx context.Context) error {
	g, pos, err := graph.ReadFile(w.input)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", w.input, err)
	}

	var res *pipeline.Result
	if w.last == nil {
		res, err = w.runner.RunMultilevel(ctx, g, pos, w.opts)
	} else {
		res, err = w.runner.RunIncrementalStep(ctx, w.last.Graph, w.last.Positions, g, w.opts)
	}
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}

	if err := graph.WriteFile(w.output, res.Graph, res.Positions); err != nil {
		return fmt.Errorf("write output %s: %w", w.output, err)
	}
	w.last = res
	w.steps++

	if w.steps == 1 {
		printSuccess("Initial layout written")
	} else {
		printSuccess("Step %d written", w.steps-1)
	}
	printFile(w.output)
	printStats(res.Stats, res.CacheHit)
	return nil
}
