package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/pipeline"
	"github.com/matzehuels/evolayout/pkg/render/nodelink"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output    string   // output file path (or base path for multiple formats)
	formats   []string // output formats: "svg", "png", "dot"
	labels    bool     // draw node IDs
	scale     float64  // coordinate scale factor
	highlight []string // node IDs drawn in the highlight color
	noCache   bool
}

// renderCommand creates the render command for drawing solved layouts.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [layout.json]",
		Short: "Draw a solved layout as SVG, PNG or DOT",
		Long: `Draw a solved layout as SVG, PNG or DOT.

Nodes are pinned at their computed positions; Graphviz only draws them.
Several formats may be requested at once (-f svg,png), in which case one
file per format is written next to the base output path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>.<format>)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output formats, comma-separated: svg (default), png, dot")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "draw node labels")
	cmd.Flags().Float64Var(&opts.scale, "scale", 0, "coordinate scale factor (default 1)")
	cmd.Flags().StringSliceVar(&opts.highlight, "highlight", nil, "node IDs to highlight")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")

	return cmd
}

// parseFormats parses the --format flag into a slice of output formats.
// If empty, defaults to ["svg"].
func parseFormats(s string) []string {
	if s == "" {
		return []string{nodelink.FormatSVG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// validateFormats checks that all requested formats are supported.
func validateFormats(formats []string) error {
	for _, f := range formats {
		if !slices.Contains(nodelink.Formats, f) {
			return fmt.Errorf("invalid format: %s (must be one of %s)", f, strings.Join(nodelink.Formats, ", "))
		}
	}
	return nil
}

// basePath derives the base output path from the output and input file paths.
// A known format extension on output is stripped.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if slices.Contains(nodelink.Formats, strings.TrimPrefix(ext, ".")) {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// runRender loads a solved layout and renders every requested format.
func (c *CLI) runRender(ctx context.Context, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)

	g, pos, err := graph.ReadFile(input)
	if err != nil {
		return fmt.Errorf("load layout %s: %w", input, err)
	}
	logger.Debugf("Loaded layout: %d nodes, %d edges", g.NodeCount(), g.EdgeCount())

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res := &pipeline.Result{Graph: g, Positions: pos}
	var paths []string
	if len(opts.formats) == 1 && opts.output != "" {
		paths = []string{opts.output}
	} else {
		base := basePath(opts.output, input)
		for _, f := range opts.formats {
			paths = append(paths, base+"."+f)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, format := range opts.formats {
		eg.Go(func() error {
			return writeArtifact(ctx, runner, res, pipeline.RenderOptions{
				Format:    format,
				Labels:    opts.labels,
				Scale:     opts.scale,
				Highlight: opts.highlight,
			}, paths[i])
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	printSuccess("Rendered %d file(s)", len(paths))
	for _, p := range paths {
		printFile(p)
	}
	return nil
}

// writeArtifact renders res and writes it to path.
func writeArtifact(ctx context.Context, runner *pipeline.Runner, res *pipeline.Result, opts pipeline.RenderOptions, path string) error {
	data, hit, err := runner.Render(ctx, res, opts)
	if err != nil {
		return fmt.Errorf("render %s: %w", opts.Format, err)
	}
	loggerFromContext(ctx).Debug("rendered", "format", opts.Format, "bytes", len(data), "cached", hit)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
