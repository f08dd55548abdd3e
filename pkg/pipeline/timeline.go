package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
)

// Run dispatches a whole-graph layout by opts.Mode: static, multilevel or
// refine. Incremental and timeline runs need more than one graph and have
// their own entry points.
func (r *Runner) Run(ctx context.Context, g *graph.Graph, pos geom.Positions, opts Options) (*Result, error) {
	switch opts.Mode {
	case "", ModeStatic:
		return r.RunStatic(ctx, g, pos, opts)
	case ModeMultilevel:
		return r.RunMultilevel(ctx, g, pos, opts)
	case ModeRefine:
		return r.RunRefinement(ctx, g, pos, opts)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "mode %q needs more than one snapshot", opts.Mode)
	}
}

// FrameFunc is called after each timeline frame is solved.
type FrameFunc func(index int, label string, res *Result)

// RunTimeline lays out a series of snapshots. The first snapshot is solved
// with the multilevel coarsener from the positions it carries (missing
// ones are scattered); every later snapshot is an incremental step from the
// layout of the one before it, so positions stay stable across frames.
// Positions stored in later snapshots are ignored.
func (r *Runner) RunTimeline(ctx context.Context, snaps []graph.Snapshot, opts Options, onFrame FrameFunc) (*TimelineResult, error) {
	if len(snaps) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "timeline without snapshots")
	}
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	tl := &TimelineResult{RunID: uuid.NewString()}
	var prev *Result
	for i, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return tl, err
		}
		g, pos, err := snap.ToGraph()
		if err != nil {
			return tl, fmt.Errorf("snapshot %q: %w", snap.Label, err)
		}

		var res *Result
		if prev == nil {
			res, err = r.RunMultilevel(ctx, g, pos, opts)
		} else {
			res, err = r.RunIncrementalStep(ctx, prev.Graph, prev.Positions, g, opts)
		}
		if err != nil {
			return tl, fmt.Errorf("snapshot %q: %w", snap.Label, err)
		}
		res.RunID = tl.RunID

		tl.Frames = append(tl.Frames, res)
		tl.Labels = append(tl.Labels, snap.Label)
		if onFrame != nil {
			onFrame(i, snap.Label, res)
		}
		prev = res
	}

	opts.Logger.Info("timeline finished", "run", tl.RunID, "frames", len(tl.Frames))
	return tl, nil
}
