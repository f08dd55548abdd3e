package incremental

import (
	"context"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/multilevel"
	"github.com/matzehuels/evolayout/pkg/layout/solver"
)

// Engine runs incremental steps with a fixed configuration.
type Engine struct {
	cfg       config.Config
	solver    *solver.Solver
	coarsener *multilevel.Coarsener
	logger    *log.Logger
}

// New creates an Engine. The coarsener is only used in mask mode with
// multilevel enabled and may be nil otherwise.
func New(cfg config.Config, s *solver.Solver, c *multilevel.Coarsener, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Engine{cfg: cfg, solver: s, coarsener: c, logger: logger}
}

// StepResult describes one incremental step.
type StepResult struct {
	Positions geom.Positions     // positions of every node of the current snapshot
	Delta     *Delta             // what changed
	Placement Placement          // how new nodes were seeded
	Pinning   map[string]float64 // nil in mask mode
	Stats     solver.Stats       // stats of the finest solve
}

// Step lays out cur starting from the layout prevPos of prev. Nodes kept
// from prev start where they were, new nodes are seeded by
// [PositionNewNodes] and the solver runs with either graded pinning weights
// or the movable set of the placement, depending on the configured mode.
// prevPos is not modified.
func (e *Engine) Step(ctx context.Context, prev *graph.Graph, prevPos geom.Positions, cur *graph.Graph, rng *rand.Rand) (StepResult, error) {
	if cur.NodeCount() == 0 {
		return StepResult{}, errors.New(errors.ErrCodeEmptyInput, "incremental step to an empty snapshot")
	}

	d := Diff(prev, cur)
	pos := make(geom.Positions, cur.NodeCount())
	for _, id := range cur.NodeIDs() {
		if p, ok := prevPos[id]; ok && !d.IsNew(id) {
			pos[id] = p
		}
	}

	pl := PositionNewNodes(cur, d, pos, PlaceOptions{
		DesiredDistance: e.cfg.DesiredDistance(),
		Rand:            rng,
	})
	res := StepResult{Positions: pos, Delta: d, Placement: pl}

	e.logger.Debug("snapshot diff",
		"new_nodes", len(d.NewNodes),
		"removed_nodes", len(d.RemovedNodes),
		"new_edges", len(d.NewEdges),
		"removed_edges", len(d.RemovedEdges),
		"movable", len(pl.Movable))

	var err error
	switch e.cfg.Incremental.Mode {
	case config.ModeMask:
		if e.cfg.Incremental.Multilevel && e.coarsener != nil {
			var mr multilevel.Result
			mr, err = e.coarsener.Run(ctx, cur, pos, multilevel.Options{Movable: pl.IsMovable, Rand: rng})
			if len(mr.Stats) > 0 {
				res.Stats = mr.Stats[0]
			}
		} else {
			res.Stats, err = e.solver.Run(ctx, cur, pos, solver.RunOptions{
				Iterations: e.cfg.Solver.Iterations,
				Movable:    pl.IsMovable,
			})
		}
	default:
		res.Pinning = ComputePinningWeights(cur, d, pl, e.cfg.Incremental)
		res.Stats, err = e.solver.Run(ctx, cur, pos, solver.RunOptions{
			Iterations: e.cfg.Solver.Iterations,
			Pinning:    res.Pinning,
		})
	}
	return res, err
}
