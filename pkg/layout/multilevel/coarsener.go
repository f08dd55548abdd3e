// Package multilevel lays out large graphs by coarsening them into a
// hierarchy of smaller graphs, solving the coarsest one and interpolating
// the result back down level by level.
//
// # Coarsening
//
// Each pass asks a [Merger] for disjoint adjacent node pairs and collapses
// every pair into a metanode placed at the midpoint of its constituents.
// A metanode's weight is the sum of its constituents' weights and it may
// move if either constituent may. Coarsening stops once the node count is
// at or below the configured threshold or a pass finds nothing to merge.
//
// # Interpolation
//
// The coarsest level is solved first. Walking back towards the input
// graph, every metanode of a level is expanded into its two constituents,
// placed at the metanode's solved position offset by ±(Perturbation, 0),
// and the solver runs again with an iteration budget interpolated linearly
// between the finest and coarsest budgets by depth. Immovable nodes keep
// their input position through the whole hierarchy.
package multilevel

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/solver"
)

// Merge records one collapse: Meta replaced A and B.
type Merge struct {
	Meta, A, B string
}

// Hierarchy is a coarsening series built on a single working graph.
// Level 0 is the input graph; level i+1 results from applying Passes[i] to
// level i. Graph holds the coarsest level and can be expanded back
// pass by pass.
type Hierarchy struct {
	Graph     *graph.Graph
	Positions geom.Positions
	Weight    map[string]int
	CanMove   map[string]bool
	Passes    [][]Merge
	Counts    []int // node count per level, finest first
}

// Depth returns the index of the coarsest level.
func (h *Hierarchy) Depth() int { return len(h.Passes) }

// Coarsener runs the multilevel scheme.
type Coarsener struct {
	cfg    config.Multilevel
	solver *solver.Solver
	merger Merger
	logger *log.Logger
}

// New creates a Coarsener that solves every level with s. The merger is
// chosen by cfg.Multilevel.Merger.
func New(cfg config.Config, s *solver.Solver, logger *log.Logger) (*Coarsener, error) {
	m, err := NewMerger(cfg.Multilevel.Merger)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Coarsener{cfg: cfg.Multilevel, solver: s, merger: m, logger: logger}, nil
}

// Merger returns the active merge strategy.
func (c *Coarsener) Merger() Merger { return c.merger }

// Options carries per-run inputs.
type Options struct {
	// Movable marks root nodes that may move. Nil means every node.
	Movable func(id string) bool
	// Rand drives randomized mergers. Nil visits nodes in graph order.
	Rand *rand.Rand
}

// Result summarizes a multilevel run.
type Result struct {
	Levels     int            // number of levels including the input graph
	Counts     []int          // node count per level, finest first
	Iterations []int          // solver budget per level, finest first
	Stats      []solver.Stats // solver stats per level, finest first
}

// Run lays out g, updating pos in place. Every node of g needs a starting
// position. g itself is never modified.
//
// An empty graph returns EMPTY_INPUT and leaves pos untouched.
func (c *Coarsener) Run(ctx context.Context, g *graph.Graph, pos geom.Positions, opts Options) (Result, error) {
	h, err := c.Coarsen(g, pos, opts)
	if err != nil {
		return Result{}, err
	}

	depth := h.Depth()
	res := Result{
		Levels:     depth + 1,
		Counts:     h.Counts,
		Iterations: make([]int, depth+1),
		Stats:      make([]solver.Stats, depth+1),
	}
	c.logger.Debug("hierarchy built", "merger", c.merger.Name(), "levels", res.Levels, "coarsest", h.Graph.NodeCount())

	for level := depth; level >= 0; level-- {
		if level < depth {
			if err := c.expand(h, level); err != nil {
				return res, err
			}
		}
		iters := c.Budget(level, depth)
		stats, err := c.solver.Run(ctx, h.Graph, h.Positions, solver.RunOptions{
			Iterations: iters,
			Movable:    func(id string) bool { return h.CanMove[id] },
		})
		if err != nil && !errors.IsInformational(err) {
			return res, fmt.Errorf("level %d: %w", level, err)
		}
		res.Iterations[level] = iters
		res.Stats[level] = stats
		c.logger.Debug("level solved", "level", level, "nodes", h.Graph.NodeCount(), "iterations", iters)
	}

	for _, id := range g.NodeIDs() {
		pos[id] = h.Positions[id]
	}
	return res, nil
}

// Coarsen builds the coarsening series of g without solving it. Neither g
// nor pos is modified.
func (c *Coarsener) Coarsen(g *graph.Graph, pos geom.Positions, opts Options) (*Hierarchy, error) {
	if g.NodeCount() == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "coarsening an empty graph")
	}

	h := &Hierarchy{
		Graph:     g.Clone(),
		Positions: make(geom.Positions, g.NodeCount()),
		Weight:    make(map[string]int, g.NodeCount()),
		CanMove:   make(map[string]bool, g.NodeCount()),
	}
	for _, id := range g.NodeIDs() {
		p, ok := pos[id]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "node %q has no position", id)
		}
		h.Positions[id] = p
		h.Weight[id] = 1
		h.CanMove[id] = opts.Movable == nil || opts.Movable(id)
	}
	h.Counts = append(h.Counts, h.Graph.NodeCount())

	seq := 0
	for h.Graph.NodeCount() > c.cfg.Threshold {
		pairs := c.merger.Match(h.Graph, h.Weight, opts.Rand)
		if len(pairs) == 0 {
			break
		}
		level := len(h.Passes) + 1
		pass := make([]Merge, 0, len(pairs))
		for _, p := range pairs {
			meta := c.metaID(h.Graph, level, &seq)
			if err := h.Graph.Collapse(p.A, p.B, meta); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "collapse %s+%s", p.A, p.B)
			}
			h.Positions[meta] = r2.Scale(0.5, r2.Add(h.Positions[p.A], h.Positions[p.B]))
			h.Weight[meta] = h.Weight[p.A] + h.Weight[p.B]
			h.CanMove[meta] = h.CanMove[p.A] || h.CanMove[p.B]
			pass = append(pass, Merge{Meta: meta, A: p.A, B: p.B})
		}
		h.Passes = append(h.Passes, pass)
		h.Counts = append(h.Counts, h.Graph.NodeCount())
	}
	return h, nil
}

// metaID returns a fresh metanode ID for level.
func (c *Coarsener) metaID(g *graph.Graph, level int, seq *int) string {
	for {
		*seq++
		id := fmt.Sprintf("~L%d.%d", level, *seq)
		if !g.HasNode(id) {
			return id
		}
	}
}

// expand undoes the pass that produced level+1, restoring level. Movable
// constituents straddle the metanode's solved position; immovable ones
// return to the position they had when collapsed.
func (c *Coarsener) expand(h *Hierarchy, level int) error {
	pass := h.Passes[level]
	off := r2.Vec{X: c.cfg.Perturbation}
	for i := len(pass) - 1; i >= 0; i-- {
		m := pass[i]
		a, b, err := h.Graph.Expand(m.Meta)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "expand %s", m.Meta)
		}
		center := h.Positions[m.Meta]
		if h.CanMove[a] {
			h.Positions[a] = r2.Add(center, off)
		}
		if h.CanMove[b] {
			h.Positions[b] = r2.Sub(center, off)
		}
		delete(h.Positions, m.Meta)
		delete(h.Weight, m.Meta)
		delete(h.CanMove, m.Meta)
	}
	h.Passes = h.Passes[:level]
	return nil
}

// Budget returns the solver iteration budget at level of a hierarchy whose
// coarsest level is depth. A hierarchy of a single level gets the coarsest
// budget.
func (c *Coarsener) Budget(level, depth int) int {
	return translate(level, 0, depth, c.cfg.FinestIterations, c.cfg.CoarsestIterations)
}

// translate maps v from [fromLo, fromHi] linearly onto [toLo, toHi],
// rounding to the nearest integer.
func translate(v, fromLo, fromHi, toLo, toHi int) int {
	if fromHi == fromLo {
		return toHi
	}
	f := float64(v-fromLo) / float64(fromHi-fromLo)
	return toLo + int(f*float64(toHi-toLo)+0.5)
}
