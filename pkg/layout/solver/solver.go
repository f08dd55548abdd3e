// Package solver runs the force-directed displacement loop.
//
// Each iteration has two strictly separated phases. The accumulation phase
// reads the positions left by the previous iteration and sums, for every
// unlocked node, the approximate repulsion from the spatial tree and the
// spring attraction along its edges. The apply phase then clamps each
// node's displacement to the current temperature and moves it. No position
// changes while forces are being accumulated.
//
// The spatial tree is rebuilt at the first RebuildWarmup iterations and then
// every RebuildEvery-th iteration (0-3 and every 20th by default). Between
// rebuilds the tree's centroids and radii go stale while leaf members are
// evaluated at their current positions.
//
// Nodes are gated by an optional movable predicate and optional pinning
// weights: with weights, a node is unlocked in an iteration once the
// fraction of completed iterations reaches its weight, so weight 0 moves from
// the start and weight 1 never moves.
package solver

import (
	"context"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/force"
	"github.com/matzehuels/evolayout/pkg/layout/spatial"
)

// Solver runs layouts with a fixed configuration. A Solver holds no
// per-run state and may be shared between goroutines.
type Solver struct {
	cfg    config.Config
	cfgErr error
	model  force.Model
	logger *log.Logger
}

// New creates a Solver. A nil logger discards output. An invalid cfg is
// reported by every subsequent [Solver.Run].
func New(cfg config.Config, logger *log.Logger) *Solver {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Solver{cfg: cfg, cfgErr: cfg.Validate(), model: force.New(cfg.Force), logger: logger}
}

// Config returns the solver configuration.
func (s *Solver) Config() config.Config { return s.cfg }

// Model returns the force model.
func (s *Solver) Model() force.Model { return s.model }

// RunOptions selects what a single [Solver.Run] call does.
type RunOptions struct {
	// Iterations is the exact iteration budget. Zero leaves positions untouched.
	Iterations int

	// Movable reports whether a node may move at all. Nil means every node.
	Movable func(id string) bool

	// Pinning holds per-node weights in [0,1]. Nodes missing from the map
	// have weight 0.
	Pinning map[string]float64

	// Temperature overrides the initial temperature when > 0.
	Temperature float64
}

// Options returns RunOptions with the configured iteration budget.
func (s *Solver) Options() RunOptions {
	return RunOptions{Iterations: s.cfg.Solver.Iterations}
}

// Stats describes a finished run.
type Stats struct {
	Iterations         int     // iterations actually run
	Rebuilds           int     // spatial tree builds
	InitialTemperature float64 // temperature of the first iteration
	FinalTemperature   float64 // temperature after the last iteration
	Displacement       float64 // total clamped displacement of the last iteration
	Converged          bool    // the early-exit test fired
}

// Run lays out g, reading and updating pos in place. Every node of g must
// have a position. Topology is never modified.
//
// With EarlyExit enabled, reaching the iteration cap without the test
// firing returns valid stats together with a CONVERGENCE_BUDGET_EXCEEDED
// error, which callers may treat as informational. Cancelling ctx stops the
// run between iterations and returns ctx.Err(); positions then hold the
// state of the last completed iteration.
func (s *Solver) Run(ctx context.Context, g *graph.Graph, pos geom.Positions, opts RunOptions) (Stats, error) {
	if s.cfgErr != nil {
		return Stats{}, s.cfgErr
	}
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return Stats{}, errors.New(errors.ErrCodeEmptyInput, "layout of an empty graph")
	}
	if opts.Iterations < 0 {
		return Stats{}, errors.New(errors.ErrCodeInvalidConfiguration, "negative iteration budget %d", opts.Iterations)
	}
	if opts.Temperature < 0 {
		return Stats{}, errors.New(errors.ErrCodeInvalidConfiguration, "negative temperature %v", opts.Temperature)
	}
	for _, id := range ids {
		if !pos.Has(id) {
			return Stats{}, errors.New(errors.ErrCodeInvalidInput, "node %q has no position", id)
		}
	}

	st := newState(s, g, ids, pos, opts)
	stats := Stats{InitialTemperature: st.temp}
	if opts.Iterations == 0 {
		stats.FinalTemperature = st.temp
		return stats, nil
	}

	sc := s.cfg.Solver
	for iter := 0; iter < opts.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			st.flush(pos)
			return stats, err
		}

		st.unlock(float64(iter) / float64(opts.Iterations))

		if iter < sc.RebuildWarmup || iter%sc.RebuildEvery == 0 {
			if err := st.rebuild(); err != nil {
				return stats, err
			}
			stats.Rebuilds++
			s.logger.Debug("spatial tree rebuilt", "iteration", iter, "tree_nodes", st.tree.Len())
		}

		if err := st.accumulate(ctx); err != nil {
			st.flush(pos)
			return stats, err
		}
		stats.Displacement = st.apply()
		stats.Iterations = iter + 1

		if !sc.AdaptiveCooling && !sc.ConstantTemperature {
			st.temp *= sc.CoolingFactor
		}

		if sc.EarlyExit && stats.Displacement < sc.EarlyExitScale/float64(len(ids)) {
			stats.Converged = true
			break
		}
	}

	st.flush(pos)
	stats.FinalTemperature = st.temp
	s.logger.Debug("layout finished",
		"nodes", len(ids),
		"iterations", stats.Iterations,
		"rebuilds", stats.Rebuilds,
		"temperature", stats.FinalTemperature)

	if sc.EarlyExit && !stats.Converged {
		return stats, errors.New(errors.ErrCodeConvergenceBudgetExceeded,
			"no convergence within %d iterations (last displacement %.4g)", stats.Iterations, stats.Displacement)
	}
	return stats, nil
}

// InitialTemperature returns the temperature a run over pos starts at:
// max(min(width, height) * factor, 2L) of the bounding box, unless the
// configuration fixes it.
func (s *Solver) InitialTemperature(pos geom.Positions, ids []string) float64 {
	if s.cfg.Solver.InitialTemperature > 0 {
		return s.cfg.Solver.InitialTemperature
	}
	floor := 2 * s.cfg.Force.EdgeLength
	box, ok := geom.Bounds(pos, ids)
	if !ok {
		return floor
	}
	return math.Max(math.Min(box.Width(), box.Height())*s.cfg.Solver.InitialTemperatureFactor, floor)
}

// =============================================================================
// Run State
// =============================================================================

type edgeIdx struct{ u, v int }

// state is the dense, index-addressed working copy of one run.
type state struct {
	s        *Solver
	ids      []string
	pts      []r2.Vec
	disp     []r2.Vec
	prev     []r2.Vec
	edges    []edgeIdx
	movable  []bool
	pinning  []float64
	unlocked []bool
	tree     *spatial.Tree
	temp     float64
	maxTemp  float64
}

func newState(s *Solver, g *graph.Graph, ids []string, pos geom.Positions, opts RunOptions) *state {
	n := len(ids)
	st := &state{
		s:        s,
		ids:      ids,
		pts:      make([]r2.Vec, n),
		disp:     make([]r2.Vec, n),
		prev:     make([]r2.Vec, n),
		movable:  make([]bool, n),
		pinning:  make([]float64, n),
		unlocked: make([]bool, n),
	}
	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
		st.pts[i] = pos[id]
		st.movable[i] = opts.Movable == nil || opts.Movable(id)
		if opts.Pinning != nil {
			st.pinning[i] = opts.Pinning[id]
		}
	}
	for _, e := range g.Edges() {
		st.edges = append(st.edges, edgeIdx{u: index[e.From], v: index[e.To]})
	}

	st.temp = opts.Temperature
	if st.temp == 0 {
		st.temp = s.InitialTemperature(pos, ids)
	}
	st.maxTemp = st.temp
	return st
}

// unlock decides which nodes may move in the iteration at fracDone.
func (st *state) unlock(fracDone float64) {
	for i := range st.unlocked {
		st.unlocked[i] = st.movable[i] && fracDone >= st.pinning[i]
	}
}

func (st *state) rebuild() error {
	tc := st.s.cfg.Tree
	tree, err := spatial.Build(st.pts, spatial.Options{
		VerticesThreshold: tc.VerticesThreshold,
		Precision:         tc.Precision,
		LinearMedian:      tc.LinearMedian,
	})
	if err != nil {
		return err
	}
	st.tree = tree
	return nil
}

// accumulate sums repulsion and attraction into disp. Positions are only read.
func (st *state) accumulate(ctx context.Context) error {
	if st.s.cfg.Force.Strict {
		if err := st.checkCoincident(); err != nil {
			return err
		}
	}

	multipole := st.s.cfg.Tree.Multipole
	model := st.s.model
	repulse := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if st.unlocked[i] {
				st.disp[i] = r2.Add(st.disp[i], st.tree.Repulsion(i, st.pts[i], model, multipole))
			}
		}
	}

	n := len(st.pts)
	workers := st.s.cfg.Solver.Workers
	if workers > 1 && n >= 2*workers {
		eg, _ := errgroup.WithContext(ctx)
		chunk := (n + workers - 1) / workers
		for lo := 0; lo < n; lo += chunk {
			lo, hi := lo, min(lo+chunk, n)
			eg.Go(func() error {
				repulse(lo, hi)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	} else {
		repulse(0, n)
	}

	strict := st.s.cfg.Force.Strict
	for _, e := range st.edges {
		d := r2.Sub(st.pts[e.u], st.pts[e.v])
		f := model.Attraction(d)
		if strict {
			var err error
			if f, err = model.AttractionStrict(d); err != nil {
				return errors.Wrap(errors.ErrCodeDegenerateGeometry, err, "edge %s-%s", st.ids[e.u], st.ids[e.v])
			}
		}
		if st.unlocked[e.u] {
			st.disp[e.u] = r2.Sub(st.disp[e.u], f)
		}
		if st.unlocked[e.v] {
			st.disp[e.v] = r2.Add(st.disp[e.v], f)
		}
	}
	return nil
}

// checkCoincident reports the first pair of nodes sharing a position.
func (st *state) checkCoincident() error {
	seen := make(map[r2.Vec]int, len(st.pts))
	for i, p := range st.pts {
		if j, ok := seen[p]; ok {
			return errors.New(errors.ErrCodeDegenerateGeometry, "nodes %q and %q share position (%v, %v)", st.ids[j], st.ids[i], p.X, p.Y)
		}
		seen[p] = i
	}
	return nil
}

// apply moves every unlocked node by its clamped displacement, resets the
// accumulators and returns the total distance moved.
func (st *state) apply() float64 {
	adaptive := st.s.cfg.Solver.AdaptiveCooling
	var total float64
	for i := range st.pts {
		d := st.disp[i]
		st.disp[i] = r2.Vec{}
		if !st.unlocked[i] {
			st.prev[i] = r2.Vec{}
			continue
		}
		limit := st.temp
		if adaptive {
			limit = math.Min(adaptiveStep(d, st.prev[i]), st.maxTemp)
		}
		step := geom.Clamp(d, limit)
		st.pts[i] = r2.Add(st.pts[i], step)
		st.prev[i] = step
		total += r2.Norm(step)
	}
	return total
}

// flush copies the working positions back into pos.
func (st *state) flush(pos geom.Positions) {
	for i, id := range st.ids {
		pos[id] = st.pts[i]
	}
}

// adaptiveStep returns the step length for displacement d given the
// previous step prev. The angle between them picks a factor c: 2 when the
// node keeps its direction, shrinking to 1/3 when it reverses. The step is
// c*|prev| when that is positive and shorter than |d|, else |d|.
func adaptiveStep(d, prev r2.Vec) float64 {
	dn := r2.Norm(d)
	angle := math.Atan2(r2.Cross(prev, d), r2.Dot(prev, d))
	a := math.Abs(angle)

	var c float64
	switch {
	case a <= math.Pi/6:
		c = 2
	case a <= 2*math.Pi/6:
		c = 1.5
	case a <= 3*math.Pi/6:
		c = 1
	case a <= 4*math.Pi/6:
		c = 2.0 / 3
	default:
		c = 1.0 / 3
	}

	res := c * r2.Norm(prev)
	if dn > res && res > 0 {
		return res
	}
	return dn
}
