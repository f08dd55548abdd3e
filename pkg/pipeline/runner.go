package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/cache"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/incremental"
	"github.com/matzehuels/evolayout/pkg/layout/multilevel"
	"github.com/matzehuels/evolayout/pkg/layout/refine"
	"github.com/matzehuels/evolayout/pkg/layout/solver"
	"github.com/matzehuels/evolayout/pkg/observability"
)

// Runner executes layouts with caching. It keeps no per-run state, so one
// Runner may serve concurrent requests with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// uses [cache.DefaultKeyer] and a nil logger discards output.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// RunStatic lays out g with a single solver run. pos supplies optional
// starting positions and is not modified.
func (r *Runner) RunStatic(ctx context.Context, g *graph.Graph, pos geom.Positions, opts Options) (*Result, error) {
	return r.layout(ctx, ModeStatic, g, pos, opts, func(ctx context.Context, work geom.Positions, opts Options, res *Result) error {
		s := solver.New(*opts.Config, opts.Logger)
		stats, err := s.Run(ctx, g, work, s.Options())
		res.Stats.addSolver(stats)
		return tolerate(err, opts.Logger)
	})
}

// RunMultilevel lays out g through the coarsening hierarchy. pos supplies
// optional starting positions and is not modified.
func (r *Runner) RunMultilevel(ctx context.Context, g *graph.Graph, pos geom.Positions, opts Options) (*Result, error) {
	return r.layout(ctx, ModeMultilevel, g, pos, opts, func(ctx context.Context, work geom.Positions, opts Options, res *Result) error {
		c, err := multilevel.New(*opts.Config, solver.New(*opts.Config, opts.Logger), opts.Logger)
		if err != nil {
			return err
		}
		mr, err := c.Run(ctx, g, work, multilevel.Options{Rand: newRand(opts.Seed, 1)})
		res.Stats.Levels = mr.Levels
		for _, st := range mr.Stats {
			res.Stats.Iterations += st.Iterations
			res.Stats.Rebuilds += st.Rebuilds
		}
		if len(mr.Stats) > 0 {
			res.Stats.Displacement = mr.Stats[0].Displacement
		}
		return err
	})
}

// RunRefinement relaxes the high-energy nodes of a solved layout. Every
// node of g needs a position in pos, which is not modified.
func (r *Runner) RunRefinement(ctx context.Context, g *graph.Graph, pos geom.Positions, opts Options) (*Result, error) {
	for _, id := range g.NodeIDs() {
		if !pos.Has(id) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "refinement needs a solved layout: node %q has no position", id)
		}
	}
	return r.layout(ctx, ModeRefine, g, pos, opts, func(ctx context.Context, work geom.Positions, opts Options, res *Result) error {
		rf := refine.New(*opts.Config, solver.New(*opts.Config, opts.Logger), opts.Logger)
		en, stats, err := rf.Refine(ctx, g, work)
		res.Energy = &en
		res.Stats.HighEnergy = len(en.High)
		res.Stats.addSolver(stats)
		return tolerate(err, opts.Logger)
	})
}

// RunIncrementalStep lays out cur starting from the layout prevPos of prev.
// prev may be nil, in which case every node is new. Neither prevPos nor
// any graph is modified.
func (r *Runner) RunIncrementalStep(ctx context.Context, prev *graph.Graph, prevPos geom.Positions, cur *graph.Graph, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if cur.NodeCount() == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "incremental step to an empty snapshot")
	}

	var prevData []byte
	if prev != nil {
		data, err := graph.Marshal(prev, prevPos)
		if err != nil {
			return nil, fmt.Errorf("serialize previous snapshot: %w", err)
		}
		prevData = data
	}
	curData, err := graph.Marshal(cur, nil)
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}
	key := r.Keyer.LayoutKey(cache.Hash(append(prevData, curData...)), opts.LayoutKeyOpts(ModeIncremental))

	return r.cached(ctx, ModeIncremental, key, cur, opts, func(ctx context.Context, res *Result) error {
		cfg := *opts.Config
		s := solver.New(cfg, opts.Logger)
		var c *multilevel.Coarsener
		if cfg.Incremental.Multilevel {
			var err error
			if c, err = multilevel.New(cfg, s, opts.Logger); err != nil {
				return err
			}
		}
		step, err := incremental.New(cfg, s, c, opts.Logger).Step(ctx, prev, prevPos, cur, newRand(opts.Seed, 2))
		res.Positions = step.Positions
		res.Delta = step.Delta
		res.Pinning = step.Pinning
		res.Stats.addSolver(step.Stats)
		if step.Delta != nil {
			res.Stats.NewNodes = len(step.Delta.NewNodes)
			res.Stats.RemovedEdges = len(step.Delta.RemovedEdges)
			res.Stats.Movable = len(step.Placement.Movable)
		}
		return tolerate(err, opts.Logger)
	})
}

// layoutFunc solves work in place and records stats on res.
type layoutFunc func(ctx context.Context, work geom.Positions, opts Options, res *Result) error

// layout runs a whole-graph mode: defaults, cache lookup, initial
// placement, solve and cache write.
func (r *Runner) layout(ctx context.Context, mode string, g *graph.Graph, pos geom.Positions, opts Options, fn layoutFunc) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if g.NodeCount() == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "%s layout of an empty graph", mode)
	}

	data, err := graph.Marshal(g, pos)
	if err != nil {
		return nil, fmt.Errorf("serialize graph: %w", err)
	}
	key := r.Keyer.LayoutKey(cache.Hash(data), opts.LayoutKeyOpts(mode))

	return r.cached(ctx, mode, key, g, opts, func(ctx context.Context, res *Result) error {
		work := InitialPositions(g, pos, opts.Config.Force.EdgeLength, newRand(opts.Seed, 0))
		res.Positions = work
		return fn(ctx, work, opts, res)
	})
}

// cached returns the cached layout under key or computes it, reporting
// hooks and logging either way.
func (r *Runner) cached(ctx context.Context, mode, key string, g *graph.Graph, opts Options, compute func(context.Context, *Result) error) (*Result, error) {
	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, mode, g.NodeCount())

	res := &Result{RunID: uuid.NewString(), Mode: mode, Graph: g}
	res.Stats.Nodes = g.NodeCount()
	res.Stats.Edges = g.EdgeCount()

	if !opts.Refresh {
		if entry, ok := r.lookup(ctx, key, g); ok {
			res.Positions = entry.Positions
			res.CacheHit = true
			entry.Stats.Duration = time.Since(start)
			res.Stats = entry.Stats
			hooks.OnLayoutComplete(ctx, mode, res.layoutStats(), res.Stats.Duration, nil)
			opts.Logger.Info("layout from cache", "mode", mode, "nodes", res.Stats.Nodes)
			return res, nil
		}
	}

	err := compute(ctx, res)
	res.Stats.Duration = time.Since(start)
	hooks.OnLayoutComplete(ctx, mode, res.layoutStats(), res.Stats.Duration, err)
	if err != nil {
		return nil, fmt.Errorf("%s layout: %w", mode, err)
	}

	r.store(ctx, key, res)
	opts.Logger.Info("computed layout",
		"mode", mode,
		"nodes", res.Stats.Nodes,
		"edges", res.Stats.Edges,
		"iterations", res.Stats.Iterations,
		"levels", res.Stats.Levels,
		"duration", res.Stats.Duration)
	return res, nil
}

// cacheEntry is the cached form of a layout.
type cacheEntry struct {
	Snapshot graph.Snapshot `json:"snapshot"`
	Stats    Stats          `json:"stats"`
}

type cachedLayout struct {
	Positions geom.Positions
	Stats     Stats
}

func (r *Runner) lookup(ctx context.Context, key string, g *graph.Graph) (cachedLayout, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "layout")
		return cachedLayout{}, false
	}
	var entry cacheEntry
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		observability.Cache().OnCacheMiss(ctx, "layout")
		return cachedLayout{}, false
	}
	_, pos, err := entry.Snapshot.ToGraph()
	if err != nil {
		observability.Cache().OnCacheMiss(ctx, "layout")
		return cachedLayout{}, false
	}
	for _, id := range g.NodeIDs() {
		if !pos.Has(id) {
			observability.Cache().OnCacheMiss(ctx, "layout")
			return cachedLayout{}, false
		}
	}
	observability.Cache().OnCacheHit(ctx, "layout")
	return cachedLayout{Positions: pos, Stats: entry.Stats}, true
}

func (r *Runner) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(cacheEntry{Snapshot: graph.FromGraph(res.Graph, res.Positions), Stats: res.Stats})
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.LayoutTTL); err != nil {
		r.Logger.Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "layout", len(data))
}

// InitialPositions returns a copy of pos extended with a position for
// every node of g that lacks one, drawn uniformly from a square of side
// edgeLength*ceil(sqrt(n)) centred on the origin.
func InitialPositions(g *graph.Graph, pos geom.Positions, edgeLength float64, rng *rand.Rand) geom.Positions {
	out := make(geom.Positions, g.NodeCount())
	ids := g.NodeIDs()
	half := edgeLength * math.Ceil(math.Sqrt(float64(len(ids)))) / 2
	box := geom.Box{Box: r2.Box{Min: r2.Vec{X: -half, Y: -half}, Max: r2.Vec{X: half, Y: half}}}
	for _, id := range ids {
		if p, ok := pos[id]; ok {
			out[id] = p
			continue
		}
		out[id] = box.RandomPoint(rng)
	}
	return out
}

// newRand returns a PCG source for one purpose of a seeded run.
func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// tolerate drops informational solver errors after logging them.
func tolerate(err error, logger *log.Logger) error {
	if err != nil && errors.IsInformational(err) {
		logger.Warn("layout did not converge", "detail", errors.UserMessage(err))
		return nil
	}
	return err
}

func (s *Stats) addSolver(st solver.Stats) {
	s.Iterations += st.Iterations
	s.Rebuilds += st.Rebuilds
	s.Displacement = st.Displacement
}

func (r *Result) layoutStats() observability.LayoutStats {
	return observability.LayoutStats{
		Nodes:      r.Stats.Nodes,
		Iterations: r.Stats.Iterations,
		Rebuilds:   r.Stats.Rebuilds,
		Levels:     r.Stats.Levels,
		HighEnergy: r.Stats.HighEnergy,
	}
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
