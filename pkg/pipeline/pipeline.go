// Package pipeline drives the layout engine for the CLI and the API server.
//
// A [Runner] wraps the layout phases with caching, observability hooks and
// logging, so every entry point behaves the same way.
//
// # Modes
//
//   - static: one solver run over the whole graph
//   - multilevel: coarsen, solve coarsest to finest
//   - incremental: lay out a snapshot starting from the previous layout
//   - refine: relax the high-energy nodes of a solved layout
//   - timeline: multilevel for the first snapshot, incremental for the rest
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	res, err := runner.RunMultilevel(ctx, g, pos, pipeline.Options{Seed: 7})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	graph.WriteFile("out.json", g, res.Positions)
//
// Nodes without a starting position are scattered uniformly over a square
// of side L*ceil(sqrt(n)) around the origin, drawn from a PCG source seeded
// with [Options.Seed], so equal inputs give equal layouts.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/evolayout/pkg/cache"
	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/incremental"
	"github.com/matzehuels/evolayout/pkg/layout/refine"
	"github.com/matzehuels/evolayout/pkg/store"
)

// =============================================================================
// Default Values
// =============================================================================

// Layout modes.
const (
	ModeStatic      = "static"
	ModeMultilevel  = "multilevel"
	ModeIncremental = "incremental"
	ModeRefine      = "refine"
	ModeTimeline    = "timeline"
)

// DefaultSeed is the default random seed for reproducibility.
const DefaultSeed = uint64(42)

// ValidModes is the set of modes accepted in [Options.Mode].
var ValidModes = map[string]bool{
	ModeStatic:      true,
	ModeMultilevel:  true,
	ModeIncremental: true,
	ModeRefine:      true,
	ModeTimeline:    true,
}

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run. It supports JSON for API requests.
type Options struct {
	// Mode is informational for Run* methods and selects the method in
	// [Runner.Run]. Defaults to static.
	Mode string `json:"mode,omitempty"`

	// Config is the engine configuration. Nil means [config.Default].
	Config *config.Config `json:"config,omitempty"`

	// Merger overrides Config.Multilevel.Merger when set.
	Merger string `json:"merger,omitempty"`

	// Seed drives initial placement and randomized mergers. Zero means
	// DefaultSeed.
	Seed uint64 `json:"seed,omitempty"`

	// Refresh skips the cache lookup (results are still written).
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults applies defaults and validates the configuration.
// Calling it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Mode == "" {
		o.Mode = ModeStatic
	}
	if !ValidModes[o.Mode] {
		return errors.New(errors.ErrCodeInvalidConfiguration, "invalid mode %q (must be one of static, multilevel, incremental, refine, timeline)", o.Mode)
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	cfg := config.Default()
	if o.Config != nil {
		cfg = *o.Config
	}
	if o.Merger != "" {
		cfg.Multilevel.Merger = o.Merger
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.Config = &cfg
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// LayoutKeyOpts returns cache key options for a layout in the given mode.
func (o *Options) LayoutKeyOpts(mode string) cache.LayoutKeyOpts {
	h, _ := cache.HashJSON(o.Config)
	return cache.LayoutKeyOpts{
		Mode:       mode,
		Merger:     o.Config.Multilevel.Merger,
		Seed:       o.Seed,
		ConfigHash: h,
	}
}

// =============================================================================
// Results
// =============================================================================

// Result is the outcome of one layout.
type Result struct {
	RunID     string
	Mode      string
	Graph     *graph.Graph
	Positions geom.Positions
	Stats     Stats
	CacheHit  bool

	// Incremental steps only.
	Delta   *incremental.Delta
	Pinning map[string]float64

	// Refinement only.
	Energy *refine.Energy
}

// Stats summarizes a layout for logs, hooks and stored runs.
type Stats struct {
	Nodes        int           `json:"nodes"`
	Edges        int           `json:"edges"`
	Iterations   int           `json:"iterations"`
	Rebuilds     int           `json:"rebuilds"`
	Levels       int           `json:"levels,omitempty"`
	Displacement float64       `json:"displacement"`
	NewNodes     int           `json:"new_nodes,omitempty"`
	RemovedEdges int           `json:"removed_edges,omitempty"`
	Movable      int           `json:"movable,omitempty"`
	HighEnergy   int           `json:"high_energy,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Snapshot returns the result as a serializable snapshot.
func (r *Result) Snapshot(label string) graph.Snapshot {
	s := graph.FromGraph(r.Graph, r.Positions)
	s.Label = label
	return s
}

// Frame converts the result into a stored run frame.
func (r *Result) Frame(label string) store.Frame {
	return store.Frame{
		Snapshot: r.Snapshot(label),
		Stats: store.FrameStats{
			Iterations:   r.Stats.Iterations,
			Rebuilds:     r.Stats.Rebuilds,
			Levels:       r.Stats.Levels,
			Displacement: r.Stats.Displacement,
			NewNodes:     r.Stats.NewNodes,
			RemovedEdges: r.Stats.RemovedEdges,
			Movable:      r.Stats.Movable,
			HighEnergy:   r.Stats.HighEnergy,
			CacheHit:     r.CacheHit,
			DurationMS:   r.Stats.Duration.Milliseconds(),
		},
	}
}

// TimelineResult holds one result per snapshot.
type TimelineResult struct {
	RunID  string
	Frames []*Result
	Labels []string
}

// Run converts the timeline into a stored run.
func (t *TimelineResult) Run(seed uint64) *store.Run {
	run := store.NewRun(ModeTimeline)
	run.ID = t.RunID
	run.Seed = seed
	for i, f := range t.Frames {
		run.Frames = append(run.Frames, f.Frame(t.Labels[i]))
	}
	return run
}
