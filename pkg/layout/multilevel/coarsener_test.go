package multilevel

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/solver"
)

func grid(w, h int) (*graph.Graph, geom.Positions) {
	g := graph.New()
	pos := make(geom.Positions, w*h)
	id := func(x, y int) string { return fmt.Sprintf("%d,%d", x, y) }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_ = g.AddNode(graph.Node{ID: id(x, y)})
			// scrambled start so the solver has work to do
			pos[id(x, y)] = r2.Vec{X: float64((x*7 + y*3) % w * 10), Y: float64((y*5 + x) % h * 10)}
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+1 < w {
				_ = g.AddEdge(graph.Edge{From: id(x, y), To: id(x+1, y)})
			}
			if y+1 < h {
				_ = g.AddEdge(graph.Edge{From: id(x, y), To: id(x, y+1)})
			}
		}
	}
	return g, pos
}

func fastConfig(merger string) config.Config {
	cfg := config.Default()
	cfg.Multilevel.Merger = merger
	cfg.Multilevel.CoarsestIterations = 40
	cfg.Multilevel.FinestIterations = 10
	return cfg
}

func newCoarsener(t *testing.T, cfg config.Config) *Coarsener {
	t.Helper()
	c, err := New(cfg, solver.New(cfg, nil), nil)
	require.NoError(t, err)
	return c
}

func TestCoarsenReducesMonotonically(t *testing.T) {
	for _, merger := range []string{config.MergerMatching, config.MergerIndependentSet} {
		t.Run(merger, func(t *testing.T) {
			g, pos := grid(20, 20)
			c := newCoarsener(t, fastConfig(merger))

			h, err := c.Coarsen(g, pos, Options{Rand: rand.New(rand.NewPCG(1, 2))})
			require.NoError(t, err)
			require.Equal(t, 400, h.Counts[0])
			require.Len(t, h.Counts, h.Depth()+1)
			for i := 1; i < len(h.Counts); i++ {
				assert.Less(t, h.Counts[i], h.Counts[i-1], "level %d", i)
			}
			assert.LessOrEqual(t, h.Counts[len(h.Counts)-1], 50)
			assert.Equal(t, h.Counts[len(h.Counts)-1], h.Graph.NodeCount())

			// the input graph is untouched
			assert.Equal(t, 400, g.NodeCount())
			assert.Equal(t, 760, g.EdgeCount())
		})
	}
}

func TestCoarsenLargeGridRoundTrip(t *testing.T) {
	g, pos := grid(100, 100)
	c := newCoarsener(t, fastConfig(config.MergerMatching))

	h, err := c.Coarsen(g, pos, Options{})
	require.NoError(t, err)
	require.Greater(t, h.Depth(), 3)

	for level := h.Depth() - 1; level >= 0; level-- {
		require.NoError(t, c.expand(h, level))
	}
	require.Equal(t, g.NodeCount(), h.Graph.NodeCount())
	for _, id := range g.NodeIDs() {
		require.True(t, h.Graph.HasNode(id), id)
	}
	assert.Equal(t, g.EdgeCount(), h.Graph.EdgeCount())
	for _, e := range g.Edges() {
		assert.True(t, h.Graph.HasEdge(e.From, e.To), "edge %s-%s", e.From, e.To)
	}
	assert.Zero(t, h.Graph.CollapseDepth())
}

func BenchmarkCoarsenGrid(b *testing.B) {
	g, pos := grid(100, 100)
	cfg := fastConfig(config.MergerMatching)
	c, err := New(cfg, solver.New(cfg, nil), nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := c.Coarsen(g, pos, Options{})
		if err != nil {
			b.Fatal(err)
		}
		for level := h.Depth() - 1; level >= 0; level-- {
			if err := c.expand(h, level); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func TestCoarsenStopsWithoutProgress(t *testing.T) {
	g := graph.New()
	pos := geom.Positions{}
	for i := 0; i < 80; i++ {
		id := fmt.Sprintf("n%d", i)
		_ = g.AddNode(graph.Node{ID: id})
		pos[id] = r2.Vec{X: float64(i)}
	}
	c := newCoarsener(t, fastConfig(config.MergerMatching))

	h, err := c.Coarsen(g, pos, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, h.Depth())
	assert.Equal(t, []int{80}, h.Counts)
}

func TestCoarsenMetanodeAttributes(t *testing.T) {
	g := graph.New()
	for _, id := range []string{"a", "b", "c", "d"} {
		_ = g.AddNode(graph.Node{ID: id})
	}
	_ = g.AddEdge(graph.Edge{From: "a", To: "b"})
	_ = g.AddEdge(graph.Edge{From: "b", To: "c"})
	_ = g.AddEdge(graph.Edge{From: "c", To: "d"})
	pos := geom.Positions{"a": {X: 0}, "b": {X: 4}, "c": {X: 8, Y: 2}, "d": {X: 12, Y: 2}}

	cfg := fastConfig(config.MergerMatching)
	cfg.Multilevel.Threshold = 2
	c := newCoarsener(t, cfg)

	fixed := map[string]bool{"a": true, "c": true, "d": true}
	h, err := c.Coarsen(g, pos, Options{Movable: func(id string) bool { return !fixed[id] }})
	require.NoError(t, err)
	require.Equal(t, 1, h.Depth())
	require.Len(t, h.Passes[0], 2)

	ab, cd := h.Passes[0][0], h.Passes[0][1]
	assert.Equal(t, [2]string{"a", "b"}, [2]string{ab.A, ab.B})
	assert.Equal(t, [2]string{"c", "d"}, [2]string{cd.A, cd.B})

	assert.Equal(t, r2.Vec{X: 2}, h.Positions[ab.Meta])
	assert.Equal(t, r2.Vec{X: 10, Y: 2}, h.Positions[cd.Meta])
	assert.Equal(t, 2, h.Weight[ab.Meta])
	assert.True(t, h.CanMove[ab.Meta], "one movable constituent makes the metanode movable")
	assert.False(t, h.CanMove[cd.Meta])
	assert.True(t, h.Graph.HasEdge(ab.Meta, cd.Meta))
}

func TestRunRestoresNodeSet(t *testing.T) {
	for _, merger := range []string{config.MergerMatching, config.MergerIndependentSet} {
		t.Run(merger, func(t *testing.T) {
			g, pos := grid(15, 12)
			c := newCoarsener(t, fastConfig(merger))

			res, err := c.Run(context.Background(), g, pos, Options{Rand: rand.New(rand.NewPCG(3, 4))})
			require.NoError(t, err)

			assert.Len(t, pos, g.NodeCount(), "no metanode leaks into the result")
			for _, id := range g.NodeIDs() {
				p, ok := pos[id]
				require.True(t, ok, "node %s", id)
				assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y), "node %s", id)
			}
			assert.Equal(t, res.Levels, len(res.Counts))
			assert.Equal(t, 10, res.Iterations[0])
			assert.Equal(t, 40, res.Iterations[res.Levels-1])
			assert.Equal(t, 180, g.NodeCount())
		})
	}
}

func TestRunKeepsImmovableNodes(t *testing.T) {
	g, pos := grid(12, 10)
	anchors := map[string]r2.Vec{"0,0": pos["0,0"], "11,9": pos["11,9"], "5,5": pos["5,5"]}
	c := newCoarsener(t, fastConfig(config.MergerMatching))

	_, err := c.Run(context.Background(), g, pos, Options{
		Movable: func(id string) bool { _, ok := anchors[id]; return !ok },
	})
	require.NoError(t, err)
	for id, want := range anchors {
		assert.Equal(t, want, pos[id], "node %s", id)
	}
}

func TestRunEmptyGraph(t *testing.T) {
	c := newCoarsener(t, fastConfig(config.MergerMatching))
	pos := geom.Positions{"stray": {X: 1}}

	_, err := c.Run(context.Background(), graph.New(), pos, Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeEmptyInput), "got %v", err)
	assert.Equal(t, geom.Positions{"stray": {X: 1}}, pos)
}

func TestRunMissingPosition(t *testing.T) {
	g, pos := grid(3, 3)
	delete(pos, "1,1")
	c := newCoarsener(t, fastConfig(config.MergerMatching))

	_, err := c.Run(context.Background(), g, pos, Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "got %v", err)
}

func TestBudget(t *testing.T) {
	c := newCoarsener(t, config.Default())
	tests := []struct {
		level, depth, want int
	}{
		{0, 4, 30},
		{4, 4, 300},
		{2, 4, 165},
		{1, 3, 120},
		{0, 0, 300},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Budget(tt.level, tt.depth), "level %d of %d", tt.level, tt.depth)
	}
}

func TestNewUnknownMerger(t *testing.T) {
	cfg := config.Default()
	cfg.Multilevel.Merger = "random"
	_, err := New(cfg, solver.New(cfg, nil), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfiguration))
}
