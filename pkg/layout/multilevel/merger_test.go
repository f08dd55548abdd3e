package multilevel

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/matzehuels/evolayout/pkg/graph"
)

func TestMatchingMergerPrefersLightNeighbors(t *testing.T) {
	g := graph.New()
	for _, id := range []string{"x", "heavy", "light", "other"} {
		_ = g.AddNode(graph.Node{ID: id})
	}
	_ = g.AddEdge(graph.Edge{From: "x", To: "heavy"})
	_ = g.AddEdge(graph.Edge{From: "x", To: "light"})
	_ = g.AddEdge(graph.Edge{From: "heavy", To: "other"})

	weight := map[string]int{"x": 1, "heavy": 5, "light": 2, "other": 1}
	got := MatchingMerger{}.Match(g, weight, nil)
	want := []Pair{{A: "x", B: "light"}, {A: "heavy", B: "other"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Match() = %v, want %v", got, want)
	}
}

func TestIndependentSetMergerDeterministicWithoutRand(t *testing.T) {
	// path a-b-c-d-e: a is picked, b c blocked, d picked
	g := graph.New()
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		_ = g.AddNode(graph.Node{ID: id})
	}
	for i := 0; i+1 < len(ids); i++ {
		_ = g.AddEdge(graph.Edge{From: ids[i], To: ids[i+1]})
	}
	weight := map[string]int{"a": 1, "b": 1, "c": 3, "d": 1, "e": 1}

	got := IndependentSetMerger{}.Match(g, weight, nil)
	want := []Pair{{A: "a", B: "b"}, {A: "d", B: "e"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Match() = %v, want %v", got, want)
	}
}

func TestMergersProduceDisjointEdges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	check := func(m Merger) func(uint64, int, int) bool {
		return func(seed uint64, n, m2 int) bool {
			rng := rand.New(rand.NewPCG(seed, 7))
			g := graph.New()
			weight := map[string]int{}
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("v%d", i)
				_ = g.AddNode(graph.Node{ID: id})
				weight[id] = 1 + rng.IntN(4)
			}
			for i := 0; i < m2; i++ {
				_ = g.AddEdge(graph.Edge{From: fmt.Sprintf("v%d", rng.IntN(n)), To: fmt.Sprintf("v%d", rng.IntN(n))})
			}

			used := map[string]bool{}
			for _, p := range m.Match(g, weight, rng) {
				if used[p.A] || used[p.B] || !g.HasEdge(p.A, p.B) {
					return false
				}
				used[p.A], used[p.B] = true, true
			}
			return true
		}
	}

	for _, m := range []Merger{MatchingMerger{}, IndependentSetMerger{}} {
		properties.Property(m.Name()+" pairs are disjoint edges", prop.ForAll(
			check(m),
			gen.UInt64(),
			gen.IntRange(1, 60),
			gen.IntRange(0, 150),
		))
	}
	properties.TestingRun(t)
}
