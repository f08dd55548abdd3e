package multilevel

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/graph"
)

// Pair is two adjacent nodes selected to collapse into one metanode.
type Pair struct{ A, B string }

// Merger selects the node pairs of one coarsening pass. Returned pairs are
// disjoint and every pair is an edge of g. Nodes left out pass through to
// the next level unchanged. An empty result ends coarsening.
type Merger interface {
	Name() string
	Match(g *graph.Graph, weight map[string]int, rng *rand.Rand) []Pair
}

// NewMerger returns the merger registered under name.
func NewMerger(name string) (Merger, error) {
	switch name {
	case "", config.MergerMatching:
		return MatchingMerger{}, nil
	case config.MergerIndependentSet:
		return IndependentSetMerger{}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "unknown merger %q", name)
	}
}

// MatchingMerger computes a greedy weighted matching. Nodes are visited in
// graph order; an unmatched node pairs with its lightest unmatched
// neighbor, ties broken by ID.
type MatchingMerger struct{}

func (MatchingMerger) Name() string { return config.MergerMatching }

func (MatchingMerger) Match(g *graph.Graph, weight map[string]int, _ *rand.Rand) []Pair {
	matched := make(map[string]bool, g.NodeCount())
	var pairs []Pair
	for _, id := range g.NodeIDs() {
		if matched[id] {
			continue
		}
		if nb, ok := lightest(g.Neighbors(id), weight, matched); ok {
			matched[id], matched[nb] = true, true
			pairs = append(pairs, Pair{A: id, B: nb})
		}
	}
	return pairs
}

// IndependentSetMerger builds a maximal independent vertex set at distance
// two, visiting nodes in random order, and pairs every set node with its
// lightest neighbor.
type IndependentSetMerger struct{}

func (IndependentSetMerger) Name() string { return config.MergerIndependentSet }

func (IndependentSetMerger) Match(g *graph.Graph, weight map[string]int, rng *rand.Rand) []Pair {
	order := g.NodeIDs()
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	blocked := make(map[string]bool, len(order))
	var set []string
	for _, id := range order {
		if blocked[id] {
			continue
		}
		set = append(set, id)
		blocked[id] = true
		for _, nb := range g.Neighbors(id) {
			blocked[nb] = true
			for _, nb2 := range g.Neighbors(nb) {
				blocked[nb2] = true
			}
		}
	}

	matched := make(map[string]bool, len(set))
	for _, id := range set {
		matched[id] = true
	}
	var pairs []Pair
	for _, id := range set {
		if nb, ok := lightest(g.Neighbors(id), weight, matched); ok {
			matched[nb] = true
			pairs = append(pairs, Pair{A: id, B: nb})
		}
	}
	return pairs
}

// lightest returns the unmatched candidate with the smallest weight.
func lightest(candidates []string, weight map[string]int, matched map[string]bool) (string, bool) {
	var free []string
	for _, c := range candidates {
		if !matched[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return "", false
	}
	return slices.MinFunc(free, func(a, b string) int {
		if c := cmp.Compare(weight[a], weight[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}), true
}
