package incremental

import (
	"math"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/graph"
)

// Positioning scores of new nodes by number of positioned neighbors.
// Pre-existing nodes score 1.
const (
	scoreManyAnchors = 0.25
	scoreOneAnchor   = 0.1
	scoreNoAnchor    = 0.0
)

// PositioningScore returns the confidence in the position of id after
// placement.
func PositioningScore(id string, pl Placement) float64 {
	n, placed := pl.Anchors[id]
	switch {
	case !placed:
		return 1
	case n >= 2:
		return scoreManyAnchors
	case n == 1:
		return scoreOneAnchor
	default:
		return scoreNoAnchor
	}
}

// ComputePinningWeights returns a weight in [0,1] for every node of g:
// 1 pins the node for the whole run, 0 frees it from the first iteration.
//
// A local pass blends each node's positioning score with the mean score of
// its neighbors, weighted by NeighborInfluence. A global pass then layers
// the graph by hop distance from the nodes [Delta.Touched] reports; with
// cutoff = round(RingFraction * rings), nodes in ring i < cutoff get
// PinningInit^(1 - i/cutoff) and nodes in later rings get 1. Nodes no ring
// reaches keep their local weight.
func ComputePinningWeights(g *graph.Graph, d *Delta, pl Placement, cfg config.Incremental) map[string]float64 {
	ids := g.NodeIDs()
	score := make(map[string]float64, len(ids))
	for _, id := range ids {
		score[id] = PositioningScore(id, pl)
	}

	ni := cfg.NeighborInfluence
	weights := make(map[string]float64, len(ids))
	for _, id := range ids {
		nbs := g.Neighbors(id)
		if len(nbs) == 0 {
			weights[id] = score[id]
			continue
		}
		var sum float64
		for _, nb := range nbs {
			sum += score[nb]
		}
		weights[id] = ni*score[id] + (1-ni)*sum/float64(len(nbs))
	}

	rings := g.Rings(d.Touched())
	cutoff := int(math.Round(cfg.RingFraction * float64(len(rings))))
	for i, ring := range rings {
		w := 1.0
		if i < cutoff {
			w = math.Pow(cfg.PinningInit, 1-float64(i)/float64(cutoff))
		}
		for _, id := range ring {
			weights[id] = w
		}
	}
	return weights
}
