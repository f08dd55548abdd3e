package incremental

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
)

// Placement is the outcome of [PositionNewNodes].
type Placement struct {
	// Anchors holds, for every placed node, how many of its neighbors were
	// already positioned when it was placed.
	Anchors map[string]int

	// Movable is the set of nodes touched by the change: placed nodes, the
	// neighbors they were placed against, endpoints of new edges and nodes
	// adjacent to a removed edge.
	Movable map[string]bool
}

// IsMovable reports whether id belongs to the movable set.
func (p Placement) IsMovable(id string) bool { return p.Movable[id] }

// PlaceOptions controls [PositionNewNodes].
type PlaceOptions struct {
	// DesiredDistance separates a node placed against a single neighbor
	// from that neighbor.
	DesiredDistance float64

	// Rand supplies angles and fallback positions. Nil uses a fixed seed.
	Rand *rand.Rand
}

// PositionNewNodes assigns a position to every node of g that is new in d
// or has no entry in pos, writing into pos.
//
// New nodes are grouped into the connected components of the subgraph
// they induce. Each component is walked breadth first, starting from the
// member with the most positioned neighbors. A visited node with two or
// more positioned neighbors goes to their average; with exactly one it
// goes DesiredDistance away from it at a random angle; with none it goes
// to a uniformly random point of the bounding box of the positioned nodes.
// Nodes that are neither new nor missing from pos are never moved.
func PositionNewNodes(g *graph.Graph, d *Delta, pos geom.Positions, opts PlaceOptions) Placement {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}

	pl := Placement{
		Anchors: make(map[string]int),
		Movable: make(map[string]bool),
	}

	positioned := make(map[string]bool, g.NodeCount())
	var pending, placedIDs []string
	for _, id := range g.NodeIDs() {
		if d.IsNew(id) || !pos.Has(id) {
			pending = append(pending, id)
			continue
		}
		positioned[id] = true
		placedIDs = append(placedIDs, id)
	}

	box := fallbackBox(pos, placedIDs, len(pending), opts.DesiredDistance)

	anchorsOf := func(id string) []string {
		var out []string
		for _, nb := range g.Neighbors(id) {
			if positioned[nb] {
				out = append(out, nb)
			}
		}
		return out
	}

	var comps [][]string
	if len(pending) > 0 {
		comps = g.Components(pending)
	}
	for _, comp := range comps {
		inComp := make(map[string]bool, len(comp))
		for _, id := range comp {
			inComp[id] = true
		}

		start, best := comp[0], -1
		for _, id := range comp {
			if n := len(anchorsOf(id)); n > best {
				start, best = id, n
			}
		}

		visited := map[string]bool{start: true}
		queue := []string{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]

			anchors := anchorsOf(id)
			switch len(anchors) {
			case 0:
				pos[id] = box.RandomPoint(rng)
			case 1:
				theta := rng.Float64() * 2 * math.Pi
				pos[id] = r2.Add(pos[anchors[0]], geom.Polar(opts.DesiredDistance, theta))
			default:
				var sum r2.Vec
				for _, a := range anchors {
					sum = r2.Add(sum, pos[a])
				}
				pos[id] = r2.Scale(1/float64(len(anchors)), sum)
			}
			for _, a := range anchors {
				pl.Movable[a] = true
			}
			pl.Anchors[id] = len(anchors)
			pl.Movable[id] = true
			positioned[id] = true

			for _, nb := range g.Neighbors(id) {
				if inComp[nb] && !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}
	}

	for _, e := range d.NewEdges {
		pl.Movable[e.From] = true
		pl.Movable[e.To] = true
	}
	for _, id := range d.AdjacentToDeleted {
		pl.Movable[id] = true
	}
	return pl
}

// fallbackBox returns the box new nodes without positioned neighbors are
// scattered in: the bounding box of the positioned nodes, or a square
// around the origin large enough for n nodes at distance spacing when
// nothing is positioned yet. Each side is at least spacing long.
func fallbackBox(pos geom.Positions, placed []string, n int, spacing float64) geom.Box {
	var box geom.Box
	if len(placed) > 0 {
		box, _ = geom.Bounds(pos, placed)
	} else {
		half := spacing * math.Ceil(math.Sqrt(float64(max(n, 1)))) / 2
		box.Min = r2.Vec{X: -half, Y: -half}
		box.Max = r2.Vec{X: half, Y: half}
	}
	if w := box.Width(); w < spacing {
		box.Min.X -= (spacing - w) / 2
		box.Max.X += (spacing - w) / 2
	}
	if h := box.Height(); h < spacing {
		box.Min.Y -= (spacing - h) / 2
		box.Max.Y += (spacing - h) / 2
	}
	return box
}
