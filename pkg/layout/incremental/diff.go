// Package incremental re-lays out an evolving graph one snapshot at a time
// while keeping unaffected regions where they were.
//
// A step has three parts. [Diff] compares two snapshots and tags what
// changed. [PositionNewNodes] seeds positions for the new nodes from their
// already placed neighbors. [ComputePinningWeights] turns the change into
// a per-node confidence field in [0,1] that the solver consults to unlock
// nodes progressively: nodes near the change move early, distant nodes
// stay pinned. [Engine.Step] runs the three parts and the solver.
package incremental

import (
	"slices"

	"github.com/matzehuels/evolayout/pkg/graph"
)

// Delta describes how cur differs from prev. Slices follow the order of the
// snapshot they come from.
type Delta struct {
	NewNodes          []string     // in cur, not in prev
	RemovedNodes      []string     // in prev, not in cur
	NewEdges          []graph.Edge // in cur, not in prev
	RemovedEdges      []graph.Edge // in prev, not in cur
	AdjacentToDeleted []string     // nodes of cur that were endpoints of a removed edge

	isNew     map[string]bool
	isNewEdge map[graph.EdgeKey]bool
	adjacent  map[string]bool
}

// Diff compares two snapshots. A nil prev means every node and edge of cur
// is new.
func Diff(prev, cur *graph.Graph) *Delta {
	if prev == nil {
		prev = graph.New()
	}
	d := &Delta{
		isNew:     make(map[string]bool),
		isNewEdge: make(map[graph.EdgeKey]bool),
		adjacent:  make(map[string]bool),
	}

	for _, id := range cur.NodeIDs() {
		if !prev.HasNode(id) {
			d.NewNodes = append(d.NewNodes, id)
			d.isNew[id] = true
		}
	}
	for _, id := range prev.NodeIDs() {
		if !cur.HasNode(id) {
			d.RemovedNodes = append(d.RemovedNodes, id)
		}
	}
	for _, e := range cur.Edges() {
		if !prev.HasEdge(e.From, e.To) {
			d.NewEdges = append(d.NewEdges, e)
			d.isNewEdge[e.Key()] = true
		}
	}
	for _, e := range prev.Edges() {
		if cur.HasEdge(e.From, e.To) {
			continue
		}
		d.RemovedEdges = append(d.RemovedEdges, e)
		for _, id := range [2]string{e.From, e.To} {
			if cur.HasNode(id) && !d.adjacent[id] {
				d.adjacent[id] = true
			}
		}
	}
	for _, id := range cur.NodeIDs() {
		if d.adjacent[id] {
			d.AdjacentToDeleted = append(d.AdjacentToDeleted, id)
		}
	}
	return d
}

// IsNew reports whether node id did not exist in the previous snapshot.
func (d *Delta) IsNew(id string) bool { return d.isNew[id] }

// IsNewEdge reports whether the edge u-v did not exist in the previous
// snapshot.
func (d *Delta) IsNewEdge(u, v string) bool { return d.isNewEdge[graph.MakeEdgeKey(u, v)] }

// IsAdjacentToDeleted reports whether id lost an incident edge.
func (d *Delta) IsAdjacentToDeleted(id string) bool { return d.adjacent[id] }

// Changed returns the new nodes followed by the nodes adjacent to a
// removed edge, without duplicates.
func (d *Delta) Changed() []string {
	out := slices.Clone(d.NewNodes)
	for _, id := range d.AdjacentToDeleted {
		if !d.isNew[id] {
			out = append(out, id)
		}
	}
	return out
}

// Touched returns [Delta.Changed] followed by the endpoints of new edges
// between two pre-existing nodes, without duplicates. Edges that reach a
// new node are already represented by that node.
func (d *Delta) Touched() []string {
	out := d.Changed()
	seen := make(map[string]bool, len(out))
	for _, id := range out {
		seen[id] = true
	}
	for _, e := range d.NewEdges {
		if d.isNew[e.From] || d.isNew[e.To] {
			continue
		}
		for _, id := range [2]string{e.From, e.To} {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Empty reports whether the snapshots have the same topology.
func (d *Delta) Empty() bool {
	return len(d.NewNodes) == 0 && len(d.RemovedNodes) == 0 &&
		len(d.NewEdges) == 0 && len(d.RemovedEdges) == 0
}
