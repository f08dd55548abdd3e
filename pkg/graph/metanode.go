package graph

import (
	"errors"
	"slices"
)

var (
	// ErrNotMetanode is returned by [Graph.Expand] for a node that was not
	// produced by [Graph.Collapse].
	ErrNotMetanode = errors.New("not a metanode")

	// ErrExpandOrder is returned by [Graph.Expand] when a later collapse
	// is still pending. Metanodes expand in reverse collapse order.
	ErrExpandOrder = errors.New("metanode expanded out of order")
)

// collapseRecord remembers what a metanode replaced so that the collapse
// can be undone exactly.
type collapseRecord struct {
	meta  string
	a, b  Node
	edges []Edge // edges incident to a or b at collapse time
}

// Collapse replaces the nodes a and b by a single metanode meta. The
// metanode is adjacent to every former neighbor of a or b (duplicates merged,
// the a-b edge dropped). The operation is reversible with [Graph.Expand].
func (g *Graph) Collapse(a, b, meta string) error {
	na, ok := g.nodes[a]
	if !ok {
		return ErrUnknownNode
	}
	nb, ok := g.nodes[b]
	if !ok {
		return ErrUnknownNode
	}
	if a == b {
		return ErrSelfLoop
	}
	if meta == "" {
		return ErrInvalidNodeID
	}
	if g.HasNode(meta) {
		return ErrDuplicateNodeID
	}

	// Incident edges are found through the adjacency lists and restored
	// in their original insertion order on expand.
	var idx []int
	var outer []string
	seen := make(map[string]bool)
	for _, id := range [2]string{a, b} {
		for _, n := range g.adj[id] {
			if id == b && n == a {
				continue
			}
			idx = append(idx, g.edgeSet[MakeEdgeKey(id, n)])
			if n != a && n != b && !seen[n] {
				seen[n] = true
				outer = append(outer, n)
			}
		}
	}
	slices.Sort(idx)
	rec := collapseRecord{meta: meta, a: *na, b: *nb, edges: make([]Edge, len(idx))}
	for i, j := range idx {
		rec.edges[i] = g.edges[j]
	}

	_ = g.RemoveNode(a)
	_ = g.RemoveNode(b)
	_ = g.AddNode(Node{ID: meta})
	for _, n := range outer {
		_ = g.AddEdge(Edge{From: meta, To: n})
	}
	g.metaIdx[meta] = len(g.collapsed)
	g.collapsed = append(g.collapsed, rec)
	return nil
}

// Expand undoes the most recent [Graph.Collapse], restoring both
// constituents and their original edges. It returns the constituent IDs.
func (g *Graph) Expand(meta string) (string, string, error) {
	if len(g.collapsed) == 0 || !g.isMetanode(meta) {
		return "", "", ErrNotMetanode
	}
	rec := g.collapsed[len(g.collapsed)-1]
	if rec.meta != meta {
		return "", "", ErrExpandOrder
	}
	if err := g.RemoveNode(meta); err != nil {
		return "", "", err
	}
	g.collapsed = g.collapsed[:len(g.collapsed)-1]
	delete(g.metaIdx, meta)

	_ = g.AddNode(rec.a)
	_ = g.AddNode(rec.b)
	for _, e := range rec.edges {
		if err := g.AddEdge(e); err != nil {
			return "", "", err
		}
	}
	return rec.a.ID, rec.b.ID, nil
}

// Constituents returns the two nodes a metanode replaced.
func (g *Graph) Constituents(meta string) (string, string, bool) {
	i, ok := g.metaIdx[meta]
	if !ok {
		return "", "", false
	}
	return g.collapsed[i].a.ID, g.collapsed[i].b.ID, true
}

// CollapseDepth returns the number of pending collapses.
func (g *Graph) CollapseDepth() int { return len(g.collapsed) }

func (g *Graph) isMetanode(id string) bool {
	_, _, ok := g.Constituents(id)
	return ok
}
