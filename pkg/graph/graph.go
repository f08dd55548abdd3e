package graph

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode is returned when an operation references a node that
	// does not exist in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrSelfLoop is returned by [Graph.AddEdge] for an edge whose endpoints
	// are the same node. Self loops carry no force and are rejected.
	ErrSelfLoop = errors.New("self loop")

	// ErrDuplicateEdge is returned by [Graph.AddEdge] when the two endpoints
	// are already connected, in either direction.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrUnknownEdge is returned by [Graph.RemoveEdge] when the endpoints are
	// not connected.
	ErrUnknownEdge = errors.New("unknown edge")
)

// Metadata stores arbitrary key-value pairs attached to nodes or edges.
type Metadata map[string]any

// Node is a vertex of the layout graph. Identity is the ID alone.
type Node struct {
	ID   string   // Unique identifier
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Edge connects two nodes. The order of From and To is kept for
// serialization but ignored by every query: edges are undirected for
// force purposes.
type Edge struct {
	From string
	To   string
	Meta Metadata
}

// Other returns the endpoint of e that is not id.
func (e Edge) Other(id string) string {
	if e.From == id {
		return e.To
	}
	return e.From
}

// Key returns the direction-independent identity of e.
func (e Edge) Key() EdgeKey { return MakeEdgeKey(e.From, e.To) }

// EdgeKey identifies an undirected edge by its ordered endpoint pair.
type EdgeKey struct{ A, B string }

// MakeEdgeKey returns the canonical key for the edge between u and v.
func MakeEdgeKey(u, v string) EdgeKey {
	if v < u {
		u, v = v, u
	}
	return EdgeKey{A: u, B: v}
}

// Graph is an undirected simple graph with deterministic iteration order.
// Nodes and edges are reported in insertion order so that layouts seeded
// with the same random source are reproducible.
//
// Removal leaves a tombstone in the ordered slices and compacts them once
// more than half of the entries are dead, so that removing a node or edge
// costs time proportional to its degree rather than to the graph size.
//
// The zero value is not usable - use New to create a valid Graph instance.
// Graph is not safe for concurrent use without external synchronization.
type Graph struct {
	nodes     map[string]*Node
	order     []string       // "" marks a removed node
	slot      map[string]int // index of each live node in order
	deadNodes int
	edges     []Edge          // zero Edge marks a removed edge
	edgeSet   map[EdgeKey]int // index of each live edge in edges
	deadEdges int
	adj       map[string][]string
	collapsed []collapseRecord
	metaIdx   map[string]int // index of each pending metanode in collapsed
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		slot:    make(map[string]int),
		edgeSet: make(map[EdgeKey]int),
		adj:     make(map[string][]string),
		metaIdx: make(map[string]int),
	}
}

// AddNode inserts a node.
//
// Returns ErrInvalidNodeID if the ID is empty, or ErrDuplicateNodeID if a
// node with the same ID already exists.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, ok := g.nodes[n.ID]; ok {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	g.nodes[n.ID] = &n
	g.slot[n.ID] = len(g.order)
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge connects two existing nodes.
//
// Returns ErrUnknownNode if either endpoint is missing, ErrSelfLoop for a
// loop, and ErrDuplicateEdge if the nodes are already adjacent.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownNode
	}
	if e.From == e.To {
		return ErrSelfLoop
	}
	key := e.Key()
	if _, ok := g.edgeSet[key]; ok {
		return ErrDuplicateEdge
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	g.edgeSet[key] = len(g.edges)
	g.edges = append(g.edges, e)
	g.adj[e.From] = append(g.adj[e.From], e.To)
	g.adj[e.To] = append(g.adj[e.To], e.From)
	return nil
}

// RemoveEdge disconnects u and v. Returns ErrUnknownEdge if they are not adjacent.
func (g *Graph) RemoveEdge(u, v string) error {
	key := MakeEdgeKey(u, v)
	i, ok := g.edgeSet[key]
	if !ok {
		return ErrUnknownEdge
	}
	delete(g.edgeSet, key)
	g.edges[i] = Edge{}
	g.deadEdges++
	g.adj[u] = slices.DeleteFunc(g.adj[u], func(id string) bool { return id == v })
	g.adj[v] = slices.DeleteFunc(g.adj[v], func(id string) bool { return id == u })
	if 2*g.deadEdges > len(g.edges) {
		g.compactEdges()
	}
	return nil
}

// RemoveNode deletes a node together with its incident edges.
func (g *Graph) RemoveNode(id string) error {
	if _, ok := g.nodes[id]; !ok {
		return ErrUnknownNode
	}
	for _, nb := range slices.Clone(g.adj[id]) {
		_ = g.RemoveEdge(id, nb)
	}
	delete(g.nodes, id)
	delete(g.adj, id)
	g.order[g.slot[id]] = ""
	delete(g.slot, id)
	g.deadNodes++
	if 2*g.deadNodes > len(g.order) {
		g.compactNodes()
	}
	return nil
}

func (g *Graph) compactNodes() {
	live := g.order[:0]
	for _, id := range g.order {
		if id != "" {
			g.slot[id] = len(live)
			live = append(live, id)
		}
	}
	clear(g.order[len(live):])
	g.order = live
	g.deadNodes = 0
}

func (g *Graph) compactEdges() {
	live := g.edges[:0]
	for _, e := range g.edges {
		if e.From != "" {
			g.edgeSet[e.Key()] = len(live)
			live = append(live, e)
		}
	}
	clear(g.edges[len(live):])
	g.edges = live
	g.deadEdges = 0
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id is a node of g.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// HasEdge reports whether u and v are adjacent, in either direction.
func (g *Graph) HasEdge(u, v string) bool {
	_, ok := g.edgeSet[MakeEdgeKey(u, v)]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, id := range g.order {
		if id != "" {
			out = append(out, g.nodes[id])
		}
	}
	return out
}

// NodeIDs returns all node IDs in insertion order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, 0, len(g.nodes))
	for _, id := range g.order {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edgeSet))
	for _, e := range g.edges {
		if e.From != "" {
			out = append(out, e)
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edgeSet) }

// Neighbors returns the IDs adjacent to id in edge insertion order.
// The returned slice must not be modified.
func (g *Graph) Neighbors(id string) []string { return g.adj[id] }

// Degree returns the number of neighbors of id.
func (g *Graph) Degree(id string) int { return len(g.adj[id]) }

// Induced returns the subgraph spanned by ids: the listed nodes that exist
// in g and every edge of g whose endpoints are both listed. Node order
// follows ids; edge order follows g.
func (g *Graph) Induced(ids []string) *Graph {
	sub := New()
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok && !sub.HasNode(id) {
			_ = sub.AddNode(Node{ID: n.ID, Meta: maps.Clone(n.Meta)})
		}
	}
	for _, e := range g.edges {
		if e.From != "" && sub.HasNode(e.From) && sub.HasNode(e.To) {
			_ = sub.AddEdge(Edge{From: e.From, To: e.To, Meta: maps.Clone(e.Meta)})
		}
	}
	return sub
}

// Clone returns a deep copy of g, including its metanode history.
func (g *Graph) Clone() *Graph {
	c := g.Induced(g.NodeIDs())
	c.collapsed = slices.Clone(g.collapsed)
	c.metaIdx = maps.Clone(g.metaIdx)
	return c
}
