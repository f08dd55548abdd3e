// Package graph provides the graph store the layout phases run on.
//
// # Overview
//
// A [Graph] is an undirected simple graph keyed by string node IDs. It
// answers the structural queries the layout engine needs and nothing more:
//
//   - membership: [Graph.HasNode], [Graph.HasEdge]
//   - adjacency: [Graph.Neighbors], [Graph.Degree]
//   - subgraphs: [Graph.Induced], [Graph.Components], [Graph.Rings]
//   - metanodes: [Graph.Collapse] and its inverse [Graph.Expand]
//
// Iteration order is insertion order everywhere, so a layout seeded with a
// fixed random source is reproducible.
//
// # Metanodes
//
// Multilevel coarsening repeatedly collapses node pairs into metanodes.
// Each collapse is recorded on the graph and undone by Expand in reverse
// order, restoring the original nodes and edges exactly:
//
//	g.Collapse("a", "b", "ab")
//	// ... lay out the smaller graph ...
//	a, b, _ := g.Expand("ab")
//
// # Serialization
//
// Graphs travel as [Snapshot] JSON, optionally carrying positions:
//
//	{
//	  "nodes": [{"id": "a", "x": 0, "y": 0}, {"id": "b"}],
//	  "edges": [{"from": "a", "to": "b"}]
//	}
//
// A [Timeline] is an ordered list of snapshots; [ReadTimeline] also
// accepts a directory of snapshot files.
//
// # Concurrency
//
// Graph is not safe for concurrent mutation. Read-only use from several
// goroutines is safe once construction has finished.
package graph
