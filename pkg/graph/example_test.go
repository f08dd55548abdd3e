package graph_test

import (
	"fmt"

	"github.com/matzehuels/evolayout/pkg/graph"
)

func ExampleGraph_Collapse() {
	g := graph.New()
	for _, id := range []string{"a", "b", "c"} {
		_ = g.AddNode(graph.Node{ID: id})
	}
	_ = g.AddEdge(graph.Edge{From: "a", To: "b"})
	_ = g.AddEdge(graph.Edge{From: "b", To: "c"})

	_ = g.Collapse("a", "b", "ab")
	fmt.Println(g.NodeIDs(), g.HasEdge("ab", "c"))

	a, b, _ := g.Expand("ab")
	fmt.Println(a, b, g.NodeCount(), g.EdgeCount())
	// Output:
	// [c ab] true
	// a b 3 2
}

func ExampleGraph_Rings() {
	g := graph.New()
	for _, id := range []string{"1", "2", "3", "4"} {
		_ = g.AddNode(graph.Node{ID: id})
	}
	_ = g.AddEdge(graph.Edge{From: "1", To: "2"})
	_ = g.AddEdge(graph.Edge{From: "2", To: "3"})
	_ = g.AddEdge(graph.Edge{From: "3", To: "4"})

	fmt.Println(g.Rings([]string{"1"}))
	// Output: [[1] [2] [3] [4]]
}
