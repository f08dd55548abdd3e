package graph

// Components returns the connected components of the subgraph induced by
// ids. A nil ids slice means the whole graph. Components are listed in the
// order of their first member in ids, and members in breadth-first order.
func (g *Graph) Components(ids []string) [][]string {
	if ids == nil {
		ids = g.NodeIDs()
	}
	allowed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if g.HasNode(id) {
			allowed[id] = true
		}
	}

	seen := make(map[string]bool, len(allowed))
	var comps [][]string
	for _, start := range ids {
		if !allowed[start] || seen[start] {
			continue
		}
		seen[start] = true
		comp := []string{start}
		for i := 0; i < len(comp); i++ {
			for _, nb := range g.adj[comp[i]] {
				if allowed[nb] && !seen[nb] {
					seen[nb] = true
					comp = append(comp, nb)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// Rings performs a breadth-first layering outward from sources. Ring 0
// holds the sources that exist in g; ring i holds the nodes at hop distance
// i from the nearest source. Nodes unreachable from every source are not
// part of any ring.
func (g *Graph) Rings(sources []string) [][]string {
	seen := make(map[string]bool, len(sources))
	var frontier []string
	for _, id := range sources {
		if g.HasNode(id) && !seen[id] {
			seen[id] = true
			frontier = append(frontier, id)
		}
	}

	var rings [][]string
	for len(frontier) > 0 {
		rings = append(rings, frontier)
		var next []string
		for _, id := range frontier {
			for _, nb := range g.adj[id] {
				if !seen[nb] {
					seen[nb] = true
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}
	return rings
}
