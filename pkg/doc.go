// Package pkg provides the libraries behind evolayout, a force-directed
// layout engine for graphs that change over time.
//
// # Overview
//
// evolayout places the nodes of an undirected graph in the plane so that
// connected nodes sit about one edge length apart and unrelated nodes spread
// out. Repulsion between all pairs is approximated with a quadtree and
// multipole expansions, which keeps an iteration close to O(n log n). When a
// graph evolves, each new snapshot is laid out starting from the previous
// one, and only the region around the change is allowed to move freely.
//
// # Architecture
//
//	snapshot JSON
//	     ↓
//	[graph]            graph store, snapshots, metanodes
//	     ↓
//	[layout/spatial]   quadtree + multipole expansions
//	[layout/force]     repulsion and attraction model
//	[layout/solver]    iterative solver with cooling
//	[layout/multilevel] coarsening and prolongation
//	[layout/incremental] diff, placement, pinning
//	[layout/refine]    energy marking and relaxation
//	     ↓
//	[pipeline]         caching, hooks, timelines
//	     ↓
//	[render/nodelink]  DOT, SVG, PNG
//
// # Quick Start
//
//	g, pos, _ := graph.ReadFile("graph.json")
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, _ := runner.RunMultilevel(ctx, g, pos, pipeline.Options{})
//	svg, _, _ := runner.Render(ctx, res, pipeline.RenderOptions{Format: "svg"})
//
// # Main Packages
//
// [config] holds every tunable of the engine as one explicit value, loaded
// from TOML, YAML or JSON.
//
// [pipeline] ties the layout phases together, caches results through
// [cache] and reports to [observability] hooks.
//
// [store] keeps laid-out timelines (runs) on disk or in MongoDB.
//
// [server] exposes the pipeline over HTTP.
//
// [graph]: github.com/matzehuels/evolayout/pkg/graph
// [layout/spatial]: github.com/matzehuels/evolayout/pkg/layout/spatial
// [layout/force]: github.com/matzehuels/evolayout/pkg/layout/force
// [layout/solver]: github.com/matzehuels/evolayout/pkg/layout/solver
// [layout/multilevel]: github.com/matzehuels/evolayout/pkg/layout/multilevel
// [layout/incremental]: github.com/matzehuels/evolayout/pkg/layout/incremental
// [layout/refine]: github.com/matzehuels/evolayout/pkg/layout/refine
// [pipeline]: github.com/matzehuels/evolayout/pkg/pipeline
// [render/nodelink]: github.com/matzehuels/evolayout/pkg/render/nodelink
// [config]: github.com/matzehuels/evolayout/pkg/config
// [cache]: github.com/matzehuels/evolayout/pkg/cache
// [observability]: github.com/matzehuels/evolayout/pkg/observability
// [store]: github.com/matzehuels/evolayout/pkg/store
// [server]: github.com/matzehuels/evolayout/pkg/server
package pkg
