// Package nodelink renders solved layouts as node-link diagrams.
//
// # Overview
//
// Positions computed by the layout engine are written to Graphviz DOT
// with every node pinned (pos="x,y!"), so Graphviz only draws. The
// [github.com/goccy/go-graphviz] NEATO engine honors pinned positions and
// routes the edges as straight segments.
//
// # Usage
//
//	dot, err := nodelink.ToDOT(g, pos, nodelink.Options{Highlight: en.High})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot)
//
// # Options
//
//   - Scale: points per layout unit (default 1)
//   - Labels: draw node IDs inside the nodes
//   - Highlight: node IDs filled in the highlight color, such as the nodes
//     flagged by the energy refiner or added by an incremental step
//   - Weights: per-node values in [0,1] shown as fill opacity, such as
//     pinning weights
package nodelink
