package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"slices"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
)

// Supported output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Formats lists the formats [Render] accepts.
var Formats = []string{FormatDOT, FormatSVG, FormatPNG}

// Options configures diagram generation.
type Options struct {
	// Scale is the number of points per layout unit. Zero means 1.
	Scale float64

	// Labels draws node IDs. Without labels nodes are small dots.
	Labels bool

	// Highlight lists node IDs drawn in the highlight color.
	Highlight []string

	// Weights maps node IDs to a value in [0,1] drawn as fill opacity.
	// Nodes without a weight are drawn opaque.
	Weights map[string]float64
}

const highlightColor = "#d62728"

// ToDOT converts a graph and its positions to Graphviz DOT with every node
// pinned. Every node of g needs a position.
func ToDOT(g *graph.Graph, pos geom.Positions, opts Options) (string, error) {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  outputorder=edgesfirst;\n")
	if opts.Labels {
		buf.WriteString("  node [shape=circle, style=filled, fillcolor=\"#1f77b4\", fontcolor=white, fontsize=10, width=0.3, fixedsize=false];\n")
	} else {
		buf.WriteString("  node [shape=point, width=0.08, color=\"#1f77b4\"];\n")
	}
	buf.WriteString("  edge [color=\"#7f7f7f\", penwidth=0.8];\n\n")

	for _, n := range g.Nodes() {
		p, ok := pos[n.ID]
		if !ok {
			return "", errors.New(errors.ErrCodeInvalidInput, "node %q has no position", n.ID)
		}
		attrs := fmt.Sprintf("pos=\"%s,%s!\"", fmtCoord(p.X*scale), fmtCoord(p.Y*scale))
		if opts.Labels {
			attrs += fmt.Sprintf(", label=%q", n.ID)
		} else {
			attrs += ", label=\"\""
		}
		if color := fillColor(n.ID, opts); color != "" {
			if opts.Labels {
				attrs += fmt.Sprintf(", fillcolor=%q", color)
			} else {
				attrs += fmt.Sprintf(", color=%q", color)
			}
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, attrs)
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -- %q;\n", e.From, e.To)
	}
	buf.WriteString("}\n")
	return buf.String(), nil
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// fillColor returns the color of id, or "" for the default.
func fillColor(id string, opts Options) string {
	base := "#1f77b4"
	if slices.Contains(opts.Highlight, id) {
		base = highlightColor
	}
	w, ok := opts.Weights[id]
	if !ok {
		if base == highlightColor {
			return base
		}
		return ""
	}
	alpha := int(math.Round(40 + 215*math.Max(0, math.Min(1, w))))
	return fmt.Sprintf("%s%02x", base, alpha)
}

// RenderSVG renders DOT produced by [ToDOT] to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	var buf bytes.Buffer
	if err := render(ctx, dot, graphviz.SVG, &buf); err != nil {
		return nil, err
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// RenderPNG renders DOT produced by [ToDOT] to PNG.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	var buf bytes.Buffer
	if err := render(ctx, dot, graphviz.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render converts DOT to the named format. The dot format returns the
// source unchanged.
func Render(ctx context.Context, dot, format string) ([]byte, error) {
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, dot)
	case FormatPNG:
		return RenderPNG(ctx, dot)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (want one of %v)", format, Formats)
	}
}

func render(ctx context.Context, dot string, format graphviz.Format, w io.Writer) error {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	if err := gv.Render(ctx, g, format, w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the pt-sized root element with a unitless one
// so the SVG scales when embedded.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
