package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
)

func triangle(t *testing.T) (*graph.Graph, geom.Positions) {
	t.Helper()
	g := graph.New()
	for _, id := range []string{"a", "b", "c"} {
		if err := g.AddNode(graph.Node{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}} {
		if err := g.AddEdge(graph.Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatal(err)
		}
	}
	return g, geom.Positions{"a": {X: 0, Y: 0}, "b": {X: 10.004, Y: 0}, "c": {X: 5, Y: -8.5}}
}

func TestToDOTPinsPositions(t *testing.T) {
	g, pos := triangle(t)
	dot, err := ToDOT(g, pos, Options{Scale: 2, Labels: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`graph G {`,
		`"a" [pos="0,0!", label="a"]`,
		`"b" [pos="20.01,0!", label="b"]`,
		`"c" [pos="10,-17!", label="c"]`,
		`"a" -- "b";`,
		`"c" -- "a";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestToDOTColors(t *testing.T) {
	g, pos := triangle(t)
	dot, err := ToDOT(g, pos, Options{
		Highlight: []string{"c"},
		Weights:   map[string]float64{"a": 0, "b": 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"a" [pos="0,0!", label="", color="#1f77b428"]`,
		`"b" [pos="10,0!", label="", color="#1f77b4ff"]`,
		`"c" [pos="5,-8.5!", label="", color="#d62728"]`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestToDOTMissingPosition(t *testing.T) {
	g, pos := triangle(t)
	delete(pos, "b")
	if _, err := ToDOT(g, pos, Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render(context.Background(), "graph G {}", "pdf"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
	out, err := Render(context.Background(), "graph G {}", FormatDOT)
	if err != nil || string(out) != "graph G {}" {
		t.Errorf("Render(dot) = %q, %v", out, err)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 100.00 50.00" width="100" height="50"`) {
		t.Errorf("normalizeViewBox = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("no viewBox should be unchanged, got %s", got)
	}
}

func TestRenderSVG(t *testing.T) {
	g, pos := triangle(t)
	dot, err := ToDOT(g, pos, Options{Labels: true})
	if err != nil {
		t.Fatal(err)
	}
	svg, err := RenderSVG(context.Background(), dot)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Errorf("output is not SVG: %.80s", svg)
	}
}
