package force

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
)

func model() Model { return New(config.Default().Force) }

func near(a, b r2.Vec) bool {
	scale := math.Max(1, math.Max(r2.Norm(a), r2.Norm(b)))
	return r2.Norm(r2.Sub(a, b)) <= 1e-9*scale
}

func TestKernels(t *testing.T) {
	m := model() // Kr=100, Ks=1, L=10

	if got := m.Repulsion(r2.Vec{X: 2}); !near(got, r2.Vec{X: 25}) {
		t.Errorf("Repulsion((2,0)) = %v, want (25,0)", got)
	}
	if got := m.Attraction(r2.Vec{X: 0, Y: 20}); !near(got, r2.Vec{Y: 10}) {
		t.Errorf("Attraction((0,20)) = %v, want (0,10)", got)
	}
	if got := m.Attraction(r2.Vec{X: 10}); !near(got, r2.Vec{}) {
		t.Errorf("Attraction at rest length = %v, want zero", got)
	}
	if got := m.RepulsionPotential(r2.Vec{X: 4}); got != -25 {
		t.Errorf("RepulsionPotential((4,0)) = %v, want -25", got)
	}
	if got := m.AttractionPotential(r2.Vec{X: 10}); got != -50 {
		t.Errorf("AttractionPotential((10,0)) = %v, want -50", got)
	}
}

func TestCoincidentPoints(t *testing.T) {
	m := model()
	zero := r2.Vec{}
	if m.Repulsion(zero) != zero || m.Attraction(zero) != zero {
		t.Error("coincident points must produce zero force")
	}
	if m.RepulsionPotential(zero) != 0 || m.AttractionPotential(zero) != 0 {
		t.Error("coincident points must produce zero potential")
	}

	if _, err := m.AttractionStrict(zero); !errors.Is(err, errors.ErrCodeDegenerateGeometry) {
		t.Errorf("AttractionStrict() error = %v", err)
	}
	if _, err := m.AttractionStrict(r2.Vec{X: 1}); err != nil {
		t.Errorf("AttractionStrict(non-degenerate) error = %v", err)
	}
}

func TestAntisymmetry(t *testing.T) {
	m := model()
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	coord := gen.Float64Range(-1000, 1000)

	properties.Property("repulsion(a,b) == -repulsion(b,a)", prop.ForAll(
		func(ax, ay, bx, by float64) bool {
			a, b := r2.Vec{X: ax, Y: ay}, r2.Vec{X: bx, Y: by}
			if a == b {
				return true
			}
			return near(m.Repulsion(r2.Sub(a, b)), r2.Scale(-1, m.Repulsion(r2.Sub(b, a))))
		},
		coord, coord, coord, coord,
	))

	properties.Property("attraction(a,b) == -attraction(b,a)", prop.ForAll(
		func(ax, ay, bx, by float64) bool {
			a, b := r2.Vec{X: ax, Y: ay}, r2.Vec{X: bx, Y: by}
			if a == b {
				return true
			}
			return near(m.Attraction(r2.Sub(a, b)), r2.Scale(-1, m.Attraction(r2.Sub(b, a))))
		},
		coord, coord, coord, coord,
	))

	properties.Property("repulsion points along d", prop.ForAll(
		func(x, y float64) bool {
			d := r2.Vec{X: x, Y: y}
			if d == (r2.Vec{}) {
				return true
			}
			return r2.Dot(m.Repulsion(d), d) > 0
		},
		coord, coord,
	))

	properties.TestingRun(t)
}
