// Package force implements the pairwise force kernels of the layout and
// their potential integrals.
//
// All kernels take the displacement d = p_self - p_other and are pure. A
// zero-length displacement (coincident points) yields a zero vector and a
// zero potential so the solver keeps progressing; [Model.AttractionStrict]
// reports DEGENERATE_GEOMETRY instead.
package force

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
)

// Model holds the force constants.
type Model struct {
	Kr float64 // repulsion strength
	Ks float64 // attraction strength
	L  float64 // desired edge length
}

// New builds a Model from the force section of cfg.
func New(cfg config.Force) Model {
	return Model{Kr: cfg.Repulsion, Ks: cfg.Attraction, L: cfg.EdgeLength}
}

// Repulsion returns d * Kr / |d|^3.
func (m Model) Repulsion(d r2.Vec) r2.Vec {
	n := r2.Norm(d)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(m.Kr/(n*n*n), d)
}

// Attraction returns d * Ks * (|d| - L) / |d|. The caller subtracts it from
// the endpoint d points away from, which pulls both endpoints toward length L.
func (m Model) Attraction(d r2.Vec) r2.Vec {
	n := r2.Norm(d)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(m.Ks*(n-m.L)/n, d)
}

// RepulsionPotential returns -Kr / |d|.
func (m Model) RepulsionPotential(d r2.Vec) float64 {
	n := r2.Norm(d)
	if n == 0 {
		return 0
	}
	return -m.Kr / n
}

// AttractionPotential returns Ks * (|d|^2/2 - L*|d|).
func (m Model) AttractionPotential(d r2.Vec) float64 {
	n := r2.Norm(d)
	return m.Ks * (n*n/2 - m.L*n)
}

// AttractionStrict is Attraction that rejects coincident points.
func (m Model) AttractionStrict(d r2.Vec) (r2.Vec, error) {
	if d == (r2.Vec{}) {
		return r2.Vec{}, errors.New(errors.ErrCodeDegenerateGeometry, "attraction between coincident points")
	}
	return m.Attraction(d), nil
}
