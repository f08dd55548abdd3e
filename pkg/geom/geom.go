// Package geom provides the 2-D position store and bounding computations
// shared by the layout phases.
//
// Vectors are gonum's [r2.Vec]; positions are kept in a [Positions] map
// keyed by node ID. Each phase owns the map it is handed and mutates it in
// place.
package geom

import (
	"maps"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"
)

// Positions maps node IDs to their 2-D location.
type Positions map[string]r2.Vec

// Clone returns an independent copy of p.
func (p Positions) Clone() Positions {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Has reports whether id has a position.
func (p Positions) Has(id string) bool {
	_, ok := p[id]
	return ok
}

// Box is an axis-aligned bounding box.
type Box struct {
	r2.Box
}

// Width returns the horizontal extent.
func (b Box) Width() float64 { return b.Max.X - b.Min.X }

// Height returns the vertical extent.
func (b Box) Height() float64 { return b.Max.Y - b.Min.Y }

// Center returns the midpoint of the box.
func (b Box) Center() r2.Vec {
	return r2.Vec{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// RandomPoint returns a uniformly distributed point inside the box.
func (b Box) RandomPoint(rng *rand.Rand) r2.Vec {
	return r2.Vec{
		X: b.Min.X + rng.Float64()*b.Width(),
		Y: b.Min.Y + rng.Float64()*b.Height(),
	}
}

// Bounds returns the bounding box of the positions of ids. Missing IDs are
// skipped; ok is false when none of them has a position. A nil ids slice
// means every entry of p.
func Bounds(p Positions, ids []string) (box Box, ok bool) {
	box.Min = r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	box.Max = r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	extend := func(v r2.Vec) {
		box.Min.X = math.Min(box.Min.X, v.X)
		box.Min.Y = math.Min(box.Min.Y, v.Y)
		box.Max.X = math.Max(box.Max.X, v.X)
		box.Max.Y = math.Max(box.Max.Y, v.Y)
		ok = true
	}
	if ids == nil {
		for _, v := range p {
			extend(v)
		}
	} else {
		for _, id := range ids {
			if v, has := p[id]; has {
				extend(v)
			}
		}
	}
	if !ok {
		return Box{}, false
	}
	return box, true
}

// BoundingRadius returns the centroid of the positions of ids and the
// largest distance from it to any of them.
func BoundingRadius(p Positions, ids []string) (center r2.Vec, radius float64, ok bool) {
	n := 0
	for _, id := range ids {
		if v, has := p[id]; has {
			center = r2.Add(center, v)
			n++
		}
	}
	if n == 0 {
		return r2.Vec{}, 0, false
	}
	center = r2.Scale(1/float64(n), center)
	for _, id := range ids {
		if v, has := p[id]; has {
			radius = math.Max(radius, r2.Norm(r2.Sub(v, center)))
		}
	}
	return center, radius, true
}

// Clamp shortens v to length max, preserving its direction.
func Clamp(v r2.Vec, max float64) r2.Vec {
	n := r2.Norm(v)
	if n <= max || n == 0 {
		return v
	}
	return r2.Scale(max/n, v)
}

// Polar returns the vector of length r at angle theta.
func Polar(r, theta float64) r2.Vec {
	return r2.Vec{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

// Complex converts v to a complex number x+iy.
func Complex(v r2.Vec) complex128 { return complex(v.X, v.Y) }
