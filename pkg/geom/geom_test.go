package geom

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestBounds(t *testing.T) {
	p := Positions{"a": {X: 0, Y: 0}, "b": {X: 10, Y: -2}, "c": {X: 4, Y: 6}}

	box, ok := Bounds(p, nil)
	if !ok {
		t.Fatal("Bounds() ok = false")
	}
	if box.Width() != 10 || box.Height() != 8 {
		t.Errorf("Bounds() size = %vx%v, want 10x8", box.Width(), box.Height())
	}
	if c := box.Center(); c != (r2.Vec{X: 5, Y: 2}) {
		t.Errorf("Center() = %v, want (5,2)", c)
	}

	sub, ok := Bounds(p, []string{"a", "c", "missing"})
	if !ok || sub.Width() != 4 || sub.Height() != 6 {
		t.Errorf("Bounds(subset) = %+v", sub)
	}

	if _, ok := Bounds(p, []string{"missing"}); ok {
		t.Error("Bounds() over missing ids should report !ok")
	}
}

func TestRandomPointInside(t *testing.T) {
	box, _ := Bounds(Positions{"a": {X: -1, Y: 2}, "b": {X: 3, Y: 5}}, nil)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		v := box.RandomPoint(rng)
		if v.X < -1 || v.X > 3 || v.Y < 2 || v.Y > 5 {
			t.Fatalf("RandomPoint() = %v outside box", v)
		}
	}
}

func TestBoundingRadius(t *testing.T) {
	p := Positions{"a": {X: -1, Y: 0}, "b": {X: 1, Y: 0}, "c": {X: 0, Y: 3}}
	c, r, ok := BoundingRadius(p, []string{"a", "b", "c"})
	if !ok {
		t.Fatal("BoundingRadius() ok = false")
	}
	if c != (r2.Vec{X: 0, Y: 1}) {
		t.Errorf("center = %v, want (0,1)", c)
	}
	if math.Abs(r-2) > 1e-12 {
		t.Errorf("radius = %v, want 2", r)
	}
}

func TestClamp(t *testing.T) {
	v := Clamp(r2.Vec{X: 3, Y: 4}, 1)
	if math.Abs(r2.Norm(v)-1) > 1e-12 {
		t.Errorf("Clamp() norm = %v, want 1", r2.Norm(v))
	}
	if v.X <= 0 || v.Y <= 0 || math.Abs(v.X/v.Y-0.75) > 1e-12 {
		t.Errorf("Clamp() changed direction: %v", v)
	}
	if got := Clamp(r2.Vec{X: 0.1}, 1); got != (r2.Vec{X: 0.1}) {
		t.Errorf("Clamp() shortened a short vector: %v", got)
	}
}

func TestCloneIndependent(t *testing.T) {
	p := Positions{"a": {X: 1}}
	q := p.Clone()
	q["a"] = r2.Vec{X: 2}
	if p["a"].X != 1 {
		t.Error("Clone() shares storage")
	}
}
