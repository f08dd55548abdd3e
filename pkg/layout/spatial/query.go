package spatial

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/layout/force"
)

// Repulsion approximates the total repulsion acting on point q located at
// p, traversing the tree from the root:
//
//   - if p is farther from a node's centroid than its radius, the whole
//     subtree contributes at once (see [Tree.FarField]) and is not descended
//   - otherwise a leaf contributes the exact pairwise repulsion of each of
//     its members except q
//   - otherwise both children are visited
//
// Raising VerticesThreshold trades accuracy for speed.
func (t *Tree) Repulsion(q int, p r2.Vec, m force.Model, multipole bool) r2.Vec {
	var sum r2.Vec
	stack := make([]int, 1, 32)
	stack[0] = 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[i]

		d := r2.Sub(p, n.Centroid)
		if r2.Norm(d) > n.Radius {
			sum = r2.Add(sum, t.farField(n, d, m, multipole))
			continue
		}
		if n.Leaf() {
			for _, v := range t.perm[n.Start:n.End] {
				if v != q {
					sum = r2.Add(sum, m.Repulsion(r2.Sub(p, t.points[v])))
				}
			}
			continue
		}
		stack = append(stack, n.Right, n.Left)
	}
	return sum
}

// FarField returns the aggregate repulsion tree node i exerts on a point at
// p outside its bounding circle.
//
// By default this is count * repulsion(p - centroid). With multipole set
// the node's coefficients are evaluated instead: the derivative of the
// complex potential
//
//	phi'(z) = a0/w + sum_k k*ak / w^(k+1),   w = z - z0
//
// gives the field (Re phi', -Im phi'), which is scaled by Kr/|w| so that the
// monopole term alone reproduces the inverse-square kernel.
func (t *Tree) FarField(i int, p r2.Vec, m force.Model, multipole bool) r2.Vec {
	n := &t.nodes[i]
	return t.farField(n, r2.Sub(p, n.Centroid), m, multipole)
}

func (t *Tree) farField(n *Node, d r2.Vec, m force.Model, multipole bool) r2.Vec {
	if !multipole {
		return r2.Scale(float64(n.Count()), m.Repulsion(d))
	}
	dist := r2.Norm(d)
	if dist == 0 {
		return r2.Vec{}
	}
	w := geom.Complex(d)
	wk := w
	phi := n.Coef[0] / w
	for k := 1; k < len(n.Coef); k++ {
		wk *= w
		phi += complex(float64(k), 0) * n.Coef[k] / wk
	}
	return r2.Scale(m.Kr/dist, r2.Vec{X: real(phi), Y: -imag(phi)})
}
