// Package spatial builds the kd-style decomposition tree used to
// approximate long-range repulsion.
//
// # Structure
//
// A [Tree] is an arena of [Node] values addressed by index; node 0 is the
// root. Each node owns a contiguous range of a shared member permutation,
// so a node's members are exactly the union of its children's members and
// every point belongs to exactly one leaf.
//
// Subsets are split at the median of their members sorted by X at even
// depth and by Y at odd depth. A node whose member count is at or below
// VerticesThreshold is a leaf.
//
// # Coefficients
//
// Every node carries P+1 complex coefficients computed directly from its
// own members around its centroid z0:
//
//	a0 = member count
//	ak = sum over members of -(z - z0)^k / k,   k = 1..P
//
// Coefficients are never shifted from children to parents. They are
// computed once per build and the tree is read-only afterwards.
package spatial

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
)

// Options controls tree construction.
type Options struct {
	VerticesThreshold int  // maximum leaf size
	Precision         int  // number of multipole terms P
	LinearMedian      bool // select medians in expected linear time instead of sorting
}

// Node is one partition of the point set.
type Node struct {
	Start, End  int          // member range in the tree permutation
	Centroid    r2.Vec       // mean member position
	Radius      float64      // largest member distance from Centroid
	Coef        []complex128 // multipole coefficients, length P+1
	Left, Right int          // child indices, -1 at leaves
	Depth       int
}

// Leaf reports whether n has no children.
func (n *Node) Leaf() bool { return n.Left < 0 }

// Count returns the number of members of n.
func (n *Node) Count() int { return n.End - n.Start }

// Tree is an immutable spatial decomposition of a point set.
type Tree struct {
	nodes  []Node
	perm   []int
	points []r2.Vec
	opts   Options
}

// Build constructs a tree over points. Point i is identified by its index
// in points.
//
// Returns EMPTY_INPUT for an empty point set and INVALID_CONFIGURATION for a
// non-positive threshold or precision.
func Build(points []r2.Vec, opts Options) (*Tree, error) {
	if len(points) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "spatial tree over an empty point set")
	}
	if opts.VerticesThreshold < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "vertices threshold must be positive, got %d", opts.VerticesThreshold)
	}
	if opts.Precision < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "precision must be positive, got %d", opts.Precision)
	}

	t := &Tree{
		perm:   make([]int, len(points)),
		points: points,
		opts:   opts,
	}
	for i := range t.perm {
		t.perm[i] = i
	}

	// capacity hint: a balanced split leaves about 2n/threshold nodes
	t.nodes = make([]Node, 0, 2*len(points)/max(opts.VerticesThreshold, 1)+1)
	t.nodes = append(t.nodes, t.newNode(0, len(points), 0))

	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := t.nodes[i]
		if n.Count() <= opts.VerticesThreshold {
			continue
		}

		mid := t.split(n.Start, n.End, n.Depth)
		left := len(t.nodes)
		t.nodes = append(t.nodes, t.newNode(n.Start, mid, n.Depth+1))
		right := len(t.nodes)
		t.nodes = append(t.nodes, t.newNode(mid, n.End, n.Depth+1))
		t.nodes[i].Left, t.nodes[i].Right = left, right

		stack = append(stack, right, left)
	}
	return t, nil
}

// newNode builds a leaf over perm[start:end] with its geometry and
// coefficients filled in.
func (t *Tree) newNode(start, end, depth int) Node {
	n := Node{Start: start, End: end, Left: -1, Right: -1, Depth: depth}
	members := t.perm[start:end]

	for _, m := range members {
		n.Centroid = r2.Add(n.Centroid, t.points[m])
	}
	n.Centroid = r2.Scale(1/float64(len(members)), n.Centroid)

	for _, m := range members {
		n.Radius = math.Max(n.Radius, r2.Norm(r2.Sub(t.points[m], n.Centroid)))
	}

	n.Coef = make([]complex128, t.opts.Precision+1)
	n.Coef[0] = complex(float64(len(members)), 0)
	z0 := geom.Complex(n.Centroid)
	for _, m := range members {
		w := geom.Complex(t.points[m]) - z0
		pow := w
		for k := 1; k <= t.opts.Precision; k++ {
			n.Coef[k] -= pow / complex(float64(k), 0)
			pow *= w
		}
	}
	return n
}

// split reorders perm[start:end] around the median of the depth's axis and
// returns the index of the first member of the right half.
func (t *Tree) split(start, end, depth int) int {
	key := func(i int) float64 { return t.points[i].X }
	if depth%2 == 1 {
		key = func(i int) float64 { return t.points[i].Y }
	}
	less := func(a, b int) int {
		if c := cmp.Compare(key(a), key(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}

	seg := t.perm[start:end]
	mid := len(seg) / 2
	if t.opts.LinearMedian {
		selectNth(seg, mid, less)
	} else {
		slices.SortFunc(seg, less)
	}
	return start + mid
}

// selectNth partially orders s so that s[n] holds the element a full sort
// would put there, every element before it compares <= and every element
// after it compares >=.
func selectNth(s []int, n int, less func(a, b int) int) {
	lo, hi := 0, len(s)-1
	for lo < hi {
		// median of three pivot
		m := lo + (hi-lo)/2
		if less(s[m], s[lo]) < 0 {
			s[m], s[lo] = s[lo], s[m]
		}
		if less(s[hi], s[lo]) < 0 {
			s[hi], s[lo] = s[lo], s[hi]
		}
		if less(s[hi], s[m]) < 0 {
			s[hi], s[m] = s[m], s[hi]
		}
		pivot := s[m]

		i, j := lo, hi
		for i <= j {
			for less(s[i], pivot) < 0 {
				i++
			}
			for less(s[j], pivot) > 0 {
				j--
			}
			if i <= j {
				s[i], s[j] = s[j], s[i]
				i++
				j--
			}
		}
		switch {
		case n <= j:
			hi = j
		case n >= i:
			lo = i
		default:
			return
		}
	}
}

// =============================================================================
// Accessors
// =============================================================================

// Root returns the index of the root node.
func (t *Tree) Root() int { return 0 }

// Len returns the number of tree nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the tree node at index i.
func (t *Tree) Node(i int) *Node { return &t.nodes[i] }

// Members returns the point indices of tree node i. The returned slice
// must not be modified.
func (t *Tree) Members(i int) []int {
	n := &t.nodes[i]
	return t.perm[n.Start:n.End]
}

// Point returns the position of point i.
func (t *Tree) Point(i int) r2.Vec { return t.points[i] }

// Leaves returns the indices of all leaf nodes in depth-first order.
func (t *Tree) Leaves() []int {
	var out []int
	t.Walk(func(i int, n *Node) bool {
		if n.Leaf() {
			out = append(out, i)
		}
		return true
	})
	return out
}

// Walk visits tree nodes depth-first, left before right. Returning false
// from fn skips the children of that node.
func (t *Tree) Walk(fn func(i int, n *Node) bool) {
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[i]
		if fn(i, n) && !n.Leaf() {
			stack = append(stack, n.Right, n.Left)
		}
	}
}
