package clothfit

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// triangle is one skin face in reference space.
type triangle struct {
	a, b, c r3.Vector
}

func (t *triangle) centroid() r3.Vector {
	return t.a.Add(t.b).Add(t.c).Mul(1.0 / 3)
}

// bvhNode is a node of a bounding volume hierarchy over skin triangles. A
// node has either two children or a list of triangles.
type bvhNode struct {
	min, max    r3.Vector
	left, right *bvhNode
	triangles   []*triangle
}

// maxTrianglesPerLeaf is the threshold for splitting nodes.
const maxTrianglesPerLeaf = 4

func buildBVH(triangles []*triangle) *bvhNode {
	if len(triangles) == 0 {
		return nil
	}
	return buildBVHNode(triangles)
}

func buildBVHNode(triangles []*triangle) *bvhNode {
	node := &bvhNode{}
	node.min, node.max = trianglesAABB(triangles)

	if len(triangles) <= maxTrianglesPerLeaf {
		node.triangles = triangles
		return node
	}

	// Split at the median along the longest axis
	extent := node.max.Sub(node.min)
	axis := 0
	if extent.Y > extent.X && extent.Y > extent.Z {
		axis = 1
	} else if extent.Z > extent.X && extent.Z > extent.Y {
		axis = 2
	}
	sort.SliceStable(triangles, func(i, j int) bool {
		ci := triangles[i].centroid()
		cj := triangles[j].centroid()
		switch axis {
		case 0:
			return ci.X < cj.X
		case 1:
			return ci.Y < cj.Y
		default:
			return ci.Z < cj.Z
		}
	})

	mid := len(triangles) / 2
	node.left = buildBVHNode(triangles[:mid])
	node.right = buildBVHNode(triangles[mid:])
	return node
}

func trianglesAABB(triangles []*triangle) (min, max r3.Vector) {
	min = r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max = r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, t := range triangles {
		for _, p := range [3]r3.Vector{t.a, t.b, t.c} {
			min.X = math.Min(min.X, p.X)
			min.Y = math.Min(min.Y, p.Y)
			min.Z = math.Min(min.Z, p.Z)
			max.X = math.Max(max.X, p.X)
			max.Y = math.Max(max.Y, p.Y)
			max.Z = math.Max(max.Z, p.Z)
		}
	}
	return min, max
}

// rayHitsAABB is the slab test. It reports whether the ray enters the box
// before maxDist.
func rayHitsAABB(origin, invDir r3.Vector, maxDist float64, min, max r3.Vector) bool {
	tmin, tmax := 0.0, maxDist
	for _, axis := range [3]struct{ o, inv, lo, hi float64 }{
		{origin.X, invDir.X, min.X, max.X},
		{origin.Y, invDir.Y, min.Y, max.Y},
		{origin.Z, invDir.Z, min.Z, max.Z},
	} {
		t1 := (axis.lo - axis.o) * axis.inv
		t2 := (axis.hi - axis.o) * axis.inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		// NaN from 0 * Inf means the ray is parallel and inside the slab.
		if !math.IsNaN(t1) {
			tmin = math.Max(tmin, t1)
		}
		if !math.IsNaN(t2) {
			tmax = math.Min(tmax, t2)
		}
		if tmin > tmax {
			return false
		}
	}
	return true
}

// rayTriangle is the Möller-Trumbore intersection. It returns the distance
// along the unit direction dir, or false when the ray misses.
func rayTriangle(origin, dir r3.Vector, t *triangle) (float64, bool) {
	const eps = 1e-9
	e1 := t.b.Sub(t.a)
	e2 := t.c.Sub(t.a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(t.a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	d := e2.Dot(q) * inv
	if d < 0 {
		return 0, false
	}
	return d, true
}

// nearestHit returns the closest intersection within maxDist.
func (n *bvhNode) nearestHit(origin, dir, invDir r3.Vector, maxDist float64) (float64, bool) {
	if n == nil || !rayHitsAABB(origin, invDir, maxDist, n.min, n.max) {
		return 0, false
	}
	if n.triangles != nil {
		best, found := maxDist, false
		for _, t := range n.triangles {
			if d, ok := rayTriangle(origin, dir, t); ok && d <= best {
				best, found = d, true
			}
		}
		return best, found
	}

	best, found := maxDist, false
	if d, ok := n.left.nearestHit(origin, dir, invDir, best); ok {
		best, found = d, true
	}
	if d, ok := n.right.nearestHit(origin, dir, invDir, best); ok {
		best, found = d, true
	}
	return best, found
}
