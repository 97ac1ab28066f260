// Package sculpt computes the inflated position of every belly vertex: a
// projection onto the belly sphere followed by the user's shape passes and
// the boundary rules that keep the result outside the original skin.
package sculpt

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/bellysculpt/internal/engine/measure"
	"github.com/Faultbox/bellysculpt/internal/params"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// Solver shapes one mesh. A Solver owns its shape snapshot and curves and is
// used by a single worker.
type Solver struct {
	Shape  params.Shape
	Sphere measure.Sphere
	Curves Curves

	// Balloon processes every vertex and returns the raw sphere projection.
	Balloon bool
}

// NewSolver snapshots shape and clones curves for one pass.
func NewSolver(shape *params.Shape, sphere measure.Sphere, curves Curves, balloon bool) *Solver {
	return &Solver{
		Shape:   shape.Clone(),
		Sphere:  sphere,
		Curves:  curves.Clone(),
		Balloon: balloon,
	}
}

// Result is the output of one pass.
type Result struct {
	Inflated []pm.Vec3
	Altered  []bool
}

// Solve computes inflated positions for orig. Vertices outside region, or
// farther than the sphere's normal radius, keep their original position.
// clothOffsets may be nil for skin meshes.
func (s *Solver) Solve(orig []pm.Vec3, region []bool, clothOffsets []float32) Result {
	res := Result{
		Inflated: make([]pm.Vec3, len(orig)),
		Altered:  make([]bool, len(orig)),
	}
	c := s.Sphere.Center

	for i, o := range orig {
		if !s.Balloon && !region[i] {
			res.Inflated[i] = o
			continue
		}
		dist := o.Distance(c)
		if !s.Balloon && dist > s.Sphere.NormalRadius {
			res.Inflated[i] = o
			continue
		}
		res.Altered[i] = true

		var offset float32
		if clothOffsets != nil {
			offset = clothOffsets[i]
		}
		res.Inflated[i] = s.Vertex(o, offset)
	}
	return res
}

// Vertex projects o onto the sphere, grown by clothOffset, and sculpts the
// result.
func (s *Solver) Vertex(o pm.Vec3, clothOffset float32) pm.Vec3 {
	c := s.Sphere.Center
	v := o.Sub(c).Normalize().Scale(s.Sphere.Radius + clothOffset).Add(c)
	if s.Balloon {
		return v
	}
	out := s.Sculpt(o, v)
	if !out.IsFinite() {
		return o
	}
	return out
}

// Sculpt applies the shape passes to the projected position v of original
// vertex o and enforces the boundary rules. Any rule that rejects the result
// returns o unchanged.
func (s *Solver) Sculpt(o, v pm.Vec3) pm.Vec3 {
	sp := &s.Sphere
	sh := &s.Shape
	c := sp.Center
	pc := sp.PreShiftCenter

	skin := o.Distance(c)
	pmSkin := o.Distance(pc)

	// Only grow where the sphere is outside the skin.
	if skin >= v.Distance(c) || pmSkin > v.Distance(pc) {
		return o
	}

	v = s.baseShape(o, v)
	if sh.ShiftY != 0 || sh.ShiftZ != 0 {
		v = s.shift(o, v)
	}
	if sh.StretchX != 0 {
		v = s.stretchX(o, v)
	}
	if sh.StretchY != 0 {
		v = s.stretchY(o, v)
	}
	if sh.Roundness != 0 {
		v = s.roundness(o, v)
	}
	if sh.TaperY != 0 {
		v = s.taperY(o, v)
	}
	if sh.TaperZ != 0 {
		v = s.taperZ(o, v)
	}
	if sh.FatFold > 0 {
		v = s.fatFold(o, v)
	}
	if sh.Drop > 0 {
		v = s.drop(o, v)
	}
	v = s.roundToSides(o, v)
	if o.Y > pc.Y {
		v = s.reduceRibStretch(o, v)
	}

	if v == o {
		return o
	}
	return s.enforce(o, v)
}

// enforce applies the boundary rules in order.
func (s *Solver) enforce(o, v pm.Vec3) pm.Vec3 {
	sp := &s.Sphere
	c := sp.Center
	pc := sp.PreShiftCenter

	// Never pull in towards the vertical core line. Only X and Z are
	// restored, the new height stays.
	core := pm.Vec2{X: pc.X, Y: pc.Z}
	if v.XZ().Distance(core) < o.XZ().Distance(core) {
		v.X, v.Z = o.X, o.Z
	}

	// Outward only, against both the sphere and its unshifted center.
	if o.Distance(c) > v.Distance(c) || o.Distance(pc) > v.Distance(pc) {
		return o
	}

	// Nothing may move behind the back extent.
	if sp.BackExtent.Z > v.Z {
		return o
	}

	// In front of the center, a vertex that moved backwards keeps its
	// original depth and two thirds of its X and Y change.
	if o.Z > v.Z && o.Z > c.Z {
		v = pm.Vec3{
			X: v.X - (v.X-o.X)/3,
			Y: v.Y - (v.Y-o.Y)/3,
			Z: o.Z,
		}
		if o.Distance(c) > v.Distance(c) || o.Distance(pc) > v.Distance(pc) {
			return o
		}
	}
	return v
}

// push is how far v moved out past the skin, as a fraction of the radius.
// The edge of the belly is near zero, the front near one.
func (s *Solver) push(o, v pm.Vec3) float32 {
	r := s.Sphere.Radius
	if r <= 0 {
		return 0
	}
	c := s.Sphere.Center
	return pm.Clamp01((v.Distance(c) - o.Distance(c)) / r)
}

// baseShape keeps the belly narrower than the hips.
func (s *Solver) baseShape(o, v pm.Vec3) pm.Vec3 {
	c := s.Sphere.Center
	limit := max(s.Sphere.WaistWidth*0.75, math32.Abs(o.X-c.X))
	dx := v.X - c.X
	switch {
	case dx > limit:
		v.X = c.X + limit
	case dx < -limit:
		v.X = c.X - limit
	}
	return v
}

func (s *Solver) shift(o, v pm.Vec3) pm.Vec3 {
	w := s.push(o, v) * s.Sphere.Radius
	return v.Add(pm.Vec3{Y: s.Shape.ShiftY * w, Z: s.Shape.ShiftZ * w})
}

func (s *Solver) stretchX(o, v pm.Vec3) pm.Vec3 {
	w := s.push(o, v)
	v.X += (v.X - s.Sphere.Center.X) * s.Shape.StretchX * w
	return v
}

func (s *Solver) stretchY(o, v pm.Vec3) pm.Vec3 {
	w := s.push(o, v)
	v.Y += (v.Y - s.Sphere.Center.Y) * s.Shape.StretchY * w
	return v
}

// roundness grows or flattens the front of the belly. The edge curve keeps
// the rim in place.
func (s *Solver) roundness(o, v pm.Vec3) pm.Vec3 {
	r := s.Sphere.Radius
	if r <= 0 {
		return v
	}
	k := weight(s.Curves.Edge, o.Distance(s.Sphere.Center)/r)
	return v.Add(v.Sub(o).Scale(s.Shape.Roundness * (1 - k)))
}

// taperY narrows the top of the belly front and widens the bottom, or the
// reverse for negative values.
func (s *Solver) taperY(o, v pm.Vec3) pm.Vec3 {
	c := s.Sphere.Center
	r := s.Sphere.Radius
	if v.Z <= c.Z || r <= 0 {
		return v
	}
	frac := pm.Clamp((v.Y-c.Y)/r, -1, 1)
	v.Z -= (v.Z - c.Z) * s.Shape.TaperY * frac * s.push(o, v)
	return v
}

// taperZ tilts the belly front up or down.
func (s *Solver) taperZ(o, v pm.Vec3) pm.Vec3 {
	c := s.Sphere.Center
	back := s.Sphere.BackExtent
	depth := c.Z + s.Sphere.Radius - back.Z
	if depth <= 0 {
		return v
	}
	zFrac := pm.Clamp01((v.Z - back.Z) / depth)
	v.Y += s.Shape.TaperZ * s.Sphere.Radius * zFrac * s.push(o, v)
	return v
}

// fatFold pulls a horizontal band back towards the skin to form a crease.
func (s *Solver) fatFold(o, v pm.Vec3) pm.Vec3 {
	r := s.Sphere.Radius
	if r <= 0 {
		return v
	}
	foldY := s.Sphere.Center.Y + s.Shape.FatFoldHeight*r
	band := r / 4
	t := pm.Clamp01(1 - math32.Abs(v.Y-foldY)/band)
	pull := pm.Clamp01(s.Shape.FatFold/100) * t * t
	return v.Lerp(o, pull)
}

// drop sags the lower half of the belly down and forward.
func (s *Solver) drop(o, v pm.Vec3) pm.Vec3 {
	c := s.Sphere.Center
	r := s.Sphere.Radius
	if o.Y >= c.Y || r <= 0 {
		return v
	}
	w := pm.Clamp01((c.Y-o.Y)/r) * s.push(o, v) * s.Shape.Drop * r
	return v.Add(pm.Vec3{Y: -w, Z: w / 2})
}

// roundToSides fades the shape out between the sphere center and the back
// extent so the silhouette has no hard edge.
func (s *Solver) roundToSides(o, v pm.Vec3) pm.Vec3 {
	c := s.Sphere.Center
	back := s.Sphere.BackExtent
	span := c.Z - back.Z
	if span <= 0 {
		return v
	}
	k := weight(s.Curves.Sides, (o.Z-back.Z)/span)
	return o.Lerp(v, k)
}

// reduceRibStretch fades the forward growth out towards the top extent so
// the skin under the ribs does not stretch.
func (s *Solver) reduceRibStretch(o, v pm.Vec3) pm.Vec3 {
	top := s.Sphere.TopExtent
	span := top.Y - s.Sphere.PreShiftCenter.Y
	if span <= 0 {
		return v
	}
	k := weight(s.Curves.Top, (top.Y-o.Y)/span)
	v.Z = o.Z*(1-k) + v.Z*k
	return v
}
