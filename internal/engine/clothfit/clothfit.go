// Package clothfit estimates how much further out clothing vertices must go
// than the skin beneath them so garments do not clip as the belly grows.
//
// Skin distances are sampled with a ray probe on the foreground; the offset
// formulas only use those scalars and are safe to run on a worker.
package clothfit

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/Faultbox/bellysculpt/internal/engine/measure"
	"github.com/Faultbox/bellysculpt/internal/params"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

var ErrNoSkin = errors.New("skin mesh has no triangles")

// Probe casts rays against the skin mesh.
type Probe struct {
	root  *bvhNode
	count int
}

// NewProbe builds a probe over skin positions and a triangle index list.
// Triangles referencing out-of-range vertices are skipped.
func NewProbe(skin []pm.Vec3, tris []int) (*Probe, error) {
	var faces []*triangle
	for i := 0; i+2 < len(tris); i += 3 {
		a, b, c := tris[i], tris[i+1], tris[i+2]
		if !inRange(a, len(skin)) || !inRange(b, len(skin)) || !inRange(c, len(skin)) {
			continue
		}
		faces = append(faces, &triangle{a: toR3(skin[a]), b: toR3(skin[b]), c: toR3(skin[c])})
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("%d indices: %w", len(tris), ErrNoSkin)
	}
	return &Probe{root: buildBVH(faces), count: len(faces)}, nil
}

// Triangles returns the number of skin faces in the probe.
func (p *Probe) Triangles() int { return p.count }

// Cast returns the distance from origin to the nearest skin face along dir,
// up to maxDist.
func (p *Probe) Cast(origin, dir pm.Vec3, maxDist float32) (float32, bool) {
	d := toR3(dir).Normalize()
	if d.Norm() == 0 {
		return 0, false
	}
	inv := r3.Vector{X: 1 / d.X, Y: 1 / d.Y, Z: 1 / d.Z}
	dist, ok := p.root.nearestHit(toR3(origin), d, inv, float64(maxDist))
	return float32(dist), ok
}

// Samples are skin distances for one clothing mesh. Hit is false where the
// probe found no skin.
type Samples struct {
	Dist []float32
	Hit  []bool
}

// Sample measures, for every region vertex within the sphere's normal
// radius, the distance to the skin along the line towards the sphere
// center. It must run on the foreground.
func Sample(p *Probe, verts []pm.Vec3, region []bool, sphere measure.Sphere) Samples {
	s := Samples{
		Dist: make([]float32, len(verts)),
		Hit:  make([]bool, len(verts)),
	}
	if p == nil {
		return s
	}
	for i, v := range verts {
		if !region[i] {
			continue
		}
		toCenter := sphere.Center.Sub(v)
		dist := toCenter.Length()
		if dist > sphere.NormalRadius || dist == 0 {
			continue
		}
		s.Dist[i], s.Hit[i] = p.Cast(v, toCenter, dist)
	}
	return s
}

// Estimator computes per-vertex cloth offsets for one mesh.
type Estimator struct {
	Version     params.OffsetVersion
	ClothOffset float32 // user slider, widens the band and the layer gap
	Sphere      measure.Sphere
	InnerLayer  bool
}

// band is the width the measured skin distance is compressed into.
func (e *Estimator) band() float32 {
	return e.Sphere.WaistWidth / 20 * (1 + e.ClothOffset)
}

// LayerOffset is the fixed extra distance for this mesh's layer. Layers
// that sit on the skin get none.
func (e *Estimator) LayerOffset() float32 {
	if e.InnerLayer {
		return 0
	}
	return e.Sphere.WaistWidth / 60 * (1 + e.ClothOffset)
}

// Offset returns the extra outward distance for one vertex with original
// position o and probe result dist/hit.
func (e *Estimator) Offset(o pm.Vec3, dist float32, hit bool) float32 {
	if e.Version == params.OffsetV1 {
		return e.offsetV1(o)
	}
	if !hit || dist < 0 {
		return 0
	}
	band := e.band()
	if band <= 0 {
		return 0
	}
	return band*dist/(dist+band) + e.LayerOffset()
}

// offsetV1 is the legacy formula. It ignores the probe and spreads the
// distance between the vertex and its sphere projection over a narrow band.
func (e *Estimator) offsetV1(o pm.Vec3) float32 {
	sp := &e.Sphere
	shrinkBy := sp.WaistWidth / 40 * (1 + e.ClothOffset)
	projected := o.Sub(sp.Center).Normalize().Scale(sp.Radius).Add(sp.Center)
	total := sp.Radius - sp.WaistWidth/3
	toEnd := o.Distance(projected)
	offset := total*shrinkBy - abs(total-toEnd)*shrinkBy
	return offset + e.LayerOffset()
}

// Offsets computes an offset for every vertex. Vertices without a sample
// get zero.
func (e *Estimator) Offsets(orig []pm.Vec3, s Samples) []float32 {
	out := make([]float32, len(orig))
	for i, o := range orig {
		if i >= len(s.Hit) {
			break
		}
		if e.Version != params.OffsetV1 && !s.Hit[i] {
			continue
		}
		out[i] = e.Offset(o, s.Dist[i], s.Hit[i])
	}
	return out
}

func inRange(i, n int) bool { return i >= 0 && i < n }

func toR3(v pm.Vec3) r3.Vector {
	return r3.Vector{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
