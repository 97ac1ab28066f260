// Package blend turns a mesh record's original and inflated positions into
// the geometry written back to the host at a given intensity.
package blend

import (
	"errors"
	"fmt"

	"github.com/Faultbox/bellysculpt/internal/host"
	"github.com/Faultbox/bellysculpt/internal/mesh"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

var ErrNotReady = errors.New("mesh record has no shaped result")

// Topology is the per-mesh connectivity needed to rebuild normals and
// tangents. It is read once on the foreground.
type Topology struct {
	Triangles []int
	UVs       []pm.Vec2
}

// Lerp returns the reference pose positions at factor t in [0, 1]. Only
// region vertices move unless all is set. The endpoints are exact: t=0
// returns orig and t=1 returns inflated for every moving vertex.
func Lerp(orig, inflated []pm.Vec3, region []bool, t float32, all bool) []pm.Vec3 {
	out := make([]pm.Vec3, len(orig))
	t = pm.Clamp01(t)
	for i, o := range orig {
		if !all && !region[i] {
			out[i] = o
			continue
		}
		switch t {
		case 0:
			out[i] = o
		case 1:
			out[i] = inflated[i]
		default:
			out[i] = o.Lerp(inflated[i], t)
		}
	}
	return out
}

// Engine builds host geometry from records.
type Engine struct {
	SmoothingAngle float32
	// All moves every vertex instead of only the belly region.
	All bool
}

// Current returns the reference pose positions of rec at factor.
func (e *Engine) Current(rec *mesh.Record, factor float32) ([]pm.Vec3, error) {
	if !rec.Ready() {
		return nil, fmt.Errorf("%s: %w", rec.Key, ErrNotReady)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return Lerp(rec.Original, rec.Inflated, rec.Region, factor, e.All), nil
}

// Build returns the geometry of rec at factor. A factor of zero returns the
// base geometry exactly. Normals and tangents are only recomputed for the
// record's altered vertices, bounds always.
func (e *Engine) Build(rec *mesh.Record, topo Topology, factor float32) (host.Geometry, error) {
	cur, err := e.Current(rec, factor)
	if err != nil {
		return host.Geometry{}, err
	}
	if rec.BaseVertices == nil {
		return host.Geometry{}, fmt.Errorf("%s: base vertices not captured: %w", rec.Key, ErrNotReady)
	}

	g := host.Geometry{
		Vertices: make([]pm.Vec3, len(cur)),
	}
	for i, p := range cur {
		switch {
		case p == rec.Original[i]:
			g.Vertices[i] = rec.BaseVertices[i]
		case rec.ToBuffer != nil:
			g.Vertices[i] = rec.ToBuffer[i].TransformPoint(p)
		default:
			g.Vertices[i] = p
		}
	}
	g.Bounds.Min, g.Bounds.Max = Bounds(g.Vertices)

	if factor <= 0 && rec.BaseNormals != nil && rec.BaseTangents != nil {
		g.Normals = append([]pm.Vec3(nil), rec.BaseNormals...)
		g.Tangents = append([]pm.Vec4(nil), rec.BaseTangents...)
		return g, nil
	}

	altered := rec.Altered
	if rec.BaseNormals == nil {
		altered = nil
	}
	angle := e.SmoothingAngle
	if angle <= 0 {
		angle = DefaultSmoothingAngle
	}
	g.Normals = RecalculateNormals(g.Vertices, topo.Triangles, rec.BaseNormals, altered, angle)

	if rec.BaseTangents == nil {
		altered = nil
	}
	g.Tangents = RecalculateTangents(g.Vertices, g.Normals, topo.UVs, topo.Triangles, rec.BaseTangents, altered)
	return g, nil
}
