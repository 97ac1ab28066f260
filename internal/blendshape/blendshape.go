// Package blendshape distills the shaped result of a mesh into a reusable
// morph target and keeps the targets of one character.
package blendshape

import (
	"errors"
	"fmt"

	"github.com/Faultbox/bellysculpt/internal/engine/blend"
	"github.com/Faultbox/bellysculpt/internal/host"
	"github.com/Faultbox/bellysculpt/internal/mesh"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

var ErrNoOriginalVertices = errors.New("mesh has no original vertices yet")

// Suffix marks morph targets created by this engine.
const Suffix = "bellysculpt"

// Name derives the morph target name for a mesh. tag is optional.
func Name(key mesh.Key, tag string) string {
	if tag == "" {
		return fmt.Sprintf("%s_%d_%s", key.Name, key.VertexCount, Suffix)
	}
	return fmt.Sprintf("%s_%d_%s_%s", key.Name, key.VertexCount, Suffix, tag)
}

// Shape is a single morph target frame: per-vertex position and normal
// deltas from the mesh's base geometry to its fully inflated geometry.
type Shape struct {
	Name          string
	Key           mesh.Key
	DeltaVertices []pm.Vec3
	DeltaNormals  []pm.Vec3
}

// Distiller builds morph targets from mesh records.
type Distiller struct {
	Engine *blend.Engine
}

// Distill computes the morph target of rec against the live mesh m. The
// target normals are computed but nothing is written to m.
func (d *Distiller) Distill(m host.Mesh, rec *mesh.Record, topo blend.Topology, tag string) (*Shape, error) {
	if rec == nil || rec.Original == nil {
		return nil, fmt.Errorf("%s: %w", m.Name(), ErrNoOriginalVertices)
	}

	var live int
	err := host.WithReadable(m, func() error {
		verts, err := m.Vertices()
		live = len(verts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if live != len(rec.Original) {
		return nil, fmt.Errorf("%s: live mesh has %d vertices, record %d: %w",
			rec.Key, live, len(rec.Original), mesh.ErrVertexCountMismatch)
	}

	target, err := d.Engine.Build(rec, topo, 1)
	if err != nil {
		return nil, err
	}

	s := &Shape{
		Name:          Name(rec.Key, tag),
		Key:           rec.Key,
		DeltaVertices: make([]pm.Vec3, live),
		DeltaNormals:  make([]pm.Vec3, live),
	}
	for i := range s.DeltaVertices {
		s.DeltaVertices[i] = target.Vertices[i].Sub(rec.BaseVertices[i])
		var base pm.Vec3
		if rec.BaseNormals != nil {
			base = rec.BaseNormals[i]
		}
		s.DeltaNormals[i] = target.Normals[i].Sub(base)
	}
	return s, nil
}

// Apply returns the geometry of rec's base mesh with the morph target at
// weight in [0, 1].
func (s *Shape) Apply(rec *mesh.Record, weight float32) (host.Geometry, error) {
	n := len(s.DeltaVertices)
	if len(rec.BaseVertices) != n || len(rec.BaseNormals) != n {
		return host.Geometry{}, fmt.Errorf("%s: base has %d vertices, shape %d: %w",
			rec.Key, len(rec.BaseVertices), n, mesh.ErrVertexCountMismatch)
	}
	weight = pm.Clamp01(weight)

	g := host.Geometry{
		Vertices: make([]pm.Vec3, n),
		Normals:  make([]pm.Vec3, n),
		Tangents: append([]pm.Vec4(nil), rec.BaseTangents...),
	}
	for i := range g.Vertices {
		if weight == 0 {
			g.Vertices[i] = rec.BaseVertices[i]
			g.Normals[i] = rec.BaseNormals[i]
			continue
		}
		g.Vertices[i] = rec.BaseVertices[i].Add(s.DeltaVertices[i].Scale(weight))
		g.Normals[i] = rec.BaseNormals[i].Add(s.DeltaNormals[i].Scale(weight)).Normalize()
	}
	g.Bounds.Min, g.Bounds.Max = blend.Bounds(g.Vertices)
	return g, nil
}
