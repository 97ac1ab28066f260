package blendshape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bellysculpt/internal/engine/blend"
	"github.com/Faultbox/bellysculpt/internal/host"
	"github.com/Faultbox/bellysculpt/internal/mesh"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
	"github.com/Faultbox/bellysculpt/pkg/rig"
)

// shapedBody returns the synthetic body with a record whose front belly
// vertices are pushed forward.
func shapedBody(t *testing.T) (*rig.Mesh, *mesh.Record, blend.Topology) {
	t.Helper()
	body := rig.New(&host.KK, rig.DefaultOptions()).BodyMesh()
	verts, err := body.Vertices()
	require.NoError(t, err)
	normals, err := body.Normals()
	require.NoError(t, err)
	tris, err := body.Triangles()
	require.NoError(t, err)
	uvs, err := body.UVs()
	require.NoError(t, err)

	n := len(verts)
	rec := mesh.NewRecord(mesh.Key{Name: body.Name(), VertexCount: n})
	rec.FirstPass = false
	rec.Original = verts
	rec.Inflated = make([]pm.Vec3, n)
	rec.Region = make([]bool, n)
	rec.Altered = make([]bool, n)
	for i, v := range verts {
		rec.Inflated[i] = v
		if v.Z > 0 && v.Y > 0.9 && v.Y < 1.2 {
			rec.Region[i] = true
			rec.Altered[i] = true
			rec.Inflated[i].Z += 0.03
		}
	}
	rec.BaseVertices = verts
	rec.BaseNormals = normals
	rec.BaseTangents = blend.RecalculateTangents(verts, normals, uvs, tris, nil, nil)
	require.NoError(t, rec.Validate())
	return body, rec, blend.Topology{Triangles: tris, UVs: uvs}
}

func TestName(t *testing.T) {
	key := mesh.Key{Name: "o_body_a", VertexCount: 1200}
	assert.Equal(t, "o_body_a_1200_bellysculpt", Name(key, ""))
	assert.Equal(t, "o_body_a_1200_bellysculpt_timeline", Name(key, "timeline"))
}

func TestDistillRoundTrip(t *testing.T) {
	body, rec, topo := shapedBody(t)
	e := &blend.Engine{SmoothingAngle: blend.DefaultSmoothingAngle}
	d := &Distiller{Engine: e}

	shape, err := d.Distill(body, rec, topo, "")
	require.NoError(t, err)
	assert.Equal(t, Name(rec.Key, ""), shape.Name)

	want, err := e.Build(rec, topo, 1)
	require.NoError(t, err)
	got, err := shape.Apply(rec, 1)
	require.NoError(t, err)
	for i := range want.Vertices {
		assert.InDelta(t, want.Vertices[i].X, got.Vertices[i].X, 1e-5)
		assert.InDelta(t, want.Vertices[i].Y, got.Vertices[i].Y, 1e-5)
		assert.InDelta(t, want.Vertices[i].Z, got.Vertices[i].Z, 1e-5)
		assert.InDelta(t, want.Normals[i].Z, got.Normals[i].Z, 1e-4)
	}
	assert.InDelta(t, want.Bounds.Max.Z, got.Bounds.Max.Z, 1e-5)

	zero, err := shape.Apply(rec, 0)
	require.NoError(t, err)
	assert.Equal(t, rec.BaseVertices, zero.Vertices)
	assert.Equal(t, rec.BaseNormals, zero.Normals)
}

func TestDistillIdempotent(t *testing.T) {
	body, rec, topo := shapedBody(t)
	d := &Distiller{Engine: &blend.Engine{}}
	a, err := d.Distill(body, rec, topo, "")
	require.NoError(t, err)
	b, err := d.Distill(body, rec, topo, "")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDistillErrors(t *testing.T) {
	d := &Distiller{Engine: &blend.Engine{}}

	t.Run("no record", func(t *testing.T) {
		body, _, topo := shapedBody(t)
		_, err := d.Distill(body, nil, topo, "")
		assert.True(t, errors.Is(err, ErrNoOriginalVertices))
	})

	t.Run("no originals", func(t *testing.T) {
		body, rec, topo := shapedBody(t)
		rec.Original = nil
		_, err := d.Distill(body, rec, topo, "")
		assert.True(t, errors.Is(err, ErrNoOriginalVertices))
	})

	t.Run("not readable", func(t *testing.T) {
		body, rec, topo := shapedBody(t)
		body.Lock(true)
		_, err := d.Distill(body, rec, topo, "")
		assert.True(t, errors.Is(err, host.ErrMeshNotReadable))
	})

	t.Run("override restores readability", func(t *testing.T) {
		body, rec, topo := shapedBody(t)
		body.Lock(false)
		_, err := d.Distill(body, rec, topo, "")
		require.NoError(t, err)
		assert.False(t, body.Readable())
	})

	t.Run("count mismatch", func(t *testing.T) {
		body, rec, topo := shapedBody(t)
		rec.Original = rec.Original[:10]
		_, err := d.Distill(body, rec, topo, "")
		assert.True(t, errors.Is(err, mesh.ErrVertexCountMismatch))
	})
}

func TestApplyCountMismatch(t *testing.T) {
	_, rec, _ := shapedBody(t)
	shape := &Shape{Key: rec.Key, DeltaVertices: make([]pm.Vec3, 3), DeltaNormals: make([]pm.Vec3, 3)}
	_, err := shape.Apply(rec, 1)
	assert.True(t, errors.Is(err, mesh.ErrVertexCountMismatch))
}

func TestStore(t *testing.T) {
	body, rec, topo := shapedBody(t)
	d := &Distiller{Engine: &blend.Engine{}}
	shape, err := d.Distill(body, rec, topo, "")
	require.NoError(t, err)
	temp, err := d.Distill(body, rec, topo, "preview")
	require.NoError(t, err)

	s := NewStore()
	assert.True(t, s.Put(shape, true))
	assert.False(t, s.Put(shape, true), "same name on the same mesh is not duplicated")
	assert.True(t, s.Put(temp, false))
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.ForMesh(rec.Key), 2)
	assert.Equal(t, []mesh.Key{rec.Key}, s.Keys())

	got, ok := s.Get(rec.Key, shape.Name)
	require.True(t, ok)
	assert.Same(t, shape, got)

	blob, err := s.Encode()
	require.NoError(t, err)

	loaded := NewStore()
	other := mesh.Key{Name: rec.Key.Name, VertexCount: rec.Key.VertexCount + 1}
	n, err := loaded.Load(blob, []mesh.Key{other, rec.Key})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the persisted shape is encoded")
	assert.Empty(t, loaded.ForMesh(other))

	back, ok := loaded.Get(rec.Key, shape.Name)
	require.True(t, ok)
	assert.Equal(t, shape.DeltaVertices, back.DeltaVertices)
	assert.Equal(t, shape.DeltaNormals, back.DeltaNormals)

	n, err = loaded.Load(blob, []mesh.Key{rec.Key})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "loading twice adds nothing")

	s.Clear()
	assert.Equal(t, 0, s.Len())

	_, err = loaded.Load([]byte("nope"), nil)
	assert.Error(t, err)
}
