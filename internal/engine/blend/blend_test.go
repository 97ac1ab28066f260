package blend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bellysculpt/internal/mesh"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// grid returns a flat 3x3 vertex grid in the XY plane facing +Z, with UVs
// following X and Y.
func grid() ([]pm.Vec3, []int, []pm.Vec2) {
	var verts []pm.Vec3
	var uvs []pm.Vec2
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			verts = append(verts, pm.Vec3{X: float32(x), Y: float32(y)})
			uvs = append(uvs, pm.Vec2{X: float32(x) / 2, Y: float32(y) / 2})
		}
	}
	var tris []int
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			a := y*3 + x
			tris = append(tris, a, a+1, a+4, a, a+4, a+3)
		}
	}
	return verts, tris, uvs
}

func TestLerp(t *testing.T) {
	orig := []pm.Vec3{{X: 0.1, Y: 0.2, Z: 0.3}, {X: 1}, {Y: 1}}
	infl := []pm.Vec3{{X: 0.7, Y: 0.9, Z: 1.3}, {X: 2}, {Y: 3}}
	region := []bool{true, false, true}

	assert.Equal(t, orig, Lerp(orig, infl, region, 0, false))

	full := Lerp(orig, infl, region, 1, false)
	assert.Equal(t, infl[0], full[0])
	assert.Equal(t, orig[1], full[1], "non-region vertex moved")
	assert.Equal(t, infl[2], full[2])

	half := Lerp(orig, infl, region, 0.5, false)
	assert.InDelta(t, 2, half[2].Y, 1e-6)

	all := Lerp(orig, infl, region, 1, true)
	assert.Equal(t, infl, all)

	assert.Equal(t, infl[0], Lerp(orig, infl, region, 3, false)[0], "factor is clamped")
}

func TestRecalculateNormalsFlat(t *testing.T) {
	verts, tris, _ := grid()
	n := RecalculateNormals(verts, tris, nil, nil, DefaultSmoothingAngle)
	for i, v := range n {
		assert.InDelta(t, 1, v.Z, 1e-6, "vertex %d", i)
	}
}

func TestRecalculateNormalsKeepsUnaltered(t *testing.T) {
	verts, tris, _ := grid()
	base := make([]pm.Vec3, len(verts))
	for i := range base {
		base[i] = pm.Vec3{X: 1}
	}
	altered := make([]bool, len(verts))
	altered[4] = true

	n := RecalculateNormals(verts, tris, base, altered, DefaultSmoothingAngle)
	for i, v := range n {
		if i == 4 {
			assert.InDelta(t, 1, v.Z, 1e-6)
			continue
		}
		assert.Equal(t, pm.Vec3{X: 1}, v)
	}
	assert.Equal(t, pm.Vec3{X: 1}, base[4], "base must not be modified")
}

func TestRecalculateNormalsSeam(t *testing.T) {
	// Two triangles sharing a corner through duplicated vertices 0 and 3.
	seam := func(z float32) []pm.Vec3 {
		verts := []pm.Vec3{
			{}, {X: 1}, {Y: 1},
			{}, {X: -1, Z: z}, {Y: -1},
		}
		return RecalculateNormals(verts, []int{0, 1, 2, 3, 4, 5}, nil, nil, DefaultSmoothingAngle)
	}

	tests := []struct {
		name   string
		z      float32
		merged bool
	}{
		{"shallow crease is smoothed", 0.2, true},
		{"hard edge stays hard", 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := seam(tt.z)
			if tt.merged {
				assert.InDelta(t, n[0].X, n[3].X, 1e-6)
				assert.InDelta(t, n[0].Z, n[3].Z, 1e-6)
				assert.Greater(t, n[0].X, float32(0))
				return
			}
			assert.Equal(t, pm.Vec3{Z: 1}, n[0])
			assert.NotEqual(t, n[0], n[3])
		})
	}
}

func TestRecalculateTangents(t *testing.T) {
	verts, tris, uvs := grid()
	normals := RecalculateNormals(verts, tris, nil, nil, DefaultSmoothingAngle)

	tan := RecalculateTangents(verts, normals, uvs, tris, nil, nil)
	for i, v := range tan {
		assert.InDelta(t, 1, v.X, 1e-6, "vertex %d", i)
		assert.Equal(t, float32(1), v.W)
	}

	// Without UVs the base tangents are kept.
	base := make([]pm.Vec4, len(verts))
	base[0] = pm.Vec4{Y: 1, W: -1}
	kept := RecalculateTangents(verts, normals, nil, tris, base, nil)
	assert.Equal(t, base, kept)
}

func TestBounds(t *testing.T) {
	min, max := Bounds([]pm.Vec3{{X: 1, Y: -2}, {Z: 3}, {X: -1, Y: 4}})
	assert.Equal(t, pm.Vec3{X: -1, Y: -2}, min)
	assert.Equal(t, pm.Vec3{X: 1, Y: 4, Z: 3}, max)

	min, max = Bounds(nil)
	assert.Equal(t, pm.Vec3{}, min)
	assert.Equal(t, pm.Vec3{}, max)
}

// testRecord is the grid with its center raised, stored one unit along Z in
// buffer space.
func testRecord(t *testing.T) (*mesh.Record, Topology) {
	t.Helper()
	verts, tris, uvs := grid()
	n := len(verts)

	rec := mesh.NewRecord(mesh.Key{Name: "grid", VertexCount: n})
	rec.FirstPass = false
	rec.Original = verts
	rec.Inflated = append([]pm.Vec3(nil), verts...)
	rec.Inflated[4].Z = 0.5
	rec.Region = make([]bool, n)
	rec.Region[4] = true
	rec.Altered = make([]bool, n)
	for i := range rec.Altered {
		rec.Altered[i] = true
	}
	rec.ToBuffer = make([]pm.Mat4, n)
	rec.BaseVertices = make([]pm.Vec3, n)
	for i, v := range verts {
		rec.ToBuffer[i] = pm.Translate(0, 0, 1)
		rec.BaseVertices[i] = v.Add(pm.Vec3{Z: 1})
	}
	rec.BaseNormals = RecalculateNormals(verts, tris, nil, nil, DefaultSmoothingAngle)
	rec.BaseTangents = RecalculateTangents(verts, rec.BaseNormals, uvs, tris, nil, nil)
	require.NoError(t, rec.Validate())
	return rec, Topology{Triangles: tris, UVs: uvs}
}

func TestBuildZeroIsBase(t *testing.T) {
	rec, topo := testRecord(t)
	e := &Engine{}
	g, err := e.Build(rec, topo, 0)
	require.NoError(t, err)
	assert.Equal(t, rec.BaseVertices, g.Vertices)
	assert.Equal(t, rec.BaseNormals, g.Normals)
	assert.Equal(t, rec.BaseTangents, g.Tangents)
	assert.Equal(t, float32(1), g.Bounds.Max.Z)

	g.Normals[0] = pm.Vec3{}
	assert.NotEqual(t, pm.Vec3{}, rec.BaseNormals[0], "geometry must not alias the record")
}

func TestBuildFull(t *testing.T) {
	rec, topo := testRecord(t)
	e := &Engine{SmoothingAngle: DefaultSmoothingAngle}
	g, err := e.Build(rec, topo, 1)
	require.NoError(t, err)

	assert.Equal(t, pm.Vec3{X: 1, Y: 1, Z: 1.5}, g.Vertices[4])
	for i, v := range g.Vertices {
		if i != 4 {
			assert.Equal(t, rec.BaseVertices[i], v)
		}
	}
	assert.InDelta(t, 1.5, g.Bounds.Max.Z, 1e-6)
	assert.InDelta(t, 1, g.Bounds.Min.Z, 1e-6)

	// The corner next to the raised center tilts away from it.
	assert.Less(t, g.Normals[0].X, float32(0))
	assert.Less(t, g.Normals[0].Y, float32(0))
	assert.Len(t, g.Tangents, len(g.Vertices))
}

func TestBuildErrors(t *testing.T) {
	rec, topo := testRecord(t)
	rec.FirstPass = true
	_, err := (&Engine{}).Build(rec, topo, 1)
	assert.True(t, errors.Is(err, ErrNotReady))

	rec, topo = testRecord(t)
	rec.Region = rec.Region[:3]
	_, err = (&Engine{}).Build(rec, topo, 1)
	assert.True(t, errors.Is(err, mesh.ErrVertexCountMismatch))

	rec, topo = testRecord(t)
	rec.BaseVertices = nil
	_, err = (&Engine{}).Build(rec, topo, 1)
	assert.True(t, errors.Is(err, ErrNotReady))
}
