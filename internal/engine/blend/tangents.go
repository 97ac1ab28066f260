package blend

import (
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// RecalculateTangents computes per-vertex tangents from positions, normals
// and UVs for altered vertices and returns a new slice. W holds the
// bitangent sign. Vertices that are not altered, or whose faces have no
// usable UV mapping, keep their base tangent. A nil altered mask recomputes
// every vertex.
func RecalculateTangents(verts, normals []pm.Vec3, uvs []pm.Vec2, tris []int, base []pm.Vec4, altered []bool) []pm.Vec4 {
	out := make([]pm.Vec4, len(verts))
	copy(out, base)
	if len(uvs) != len(verts) || len(normals) != len(verts) {
		return out
	}

	tan1 := make([]pm.Vec3, len(verts))
	tan2 := make([]pm.Vec3, len(verts))
	touched := func(i int) bool { return altered == nil || altered[i] }

	for f := 0; f*3+2 < len(tris); f++ {
		a, b, c := tris[f*3], tris[f*3+1], tris[f*3+2]
		if !valid(a, b, c, len(verts)) {
			continue
		}
		if !touched(a) && !touched(b) && !touched(c) {
			continue
		}

		e1 := verts[b].Sub(verts[a])
		e2 := verts[c].Sub(verts[a])
		s1, t1 := uvs[b].X-uvs[a].X, uvs[b].Y-uvs[a].Y
		s2, t2 := uvs[c].X-uvs[a].X, uvs[c].Y-uvs[a].Y
		det := s1*t2 - s2*t1
		if det == 0 {
			continue
		}
		r := 1 / det
		sdir := e1.Scale(t2).Sub(e2.Scale(t1)).Scale(r)
		tdir := e2.Scale(s1).Sub(e1.Scale(s2)).Scale(r)

		for _, v := range [3]int{a, b, c} {
			tan1[v] = tan1[v].Add(sdir)
			tan2[v] = tan2[v].Add(tdir)
		}
	}

	for i := range verts {
		if !touched(i) {
			continue
		}
		n := normals[i]
		t := tan1[i].Sub(n.Scale(n.Dot(tan1[i]))).Normalize()
		if t == (pm.Vec3{}) {
			continue
		}
		w := float32(1)
		if n.Cross(tan1[i]).Dot(tan2[i]) < 0 {
			w = -1
		}
		out[i] = pm.Vec4{X: t.X, Y: t.Y, Z: t.Z, W: w}
	}
	return out
}
