package blend

import (
	"github.com/chewxy/math32"

	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// DefaultSmoothingAngle is the angle in degrees under which faces meeting
// at a seam are smoothed together.
const DefaultSmoothingAngle = 40

// posEpsilon is the quantization step used to find coincident vertices.
const posEpsilon float32 = 0.001

type posKey [3]int32

func quantize(p pm.Vec3) posKey {
	return posKey{
		int32(p.X / posEpsilon),
		int32(p.Y / posEpsilon),
		int32(p.Z / posEpsilon),
	}
}

// faceNormals returns the unnormalized normal of every triangle. The length
// is twice the face area so summing them weights by area.
func faceNormals(verts []pm.Vec3, tris []int) []pm.Vec3 {
	out := make([]pm.Vec3, len(tris)/3)
	for f := range out {
		a, b, c := tris[f*3], tris[f*3+1], tris[f*3+2]
		if !valid(a, b, c, len(verts)) {
			continue
		}
		out[f] = verts[b].Sub(verts[a]).Cross(verts[c].Sub(verts[a]))
	}
	return out
}

// vertexFaces lists the faces incident to each vertex.
func vertexFaces(n int, tris []int) [][]int {
	out := make([][]int, n)
	for f := 0; f*3+2 < len(tris); f++ {
		a, b, c := tris[f*3], tris[f*3+1], tris[f*3+2]
		if !valid(a, b, c, n) {
			continue
		}
		out[a] = append(out[a], f)
		out[b] = append(out[b], f)
		out[c] = append(out[c], f)
	}
	return out
}

// RecalculateNormals recomputes the normals of altered vertices from the
// surrounding faces and returns a new slice. Every other vertex keeps its
// base normal.
//
// Faces of coincident vertices, such as those on UV seams, contribute when
// their normal is within angleDeg of the vertex's own faces, so seams stay
// invisible while hard edges stay hard. A nil altered mask recomputes every
// vertex.
func RecalculateNormals(verts []pm.Vec3, tris []int, base []pm.Vec3, altered []bool, angleDeg float32) []pm.Vec3 {
	out := make([]pm.Vec3, len(verts))
	copy(out, base)

	fn := faceNormals(verts, tris)
	faces := vertexFaces(len(verts), tris)

	// Group vertices by quantized position for O(n) lookup
	posMap := make(map[posKey][]int)
	for i := range verts {
		k := quantize(verts[i])
		posMap[k] = append(posMap[k], i)
	}

	cosLimit := math32.Cos(angleDeg * math32.Pi / 180)
	for i := range verts {
		if altered != nil && !altered[i] {
			continue
		}
		var own pm.Vec3
		for _, f := range faces[i] {
			own = own.Add(fn[f])
		}
		ownDir := own.Normalize()
		if ownDir == (pm.Vec3{}) {
			continue
		}

		sum := own
		for _, j := range posMap[quantize(verts[i])] {
			if j == i {
				continue
			}
			for _, f := range faces[j] {
				if fn[f].Normalize().Dot(ownDir) >= cosLimit {
					sum = sum.Add(fn[f])
				}
			}
		}
		out[i] = sum.Normalize()
	}
	return out
}

// Bounds returns the axis-aligned box around verts.
func Bounds(verts []pm.Vec3) (min, max pm.Vec3) {
	if len(verts) == 0 {
		return min, max
	}
	min, max = verts[0], verts[0]
	for _, v := range verts[1:] {
		min = min.Min(v)
		max = max.Max(v)
	}
	return min, max
}

func valid(a, b, c, n int) bool {
	return a >= 0 && a < n && b >= 0 && b < n && c >= 0 && c < n
}
