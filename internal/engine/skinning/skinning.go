// Package skinning converts skinned mesh vertices into the reference pose
// and back.
package skinning

import (
	"errors"
	"fmt"

	"github.com/Faultbox/bellysculpt/internal/host"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

var (
	ErrMissingBoneWeights = errors.New("mesh has no bone weights")
	ErrBoneCountMismatch  = errors.New("bind pose count does not match bone count")
)

// Frame is the per-mesh matrix set needed to resolve vertices. It is sampled
// from the host on the foreground and is safe to hand to a worker.
type Frame struct {
	// Bones maps each bone's bind space to world space in the reference pose.
	Bones []pm.Mat4
	// WorldToMesh brings world positions into the mesh's local space.
	WorldToMesh pm.Mat4
}

// SampleFrame reads bone and bind pose matrices from the host. correction
// is added to every bind pose's Y translation.
func SampleFrame(m host.Mesh, correction float32) (Frame, error) {
	bones := m.Bones()
	binds := m.BindPoses()
	if len(bones) != len(binds) {
		return Frame{}, fmt.Errorf("%s: %d bones, %d bind poses: %w", m.Name(), len(bones), len(binds), ErrBoneCountMismatch)
	}

	offset := pm.Translate(0, correction, 0)
	f := Frame{
		Bones:       make([]pm.Mat4, len(bones)),
		WorldToMesh: m.LocalToWorld().Inverse(),
	}
	for i, b := range bones {
		if b == nil {
			f.Bones[i] = pm.Identity()
			continue
		}
		f.Bones[i] = b.ReferenceToWorld().Mul(binds[i]).Mul(offset)
	}
	return f, nil
}

// blend returns the weighted bone matrix for one vertex. ok is false when no
// influence references a valid bone with positive weight.
func (f *Frame) blend(w host.BoneWeight) (pm.Mat4, bool) {
	var sum pm.Mat4
	var total float32
	for i := 0; i < 4; i++ {
		wt := w.Weights[i]
		b := w.Bones[i]
		if wt <= 0 || b < 0 || b >= len(f.Bones) {
			continue
		}
		sum = sum.Add(f.Bones[b].MulScalar(wt))
		total += wt
	}
	if total == 0 {
		return pm.Identity(), false
	}
	if total != 1 {
		sum = sum.MulScalar(1 / total)
	}
	return f.WorldToMesh.Mul(sum), true
}

// Resolve returns the reference pose position of a raw vertex buffer
// position. A vertex without usable weights is returned unchanged.
func (f *Frame) Resolve(v pm.Vec3, w host.BoneWeight) pm.Vec3 {
	m, ok := f.blend(w)
	if !ok {
		return v
	}
	return m.TransformPoint(v)
}

// Unresolve is the inverse of Resolve: it maps a reference pose position
// back into vertex buffer space.
func (f *Frame) Unresolve(p pm.Vec3, w host.BoneWeight) pm.Vec3 {
	m, ok := f.blend(w)
	if !ok {
		return p
	}
	return m.Inverse().TransformPoint(p)
}

// ResolveAll resolves every vertex and returns, per vertex, the matrix that
// maps the reference position back into buffer space.
func ResolveAll(f Frame, verts []pm.Vec3, weights []host.BoneWeight) (ref []pm.Vec3, toBuffer []pm.Mat4, err error) {
	if len(weights) == 0 {
		return nil, nil, ErrMissingBoneWeights
	}
	if len(weights) != len(verts) {
		return nil, nil, fmt.Errorf("%d weights for %d vertices: %w", len(weights), len(verts), ErrMissingBoneWeights)
	}

	ref = make([]pm.Vec3, len(verts))
	toBuffer = make([]pm.Mat4, len(verts))
	for i, v := range verts {
		m, ok := f.blend(weights[i])
		if !ok {
			ref[i] = v
			toBuffer[i] = pm.Identity()
			continue
		}
		ref[i] = m.TransformPoint(v)
		toBuffer[i] = m.Inverse()
	}
	return ref, toBuffer, nil
}

// ToBuffer maps reference positions and normals back into buffer space
// using the matrices returned by ResolveAll.
func ToBuffer(toBuffer []pm.Mat4, positions, normals []pm.Vec3) ([]pm.Vec3, []pm.Vec3) {
	outP := make([]pm.Vec3, len(positions))
	for i, p := range positions {
		outP[i] = toBuffer[i].TransformPoint(p)
	}
	var outN []pm.Vec3
	if normals != nil {
		outN = make([]pm.Vec3, len(normals))
		for i, n := range normals {
			outN[i] = toBuffer[i].TransformDirection(n).Normalize()
		}
	}
	return outP, outN
}
