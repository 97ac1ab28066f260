// Package host defines the narrow interfaces through which the deformation
// engine reads meshes and skeletons from, and writes geometry back to, the
// game engine that owns them.
package host

import (
	"errors"
	"fmt"

	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

var (
	ErrMeshNotReadable = errors.New("mesh vertex data is not readable")
	ErrMissingJoint    = errors.New("joint not found")
)

// BoneWeight holds up to four bone influences for one vertex. Unused slots
// have zero weight.
type BoneWeight struct {
	Bones   [4]int
	Weights [4]float32
}

// Dominant returns the bone index with the largest weight. Ties go to the
// lowest slot. ok is false when every weight is zero.
func (w BoneWeight) Dominant() (bone int, ok bool) {
	best := float32(0)
	for i, wt := range w.Weights {
		if wt > best {
			best = wt
			bone = w.Bones[i]
			ok = true
		}
	}
	return bone, ok
}

// Total returns the sum of all four weights.
func (w BoneWeight) Total() float32 {
	return w.Weights[0] + w.Weights[1] + w.Weights[2] + w.Weights[3]
}

// Joint is a skeleton transform.
type Joint interface {
	Name() string
	Parent() Joint // nil at the root
	LocalToWorld() pm.Mat4
	// ReferenceToWorld is the joint transform in the reference (bind) pose,
	// independent of the current animation.
	ReferenceToWorld() pm.Mat4
}

// Skeleton resolves joints by name or slash separated path.
type Skeleton interface {
	Find(path string) (Joint, bool)
}

// Mesh is a skinned mesh renderer owned by the host.
type Mesh interface {
	Name() string
	ParentName() string
	VertexCount() int

	// Readable reports whether vertex data may be read. SetReadable toggles
	// the host override; callers restore the previous state when done.
	Readable() bool
	SetReadable(bool)

	Vertices() ([]pm.Vec3, error)
	Normals() ([]pm.Vec3, error)
	UVs() ([]pm.Vec2, error)
	Triangles() ([]int, error)
	BoneWeights() ([]BoneWeight, error)

	Bones() []Joint
	BindPoses() []pm.Mat4
	LocalToWorld() pm.Mat4

	// Apply writes geometry back to the live mesh.
	Apply(Geometry) error
}

// VerticalCorrector is implemented by meshes imported with a misaligned
// bind pose height. The correction is added to the bind pose Y translation
// so skin and clothing share one reference height.
type VerticalCorrector interface {
	VerticalCorrection() float32
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max pm.Vec3
}

// Center returns the midpoint of the box.
func (b Bounds) Center() pm.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Geometry is a full vertex buffer update. Slices are owned by the receiver
// after Apply.
type Geometry struct {
	Vertices []pm.Vec3
	Normals  []pm.Vec3
	Tangents []pm.Vec4
	Bounds   Bounds
}

// Garment is a clothing mesh together with the slot it occupies.
type Garment struct {
	Slot string
	Mesh Mesh
}

// Character is one host character.
type Character interface {
	ID() string
	Skeleton() Skeleton
	Body() Mesh // nil while the character is still loading
	Clothing() []Garment
	Visible() bool
	Male() bool
}

// WithReadable runs fn with the mesh made readable, restoring the original
// readability afterwards. It returns ErrMeshNotReadable when the override
// does not take.
func WithReadable(m Mesh, fn func() error) error {
	if m.Readable() {
		return fn()
	}
	m.SetReadable(true)
	defer m.SetReadable(false)
	if !m.Readable() {
		return fmt.Errorf("%s: %w", m.Name(), ErrMeshNotReadable)
	}
	return fn()
}
