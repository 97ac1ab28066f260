package rig

import (
	"fmt"
	"sync"

	"github.com/Faultbox/bellysculpt/internal/host"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// Mesh is an in-memory skinned mesh. Vertices returns the pristine shared
// buffer; Apply writes a separate live buffer, the way a host keeps a shared
// mesh asset apart from a renderer's instance.
type Mesh struct {
	name       string
	parentName string

	verts   []pm.Vec3
	normals []pm.Vec3
	uvs     []pm.Vec2
	tris    []int
	weights []host.BoneWeight

	bones   []host.Joint
	binds   []pm.Mat4
	toWorld pm.Mat4

	correction float32

	mu         sync.Mutex
	readable   bool
	lockedHard bool // readability override has no effect
	live       host.Geometry
	applied    int
}

func (m *Mesh) Name() string       { return m.name }
func (m *Mesh) ParentName() string { return m.parentName }
func (m *Mesh) VertexCount() int   { return len(m.verts) }

func (m *Mesh) Readable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readable
}

func (m *Mesh) SetReadable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lockedHard {
		m.readable = v
	}
}

func (m *Mesh) checkReadable() error {
	if !m.Readable() {
		return fmt.Errorf("%s: %w", m.name, host.ErrMeshNotReadable)
	}
	return nil
}

func (m *Mesh) Vertices() ([]pm.Vec3, error) {
	if err := m.checkReadable(); err != nil {
		return nil, err
	}
	return append([]pm.Vec3(nil), m.verts...), nil
}

func (m *Mesh) Normals() ([]pm.Vec3, error) {
	if err := m.checkReadable(); err != nil {
		return nil, err
	}
	return append([]pm.Vec3(nil), m.normals...), nil
}

func (m *Mesh) UVs() ([]pm.Vec2, error) {
	if err := m.checkReadable(); err != nil {
		return nil, err
	}
	return append([]pm.Vec2(nil), m.uvs...), nil
}

func (m *Mesh) Triangles() ([]int, error) {
	if err := m.checkReadable(); err != nil {
		return nil, err
	}
	return append([]int(nil), m.tris...), nil
}

func (m *Mesh) BoneWeights() ([]host.BoneWeight, error) {
	if err := m.checkReadable(); err != nil {
		return nil, err
	}
	return append([]host.BoneWeight(nil), m.weights...), nil
}

func (m *Mesh) Bones() []host.Joint   { return m.bones }
func (m *Mesh) BindPoses() []pm.Mat4  { return m.binds }
func (m *Mesh) LocalToWorld() pm.Mat4 { return m.toWorld }

// VerticalCorrection implements host.VerticalCorrector.
func (m *Mesh) VerticalCorrection() float32 { return m.correction }

func (m *Mesh) Apply(g host.Geometry) error {
	if len(g.Vertices) != len(m.verts) {
		return fmt.Errorf("%s: applying %d vertices to a %d vertex mesh", m.name, len(g.Vertices), len(m.verts))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = g
	m.applied++
	return nil
}

// Live returns the last applied geometry and how many times Apply ran.
func (m *Mesh) Live() (host.Geometry, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live, m.applied
}

// Lock makes the mesh unreadable. With hard set the readability override
// stops working too.
func (m *Mesh) Lock(hard bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readable = false
	m.lockedHard = hard
}

// Misalign simulates a mesh imported with its bind pose c units too low:
// the shared buffer drops by c and the mesh reports c as its correction.
func (m *Mesh) Misalign(c float32) {
	for i := range m.verts {
		m.verts[i].Y -= c
	}
	m.correction += c
}

// Rename changes the mesh name, e.g. to nest a body mesh under clothing.
func (m *Mesh) Rename(name, parent string) {
	m.name = name
	m.parentName = parent
}

// Reskin binds every vertex fully to one bone of the mesh's bone table.
func (m *Mesh) Reskin(bone int) {
	for i := range m.weights {
		m.weights[i] = host.BoneWeight{Bones: [4]int{bone}, Weights: [4]float32{1}}
	}
}

// Weights exposes the raw weights for assertions.
func (m *Mesh) Weights() []host.BoneWeight { return m.weights }
