package rig

import (
	"strings"

	"github.com/Faultbox/bellysculpt/internal/host"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// Joint is a skeleton node with separate reference and animated transforms.
type Joint struct {
	name   string
	parent *Joint

	refPos pm.Vec3 // reference pose translation relative to the parent

	pos   pm.Vec3
	rot   pm.Quat
	scale pm.Vec3
}

func newJoint(name string, parent *Joint, world pm.Vec3) *Joint {
	local := world
	if parent != nil {
		local = world.Sub(parent.referencePosition())
	}
	return &Joint{
		name:   name,
		parent: parent,
		refPos: local,
		pos:    local,
		rot:    pm.QuatIdentity(),
		scale:  pm.Vec3{X: 1, Y: 1, Z: 1},
	}
}

func (j *Joint) Name() string { return j.name }

func (j *Joint) Parent() host.Joint {
	if j.parent == nil {
		return nil
	}
	return j.parent
}

// LocalToWorld is the animated transform.
func (j *Joint) LocalToWorld() pm.Mat4 {
	local := pm.TRS(j.pos, j.rot, j.scale)
	if j.parent == nil {
		return local
	}
	return j.parent.LocalToWorld().Mul(local)
}

// ReferenceToWorld ignores animation and scale.
func (j *Joint) ReferenceToWorld() pm.Mat4 {
	local := pm.Translate(j.refPos.X, j.refPos.Y, j.refPos.Z)
	if j.parent == nil {
		return local
	}
	return j.parent.ReferenceToWorld().Mul(local)
}

func (j *Joint) referencePosition() pm.Vec3 {
	return j.ReferenceToWorld().Translation()
}

// Skeleton is a flat joint table with path lookup.
type Skeleton struct {
	byName map[string]*Joint
	origin pm.Vec3
}

func newSkeleton(origin pm.Vec3) *Skeleton {
	return &Skeleton{byName: make(map[string]*Joint), origin: origin}
}

// add places a joint at a character-relative position.
func (s *Skeleton) add(name string, parent string, pos pm.Vec3) *Joint {
	j := newJoint(name, s.byName[parent], pos.Add(s.origin))
	s.byName[name] = j
	return j
}

// Find resolves a joint by name or by a slash separated path whose last
// element is the joint name.
func (s *Skeleton) Find(path string) (host.Joint, bool) {
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	j, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return j, true
}

// Joint returns the concrete joint for tests and posing.
func (s *Skeleton) Joint(name string) *Joint {
	return s.byName[name]
}

// Remove drops a joint so lookups fail, simulating a half loaded character.
func (s *Skeleton) Remove(name string) {
	delete(s.byName, name)
}
