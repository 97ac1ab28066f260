// Package rig builds deterministic synthetic skinned characters. They
// implement the host interfaces so the engine can run without a game.
package rig

import (
	"fmt"
	"os"
	"strings"

	"github.com/chewxy/math32"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/bellysculpt/internal/host"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// Options controls the generated character.
type Options struct {
	ID       string  `yaml:"id"`
	Segments int     `yaml:"segments"` // vertices around each ring, before the seam duplicate
	Rings    int     `yaml:"rings"`    // torso rings
	Width    float32 `yaml:"width"`    // torso half width
	Depth    float32 `yaml:"depth"`    // torso half depth
	Clothing bool    `yaml:"clothing"`
	Male     bool    `yaml:"male"`

	// Offset places the character in the world.
	Offset pm.Vec3 `yaml:"offset"`
}

// DefaultOptions returns a small but fully featured character.
func DefaultOptions() Options {
	return Options{
		ID:       "chara",
		Segments: 24,
		Rings:    18,
		Width:    0.15,
		Depth:    0.11,
		Clothing: true,
	}
}

// LoadOptions reads options from YAML. Missing keys keep their defaults.
func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return o, err
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("parsing %s: %w", path, err)
	}
	return o, nil
}

// Joint heights shared by every profile.
const (
	waistY  = 0.95
	torsoY0 = 0.70
	torsoY1 = 1.45
	thighX  = 0.12
)

// Character is a synthetic host character.
type Character struct {
	id       string
	skeleton *Skeleton
	body     *Mesh
	clothing []host.Garment
	visible  bool
	male     bool

	// Upper spine joint name; it is not part of any profile.
	spineUpper string
}

func (c *Character) ID() string               { return c.id }
func (c *Character) Skeleton() host.Skeleton  { return c.skeleton }
func (c *Character) Clothing() []host.Garment { return c.clothing }
func (c *Character) Visible() bool            { return c.visible }
func (c *Character) Male() bool               { return c.male }

func (c *Character) Body() host.Mesh {
	if c.body == nil {
		return nil
	}
	return c.body
}

// BodyMesh returns the concrete body mesh.
func (c *Character) BodyMesh() *Mesh { return c.body }

// Joints returns the concrete skeleton.
func (c *Character) Joints() *Skeleton { return c.skeleton }

// Garment returns the concrete clothing mesh in slot.
func (c *Character) Garment(slot string) *Mesh {
	for _, g := range c.clothing {
		if g.Slot == slot {
			return g.Mesh.(*Mesh)
		}
	}
	return nil
}

// SetVisible toggles render visibility.
func (c *Character) SetVisible(v bool) { c.visible = v }

// RemoveBody simulates a character whose body has not loaded.
func (c *Character) RemoveBody() { c.body = nil }

// AddGarment puts a clothing mesh into slot, replacing what was there.
func (c *Character) AddGarment(slot string, m *Mesh) {
	for i, g := range c.clothing {
		if g.Slot == slot {
			c.clothing[i].Mesh = m
			return
		}
	}
	c.clothing = append(c.clothing, host.Garment{Slot: slot, Mesh: m})
}

// RemoveGarment empties slot.
func (c *Character) RemoveGarment(slot string) {
	for i, g := range c.clothing {
		if g.Slot == slot {
			c.clothing = append(c.clothing[:i], c.clothing[i+1:]...)
			return
		}
	}
}

// SetScale sets the animated scale of the profile's height joint.
func (c *Character) SetScale(p *host.Profile, s pm.Vec3) {
	if j := c.skeleton.Joint(p.ScaleJoint); j != nil {
		j.scale = s
	}
}

// Pose rotates a joint's animated transform. The reference pose is
// unaffected.
func (c *Character) Pose(name string, r pm.Quat) {
	if j := c.skeleton.Joint(name); j != nil {
		j.rot = r
	}
}

// New builds a character for profile.
func New(p *host.Profile, o Options) *Character {
	if o.Segments < 3 {
		o.Segments = 3
	}
	if o.Rings < 2 {
		o.Rings = 2
	}
	c := &Character{
		id:         o.ID,
		skeleton:   buildSkeleton(p, o.Offset),
		visible:    true,
		male:       o.Male,
		spineUpper: "rig_spine03",
	}
	toWorld := pm.Translate(o.Offset.X, o.Offset.Y, o.Offset.Z)

	bodyName := p.BodyMeshes[0]
	if o.Male && len(p.BodyMeshes) > 1 {
		bodyName = p.BodyMeshes[1]
	}
	c.body = c.buildBody(p, bodyName, o, toWorld)

	if o.Clothing {
		top := c.buildTube(p, tube{
			name: "o_top_a", y0: 0.88, y1: 1.40,
			rx: o.Width + 0.012, rz: o.Depth + 0.012,
			segments: o.Segments, rings: o.Rings,
		}, toWorld)
		top.parentName = "ct_clothesTop"
		c.clothing = append(c.clothing, host.Garment{Slot: "top", Mesh: top})

		bra := c.buildTube(p, tube{
			name: "o_bra_a", y0: 1.18, y1: 1.40,
			rx: o.Width + 0.004, rz: o.Depth + 0.004,
			segments: o.Segments, rings: max(o.Rings/3, 2),
		}, toWorld)
		bra.parentName = "ct_bra"
		c.clothing = append(c.clothing, host.Garment{Slot: "bra", Mesh: bra})
	}
	return c
}

func buildSkeleton(p *host.Profile, origin pm.Vec3) *Skeleton {
	s := newSkeleton(origin)
	s.add("rig_root", "", pm.Vec3{})
	s.add(p.ScaleJoint, "rig_root", pm.Vec3{})
	s.add(p.WaistJoint, p.ScaleJoint, pm.Vec3{Y: waistY})
	s.add(p.RegionJoints[2], p.WaistJoint, pm.Vec3{Y: 0.90, Z: 0.02})
	s.add(p.RegionJoints[1], p.WaistJoint, pm.Vec3{Y: 1.00, Z: 0.02})
	s.add("rig_spine01", p.WaistJoint, pm.Vec3{Y: 1.05})
	s.add(p.RegionJoints[0], "rig_spine01", pm.Vec3{Y: 1.12, Z: 0.02})
	s.add("rig_spine03", "rig_spine01", pm.Vec3{Y: 1.25})
	s.add(p.RibJoint, "rig_spine03", pm.Vec3{Y: 1.30, Z: 0.10})

	for _, side := range []struct {
		thigh, suffix string
		x             float32
	}{
		{p.ThighLeft, "L", thighX},
		{p.ThighRight, "R", -thighX},
	} {
		knee := "rig_knee_" + side.suffix
		foot := "rig_foot_" + side.suffix
		s.add(side.thigh, p.WaistJoint, pm.Vec3{X: side.x, Y: 0.85})
		s.add(knee, side.thigh, pm.Vec3{X: side.x, Y: 0.45})
		switch {
		case side.suffix != "L":
			s.add(foot, knee, pm.Vec3{X: side.x, Y: 0.08})
		case strings.Contains(p.FootJoint, "Toes"):
			// Profiles that measure from the toes get a raised ankle so the
			// straightened chain matches the foot measured ones.
			s.add(foot, knee, pm.Vec3{X: side.x, Y: 0.12})
			s.add(p.FootJoint, foot, pm.Vec3{X: side.x, Y: 0.10, Z: 0.04})
		default:
			s.add(p.FootJoint, knee, pm.Vec3{X: side.x, Y: 0.08})
		}
	}
	return s
}

type tube struct {
	name      string
	x, y0, y1 float32
	rx, rz    float32
	segments  int
	rings     int
	weights   func(y float32) host.BoneWeight
}

// boneTable lists the joints every generated mesh is skinned to, in bone
// index order.
func (c *Character) boneTable(p *host.Profile) []string {
	return []string{
		p.WaistJoint,
		p.RegionJoints[2],
		p.RegionJoints[1],
		p.RegionJoints[0],
		c.spineUpper,
		p.ThighLeft,
		p.ThighRight,
	}
}

// torsoWeight blends between the two joints bracketing height y.
func torsoWeight(y float32) host.BoneWeight {
	// Bone table indices: 0 waist, 1 waist02, 2 waist01, 3 spine02, 4 upper spine.
	bands := []struct {
		top  float32
		bone int
	}{
		{0.85, 0}, {0.95, 1}, {1.05, 2}, {1.20, 3}, {math32.Inf(1), 4},
	}
	for i, b := range bands {
		if y < b.top {
			next := bands[min(i+1, len(bands)-1)].bone
			return host.BoneWeight{
				Bones:   [4]int{b.bone, next},
				Weights: [4]float32{0.75, 0.25},
			}
		}
	}
	return host.BoneWeight{Bones: [4]int{4}, Weights: [4]float32{1}}
}

func (c *Character) buildBody(p *host.Profile, name string, o Options, toWorld pm.Mat4) *Mesh {
	m := c.buildTube(p, tube{
		name: name, y0: torsoY0, y1: torsoY1,
		rx: o.Width, rz: o.Depth,
		segments: o.Segments, rings: o.Rings,
	}, toWorld)
	m.parentName = "p_cf_body_00"

	// Legs are skinned to the thighs, never to a region joint.
	for _, leg := range []struct {
		x    float32
		bone int
	}{{thighX - 0.03, 5}, {-thighX + 0.03, 6}} {
		bone := leg.bone
		c.appendTube(m, tube{
			x: leg.x, y0: 0.10, y1: torsoY0 - 0.02,
			rx: 0.06, rz: 0.06,
			segments: max(o.Segments/2, 3), rings: max(o.Rings/2, 2),
			weights: func(float32) host.BoneWeight {
				return host.BoneWeight{Bones: [4]int{bone}, Weights: [4]float32{1}}
			},
		})
	}
	return m
}

func (c *Character) buildTube(p *host.Profile, t tube, toWorld pm.Mat4) *Mesh {
	names := c.boneTable(p)
	m := &Mesh{
		name:     t.name,
		toWorld:  toWorld,
		readable: true,
	}
	for _, n := range names {
		j := c.skeleton.byName[n]
		m.bones = append(m.bones, j)
		// Standard bind pose: the inverse reference transform, expressed
		// relative to the mesh.
		m.binds = append(m.binds, j.ReferenceToWorld().Inverse().Mul(toWorld))
	}
	c.appendTube(m, t)
	return m
}

// appendTube adds an elliptic tube with a duplicated UV seam column.
func (c *Character) appendTube(m *Mesh, t tube) {
	weights := t.weights
	if weights == nil {
		weights = torsoWeight
	}
	base := len(m.verts)
	cols := t.segments + 1
	for r := 0; r < t.rings; r++ {
		v := float32(r) / float32(t.rings-1)
		y := t.y0 + (t.y1-t.y0)*v
		for s := 0; s < cols; s++ {
			u := float32(s) / float32(t.segments)
			theta := u * 2 * math32.Pi
			if s == t.segments {
				theta = 0 // exact seam duplicate
			}
			sin, cos := math32.Sincos(theta)
			x := t.x + t.rx*sin
			z := t.rz * cos
			m.verts = append(m.verts, pm.Vec3{X: x, Y: y, Z: z})
			m.normals = append(m.normals, pm.Vec3{X: sin / t.rx, Z: cos / t.rz}.Normalize())
			m.uvs = append(m.uvs, pm.Vec2{X: u, Y: v})
			m.weights = append(m.weights, weights(y))
		}
	}
	for r := 0; r < t.rings-1; r++ {
		for s := 0; s < t.segments; s++ {
			a := base + r*cols + s
			b := a + 1
			d := a + cols
			e := d + 1
			m.tris = append(m.tris, a, b, d, b, e, d)
		}
	}
}
