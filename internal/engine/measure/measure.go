// Package measure derives a character's body proportions from its skeleton
// and turns them into the sphere the belly is shaped from.
package measure

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/bellysculpt/internal/host"
	"github.com/Faultbox/bellysculpt/internal/params"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

var (
	ErrBadMeasurement  = errors.New("character measurements are not available")
	ErrMissingSkeleton = errors.New("required joint is missing")
)

// Profile is the cached anthropometric measurement of one character. All
// distances are in the body mesh's reference pose and are unscaled; Scale
// carries the character scale separately.
type Profile struct {
	WaistWidth     float32
	WaistHeight    float32 // foot to belly button along the straightened bone chain
	WaistThickness float32
	BellyToRib     float32
	Waist          pm.Vec3 // waist joint, mesh local
	Scale          pm.Vec3

	SphereRadius         float32
	OriginalSphereRadius float32 // before the multiplier and clamping
	LastMultiplier       float32
}

// Initialized reports whether the bone distances have been measured.
func (p *Profile) Initialized() bool {
	return p.WaistWidth > 0 && p.WaistHeight > 0
}

// NeedsBoneDistanceRecalc reports whether the character scale changed since
// the bones were last measured.
func (p *Profile) NeedsBoneDistanceRecalc(scale pm.Vec3) bool {
	return !p.Initialized() || p.Scale != scale
}

// NeedsSphereRecalc reports whether the sphere radius is stale for
// multiplier.
func (p *Profile) NeedsSphereRecalc(multiplier float32) bool {
	return !p.Initialized() || p.SphereRadius == 0 || p.LastMultiplier != multiplier
}

// ScaledWaistWidth is the waist width with the character's X scale applied.
func (p *Profile) ScaledWaistWidth() float32 { return p.WaistWidth * p.Scale.X }

// ZLimit is how far behind the sphere center the belly may wrap.
func (p *Profile) ZLimit() float32 { return p.WaistThickness * p.Scale.Z / 2 }

// YLimit is how far above the sphere center the ribs start.
func (p *Profile) YLimit() float32 { return p.BellyToRib * p.Scale.Y }

// SphereRadius is the unclamped belly sphere radius: the smaller of the waist
// to rib distance and the waist width, each scaled to look proportional.
func SphereRadius(waistToRib, waistWidth float32, scale pm.Vec3, multiplier float32) float32 {
	return min(waistToRib/1.25, waistWidth/1.3) * scale.Y * multiplier
}

// Measurer measures one character and caches the result until its scale or
// the radius multiplier changes. It must only be used on the foreground.
type Measurer struct {
	profile   *host.Profile
	minRadius float32
	maxRadius float32

	cache Profile
}

// New creates a measurer. A zero bound disables that side of the radius
// clamp.
func New(p *host.Profile, minRadius, maxRadius float32) *Measurer {
	return &Measurer{profile: p, minRadius: minRadius, maxRadius: maxRadius}
}

// Cached returns the last successful measurement.
func (m *Measurer) Cached() Profile { return m.cache }

// Invalidate forces a full remeasure on the next call.
func (m *Measurer) Invalidate() { m.cache = Profile{} }

// Measure returns the character's profile for multiplier, reusing cached
// bone distances and radius where possible.
func (m *Measurer) Measure(skel host.Skeleton, body host.Mesh, multiplier float32) (Profile, error) {
	if skel == nil || body == nil {
		return m.cache, ErrBadMeasurement
	}

	scaleJoint, ok := skel.Find(m.profile.ScaleJoint)
	if !ok {
		return m.cache, fmt.Errorf("%s: %w", m.profile.ScaleJoint, ErrMissingSkeleton)
	}
	scale := scaleJoint.LocalToWorld().LossyScale()
	if scale.X <= 0 || scale.Y <= 0 || scale.Z <= 0 {
		return m.cache, fmt.Errorf("scale %v: %w", scale, ErrBadMeasurement)
	}

	p := m.cache
	if p.NeedsBoneDistanceRecalc(scale) {
		fresh, err := m.measureBones(skel, body)
		if err != nil {
			return m.cache, err
		}
		fresh.Scale = scale
		p = fresh
	}

	if p.NeedsSphereRecalc(multiplier) {
		p.OriginalSphereRadius = SphereRadius(p.BellyToRib, p.WaistWidth, p.Scale, 1)
		p.SphereRadius = m.clamp(SphereRadius(p.BellyToRib, p.WaistWidth, p.Scale, multiplier))
		p.LastMultiplier = multiplier
		if p.SphereRadius <= 0 {
			return m.cache, fmt.Errorf("radius %v: %w", p.SphereRadius, ErrBadMeasurement)
		}
	}

	m.cache = p
	return p, nil
}

func (m *Measurer) clamp(r float32) float32 {
	if m.minRadius > 0 && r < m.minRadius {
		r = m.minRadius
	}
	if m.maxRadius > 0 && r > m.maxRadius {
		r = m.maxRadius
	}
	return r
}

func (m *Measurer) measureBones(skel host.Skeleton, body host.Mesh) (Profile, error) {
	worldToMesh := body.LocalToWorld().Inverse()
	pos := make(map[string]pm.Vec3, 5)
	for _, name := range []string{
		m.profile.WaistJoint, m.profile.ThighLeft, m.profile.ThighRight, m.profile.RibJoint,
	} {
		j, ok := skel.Find(name)
		if !ok {
			return Profile{}, fmt.Errorf("%s: %w", name, ErrMissingSkeleton)
		}
		pos[name] = worldToMesh.TransformPoint(j.ReferenceToWorld().Translation())
	}

	waist := pos[m.profile.WaistJoint]
	rib := pos[m.profile.RibJoint]

	p := Profile{
		Waist:      waist,
		WaistWidth: pos[m.profile.ThighLeft].Distance(pos[m.profile.ThighRight]),
		BellyToRib: rib.Distance(waist),
	}
	p.WaistThickness = 2 * abs(rib.Z-waist.Z)
	if p.WaistThickness < 1e-4 {
		p.WaistThickness = p.WaistWidth
	}

	h, err := ChainLength(skel, m.profile.FootJoint, m.profile.WaistJoint)
	if err != nil {
		return Profile{}, err
	}
	p.WaistHeight = h

	if !p.Initialized() || p.BellyToRib <= 0 {
		return Profile{}, fmt.Errorf("waist width %v, height %v: %w", p.WaistWidth, p.WaistHeight, ErrBadMeasurement)
	}
	return p, nil
}

// ChainLength walks from joint from up through its parents to joint to and
// returns the summed reference pose segment lengths, as if the chain were
// straightened. Animation does not affect the result.
func ChainLength(skel host.Skeleton, from, to string) (float32, error) {
	j, ok := skel.Find(from)
	if !ok {
		return 0, fmt.Errorf("%s: %w", from, ErrMissingSkeleton)
	}

	var total float64
	prev := toR3(j.ReferenceToWorld().Translation())
	for j.Name() != to {
		j = j.Parent()
		if j == nil {
			return 0, fmt.Errorf("%s is not an ancestor of %s: %w", to, from, ErrMissingSkeleton)
		}
		cur := toR3(j.ReferenceToWorld().Translation())
		total += r3.Norm(r3.Sub(cur, prev))
		prev = cur
	}
	return float32(total), nil
}

func toR3(v pm.Vec3) r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// Sphere is the per-pass geometry the solver shapes against, in mesh local
// reference space.
type Sphere struct {
	Center         pm.Vec3
	PreShiftCenter pm.Vec3 // Center without the user move
	BackExtent     pm.Vec3 // nothing may move behind this Z
	TopExtent      pm.Vec3 // where rib stretch reduction reaches zero
	Radius         float32
	WaistWidth     float32 // scaled
	NormalRadius   float32 // vertices within this distance are processed
}

// Sphere places the belly sphere for shape. The belly button sits
// BellyButtonBias of its own height above the straightened foot to waist
// chain, directly in front of the waist joint.
func (p *Profile) Sphere(bias float32, shape *params.Shape) Sphere {
	pre := pm.Vec3{X: p.Waist.X, Y: p.WaistHeight * (1 + bias), Z: p.Waist.Z}
	move := pm.Vec3{Y: shape.MoveY * p.Scale.Y, Z: shape.MoveZ * p.Scale.Z}
	center := pre.Add(move)

	return Sphere{
		Center:         center,
		PreShiftCenter: pre,
		BackExtent:     pm.Vec3{X: pre.X, Y: center.Y, Z: pre.Z}.Sub(pm.Forward.Scale(p.ZLimit())),
		TopExtent:      pre.Add(pm.Up.Scale(p.YLimit())),
		Radius:         p.SphereRadius,
		WaistWidth:     p.ScaledWaistWidth(),
		NormalRadius:   p.SphereRadius + p.WaistWidth/10,
	}
}

// Transform moves the sphere's points by m, e.g. from the body's local space
// into a clothing mesh's. Distances are kept; m must not scale.
func (s Sphere) Transform(m pm.Mat4) Sphere {
	s.Center = m.TransformPoint(s.Center)
	s.PreShiftCenter = m.TransformPoint(s.PreShiftCenter)
	s.BackExtent = m.TransformPoint(s.BackExtent)
	s.TopExtent = m.TransformPoint(s.TopExtent)
	return s
}
