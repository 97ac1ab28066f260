package params

// Change describes how two shapes differ.
type Change struct {
	Intensity  bool // intensity moved
	Shape      bool // any slider that alters the inflated target moved
	Multiplier bool // the sphere radius must be remeasured
	Gameplay   bool // the gameplay toggle flipped
}

// None reports whether nothing changed.
func (c Change) None() bool {
	return !c.Intensity && !c.Shape && !c.Gameplay
}

// IntensityOnly reports whether only the blend factor moved, so the cached
// inflated vertices are still valid.
func (c Change) IntensityOnly() bool {
	return c.Intensity && !c.Shape
}

// Diff compares the shape a mesh was last computed with against the current
// one.
func Diff(prev, cur Shape) Change {
	c := Change{
		Intensity:  prev.Intensity != cur.Intensity,
		Multiplier: prev.Multiplier != cur.Multiplier,
		Gameplay:   prev.GameplayEnabled != cur.GameplayEnabled,
	}
	p, q := prev, cur
	p.Intensity, q.Intensity = 0, 0
	p.GameplayEnabled, q.GameplayEnabled = false, false
	c.Shape = p != q
	return c
}
