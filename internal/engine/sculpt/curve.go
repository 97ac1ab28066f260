package sculpt

import (
	"sort"

	"github.com/tanema/gween/ease"
	"github.com/tiendc/go-deepcopy"

	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// Keyframe is one point of a Curve.
type Keyframe struct {
	Time, Value float32
}

// Curve is a piecewise linear curve over sorted keyframes. Evaluation caches
// the last segment it found, so a Curve must not be shared between
// goroutines; hand each worker its own Clone.
type Curve struct {
	keys []Keyframe
	hint int
}

// NewCurve builds a curve from keyframes, sorting them by time.
func NewCurve(keys ...Keyframe) *Curve {
	k := append([]Keyframe(nil), keys...)
	sort.SliceStable(k, func(i, j int) bool { return k[i].Time < k[j].Time })
	return &Curve{keys: k}
}

// SampleEase samples an easing function on [0, 1] into a curve with n
// segments.
func SampleEase(fn ease.TweenFunc, n int) *Curve {
	if n < 1 {
		n = 1
	}
	keys := make([]Keyframe, n+1)
	for i := range keys {
		t := float32(i) / float32(n)
		keys[i] = Keyframe{Time: t, Value: fn(t, 0, 1, 1)}
	}
	return &Curve{keys: keys}
}

// Clone returns an independent copy with its own segment cache. Cloning a
// nil curve yields nil.
func (c *Curve) Clone() *Curve {
	if c == nil {
		return nil
	}
	var keys []Keyframe
	if err := deepcopy.Copy(&keys, c.keys); err != nil {
		keys = append([]Keyframe(nil), c.keys...)
	}
	return &Curve{keys: keys}
}

// Eval returns the curve value at t. Times outside the keyframes clamp to
// the first or last value.
func (c *Curve) Eval(t float32) float32 {
	n := len(c.keys)
	switch {
	case n == 0:
		return 0
	case t <= c.keys[0].Time:
		return c.keys[0].Value
	case t >= c.keys[n-1].Time:
		return c.keys[n-1].Value
	}

	i := c.segment(t)
	a, b := c.keys[i], c.keys[i+1]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	f := (t - a.Time) / span
	return a.Value*(1-f) + b.Value*f
}

// segment finds i with keys[i].Time <= t < keys[i+1].Time, starting from the
// cached hint since consecutive vertices usually land close together.
func (c *Curve) segment(t float32) int {
	i := c.hint
	if i < 0 || i >= len(c.keys)-1 {
		i = 0
	}
	for i > 0 && t < c.keys[i].Time {
		i--
	}
	for i < len(c.keys)-2 && t >= c.keys[i+1].Time {
		i++
	}
	c.hint = i
	return i
}

// Curves are the three shaping curves one solver pass uses.
type Curves struct {
	Sides *Curve // fades the shape out towards the back
	Top   *Curve // fades the shape out under the ribs
	Edge  *Curve // roundness falloff from the belly front to its edge
}

// curveSegments is the sampling resolution of the default curves.
const curveSegments = 32

// DefaultCurves returns the stock shaping curves.
func DefaultCurves() Curves {
	return Curves{
		Sides: SampleEase(ease.InOutSine, curveSegments),
		Top:   SampleEase(ease.OutQuad, curveSegments),
		Edge:  SampleEase(ease.InQuad, curveSegments),
	}
}

// WithDefaults fills every nil curve from DefaultCurves.
func (c Curves) WithDefaults() Curves {
	d := DefaultCurves()
	if c.Sides == nil {
		c.Sides = d.Sides
	}
	if c.Top == nil {
		c.Top = d.Top
	}
	if c.Edge == nil {
		c.Edge = d.Edge
	}
	return c
}

// Clone copies every curve for a new worker.
func (c Curves) Clone() Curves {
	return Curves{Sides: c.Sides.Clone(), Top: c.Top.Clone(), Edge: c.Edge.Clone()}
}

// weight evaluates c at t clamped to [0, 1].
func weight(c *Curve, t float32) float32 {
	return pm.Clamp01(c.Eval(pm.Clamp01(t)))
}
