package sculpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanema/gween/ease"

	"github.com/Faultbox/bellysculpt/internal/engine/measure"
	"github.com/Faultbox/bellysculpt/internal/engine/region"
	"github.com/Faultbox/bellysculpt/internal/host"
	"github.com/Faultbox/bellysculpt/internal/params"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
	"github.com/Faultbox/bellysculpt/pkg/rig"
)

func TestCurveEval(t *testing.T) {
	c := SampleEase(ease.Linear, 8)
	tests := []struct {
		t, want float32
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0.25},
		{0.5, 0.5},
		{0.9, 0.9},
		{1, 1},
		{2, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.Eval(tt.t), 1e-6, "t=%v", tt.t)
	}
}

func TestCurveHintDoesNotChangeResults(t *testing.T) {
	c := SampleEase(ease.InOutSine, 16)
	fresh := c.Clone()

	var forward []float32
	for i := 0; i <= 100; i++ {
		forward = append(forward, c.Eval(float32(i)/100))
	}
	for i := 100; i >= 0; i-- {
		assert.Equal(t, forward[i], c.Eval(float32(i)/100))
		assert.Equal(t, forward[i], fresh.Clone().Eval(float32(i)/100))
	}
}

func TestNewCurveSortsKeys(t *testing.T) {
	c := NewCurve(Keyframe{1, 10}, Keyframe{0, 0}, Keyframe{0.5, 2})
	assert.Equal(t, float32(1), c.Eval(0.25))
	assert.Equal(t, float32(6), c.Eval(0.75))
	assert.Equal(t, float32(0), (&Curve{}).Eval(0.5))
}

func TestCurvesClone(t *testing.T) {
	a := DefaultCurves()
	b := a.Clone()
	assert.NotSame(t, a.Sides, b.Sides)
	assert.NotSame(t, a.Top, b.Top)
	assert.NotSame(t, a.Edge, b.Edge)
	assert.Equal(t, a.Edge.Eval(0.3), b.Edge.Eval(0.3))
}

func TestCurvesWithDefaults(t *testing.T) {
	edge := NewCurve(Keyframe{0, 1}, Keyframe{1, 1})
	c := Curves{Edge: edge}.WithDefaults()
	assert.Same(t, edge, c.Edge)
	require.NotNil(t, c.Sides)
	require.NotNil(t, c.Top)
	assert.Equal(t, DefaultCurves().Top.Eval(0.4), c.Top.Eval(0.4))

	clone := c.Clone()
	assert.Equal(t, float32(1), clone.Edge.Eval(0.5))
	assert.Nil(t, (*Curve)(nil).Clone())
}

// testSphere is a belly sphere centered one unit up with the back extent a
// tenth behind it.
func testSphere() measure.Sphere {
	return measure.Sphere{
		Center:         pm.Vec3{Y: 1},
		PreShiftCenter: pm.Vec3{Y: 1},
		BackExtent:     pm.Vec3{Y: 1, Z: -0.1},
		TopExtent:      pm.Vec3{Y: 1.35},
		Radius:         0.2,
		WaistWidth:     0.24,
		NormalRadius:   0.224,
	}
}

func testSolver(shape params.Shape) *Solver {
	return NewSolver(&shape, testSphere(), DefaultCurves(), false)
}

func TestEnforceBackExtent(t *testing.T) {
	s := testSolver(params.Default())
	o := pm.Vec3{Y: 1, Z: -0.11}
	v := pm.Vec3{Y: 1, Z: -0.15}
	assert.Equal(t, o, s.enforce(o, v))
}

func TestEnforceCoreLine(t *testing.T) {
	s := testSolver(params.Default())
	o := pm.Vec3{X: 0.1, Y: 1, Z: 0.05}
	v := pm.Vec3{X: 0.05, Y: 1.2, Z: 0.02}
	assert.Equal(t, pm.Vec3{X: 0.1, Y: 1.2, Z: 0.05}, s.enforce(o, v))
}

func TestEnforceInward(t *testing.T) {
	s := testSolver(params.Default())
	o := pm.Vec3{X: 0.1, Y: 1.1, Z: 0.1}
	v := pm.Vec3{X: 0.1, Y: 1.1, Z: 0.12}
	assert.Equal(t, v, s.enforce(o, v))

	// Farther from the core line but closer to the center.
	v = pm.Vec3{X: 0.15, Y: 1, Z: 0.01}
	assert.Equal(t, o, s.enforce(o, v))
}

func TestEnforceZPullBack(t *testing.T) {
	s := testSolver(params.Default())
	o := pm.Vec3{Y: 1, Z: 0.10}
	v := pm.Vec3{X: 0.06, Y: 1.15, Z: 0.09}
	got := s.enforce(o, v)
	assert.InDelta(t, 0.04, got.X, 1e-6)
	assert.InDelta(t, 1.10, got.Y, 1e-6)
	assert.Equal(t, o.Z, got.Z)
}

func TestSculptRejectsInside(t *testing.T) {
	s := testSolver(params.Default())
	// Already outside the sphere.
	o := pm.Vec3{Y: 1, Z: 0.3}
	assert.Equal(t, o, s.Vertex(o, 0))
	// Exactly at the center.
	o = pm.Vec3{Y: 1}
	assert.Equal(t, o, s.Vertex(o, 0))
}

func TestVertexFrontGrows(t *testing.T) {
	s := testSolver(params.Default())
	o := pm.Vec3{Y: 1, Z: 0.11}
	got := s.Vertex(o, 0)
	assert.Greater(t, got.Z, o.Z)
	assert.InDelta(t, 0.2, got.Distance(s.Sphere.Center), 1e-3)

	thicker := s.Vertex(o, 0.01)
	assert.Greater(t, thicker.Z, got.Z)
}

func TestBalloonSkipsShaping(t *testing.T) {
	shape := params.Default()
	shape.TaperY = 0.3
	s := NewSolver(&shape, testSphere(), DefaultCurves(), true)

	orig := []pm.Vec3{{Y: 1, Z: -0.5}, {X: 2, Y: 3}, {Y: 1, Z: 0.1}}
	res := s.Solve(orig, []bool{false, false, false}, nil)
	for i, v := range res.Inflated {
		assert.True(t, res.Altered[i])
		assert.InDelta(t, 0.2, v.Distance(s.Sphere.Center), 1e-5)
	}
}

type rigFixture struct {
	orig   []pm.Vec3
	region []bool
	sphere measure.Sphere
}

func newRigFixture(t *testing.T, shape *params.Shape) rigFixture {
	t.Helper()
	c := rig.New(&host.KK, rig.DefaultOptions())
	body := c.BodyMesh()

	verts, err := body.Vertices()
	require.NoError(t, err)
	weights, err := body.BoneWeights()
	require.NoError(t, err)
	mask, err := region.Select(body.Bones(), weights, host.KK.RegionJoints, false)
	require.NoError(t, err)

	p, err := measure.New(&host.KK, 0, 0).Measure(c.Skeleton(), c.Body(), shape.EffectiveMultiplier())
	require.NoError(t, err)
	return rigFixture{orig: verts, region: mask, sphere: p.Sphere(host.KK.BellyButtonBias, shape)}
}

func shapes() map[string]params.Shape {
	with := func(f func(*params.Shape)) params.Shape {
		s := params.Default()
		s.Intensity = params.MaxIntensity
		f(&s)
		return s
	}
	return map[string]params.Shape{
		"default":    with(func(*params.Shape) {}),
		"multiplier": with(func(s *params.Shape) { s.Multiplier = 0.6 }),
		"move":       with(func(s *params.Shape) { s.MoveY = 0.04; s.MoveZ = 0.03 }),
		"shift":      with(func(s *params.Shape) { s.ShiftY = -0.4; s.ShiftZ = 0.2 }),
		"stretch":    with(func(s *params.Shape) { s.StretchX = 0.5; s.StretchY = -0.5 }),
		"roundness":  with(func(s *params.Shape) { s.Roundness = -0.5 }),
		"round out":  with(func(s *params.Shape) { s.Roundness = 0.5 }),
		"taper":      with(func(s *params.Shape) { s.TaperY = 0.5; s.TaperZ = -0.5 }),
		"fat fold":   with(func(s *params.Shape) { s.FatFold = 80; s.FatFoldHeight = -0.2 }),
		"drop":       with(func(s *params.Shape) { s.Drop = 0.5 }),
		"everything": with(func(s *params.Shape) {
			s.Multiplier = 0.3
			s.MoveY = -0.02
			s.ShiftY = 0.1
			s.StretchX = -0.2
			s.Roundness = 0.2
			s.TaperY = -0.3
			s.TaperZ = 0.3
			s.FatFold = 40
			s.Drop = 0.2
		}),
	}
}

func TestSolveInvariants(t *testing.T) {
	for name, shape := range shapes() {
		t.Run(name, func(t *testing.T) {
			f := newRigFixture(t, &shape)
			res := NewSolver(&shape, f.sphere, DefaultCurves(), false).Solve(f.orig, f.region, nil)
			require.Len(t, res.Inflated, len(f.orig))

			moved := 0
			for i, o := range f.orig {
				v := res.Inflated[i]
				if !f.region[i] {
					assert.Equal(t, o, v, "non-region vertex %d moved", i)
					assert.False(t, res.Altered[i])
					continue
				}
				assert.GreaterOrEqual(t, v.Distance(f.sphere.Center), o.Distance(f.sphere.Center), "vertex %d moved inwards", i)
				assert.GreaterOrEqual(t, v.Distance(f.sphere.PreShiftCenter), o.Distance(f.sphere.PreShiftCenter))
				if o.Z < f.sphere.BackExtent.Z {
					assert.Equal(t, o, v, "vertex %d behind the back extent moved", i)
				}
				if v != o {
					moved++
					assert.True(t, res.Altered[i])
				}
			}
			assert.Greater(t, moved, 0)
		})
	}
}

func TestSolveDeterministic(t *testing.T) {
	shape := shapes()["everything"]
	f := newRigFixture(t, &shape)
	curves := DefaultCurves()

	a := NewSolver(&shape, f.sphere, curves, false).Solve(f.orig, f.region, nil)
	b := NewSolver(&shape, f.sphere, curves, false).Solve(f.orig, f.region, nil)
	assert.Equal(t, a.Inflated, b.Inflated)
	assert.Equal(t, a.Altered, b.Altered)
}

func TestSolveBackVerticesStay(t *testing.T) {
	shape := params.Default()
	f := newRigFixture(t, &shape)
	res := NewSolver(&shape, f.sphere, DefaultCurves(), false).Solve(f.orig, f.region, nil)

	back := 0
	for i, o := range f.orig {
		if f.region[i] && o.Z < f.sphere.BackExtent.Z {
			back++
			assert.Equal(t, o, res.Inflated[i])
		}
	}
	assert.Greater(t, back, 0, "rig should have region vertices behind the back extent")
}

func TestSolveClothOffsets(t *testing.T) {
	shape := params.Default()
	f := newRigFixture(t, &shape)
	s := NewSolver(&shape, f.sphere, DefaultCurves(), false)

	offsets := make([]float32, len(f.orig))
	for i := range offsets {
		offsets[i] = 0.01
	}
	plain := s.Solve(f.orig, f.region, nil)
	padded := s.Solve(f.orig, f.region, offsets)

	c := f.sphere.Center
	further := 0
	for i := range f.orig {
		if padded.Inflated[i].Distance(c) > plain.Inflated[i].Distance(c) {
			further++
		}
	}
	assert.Greater(t, further, 0)
}

func TestNewSolverSnapshotsShape(t *testing.T) {
	shape := params.Default()
	s := NewSolver(&shape, testSphere(), DefaultCurves(), false)
	shape.Drop = 0.5
	assert.Equal(t, float32(0), s.Shape.Drop)
}
