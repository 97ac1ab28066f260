package character

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bellysculpt/internal/params"
	"github.com/Faultbox/bellysculpt/pkg/rig"
)

func TestClothingChangeIsDebounced(t *testing.T) {
	c, chara, clock := newTestController(t, rig.DefaultOptions())
	inflate(c, fullShape())
	require.Equal(t, 3, c.records.Len())

	chara.RemoveGarment("bra")
	c.OnClothingChanged("bra")
	clock.advance(c.opts.Timing.ClothingDelay / 2)
	c.OnClothingChanged("bra")
	c.Tick()
	assert.Equal(t, 3, c.records.Len(), "still waiting")

	clock.advance(c.opts.Timing.ClothingDelay / 2)
	c.Tick()
	assert.Equal(t, 3, c.records.Len(), "a burst restarts the delay")

	clock.advance(c.opts.Timing.ClothingDelay)
	c.Tick()
	c.Drain()
	assert.Equal(t, 2, c.records.Len())
	assert.True(t, c.Idle())
}

func TestIgnoredSlot(t *testing.T) {
	c, _, _ := newTestController(t, rig.DefaultOptions())
	c.OnClothingChanged("socks")
	assert.True(t, c.Idle())
}

func TestNewGarmentIsComputed(t *testing.T) {
	c, chara, clock := newTestController(t, rig.DefaultOptions())
	inflate(c, fullShape())

	other := rig.New(c.profile, rig.DefaultOptions())
	top := other.Garment("top")
	top.Rename("o_top_b", "ct_clothesTop")
	chara.AddGarment("top", top)
	c.OnClothingChanged("top")
	clock.advance(c.opts.Timing.ClothingDelay)
	c.Tick()
	c.Drain()

	rec, ok := c.records.Get(keyOf(top))
	require.True(t, ok)
	assert.True(t, rec.Ready())
	assert.Equal(t, 3, c.records.Len(), "the replaced top is forgotten")
	_, n := top.Live()
	assert.Equal(t, 1, n)
}

func TestVisibility(t *testing.T) {
	c, _, clock := newTestController(t, rig.DefaultOptions())
	c.OnVisibilityChanged(true)
	assert.True(t, c.Idle(), "already visible")

	c.OnVisibilityChanged(false)
	c.OnVisibilityChanged(true)
	assert.True(t, c.timers.Has(timerVisible))
	c.OnVisibilityChanged(false)
	assert.False(t, c.timers.Has(timerVisible))

	c.SetShape(fullShape())
	c.OnVisibilityChanged(true)
	clock.advance(c.opts.Timing.ReloadDelay)
	c.Tick()
	c.Drain()
	assert.Equal(t, 3, c.records.Len())
}

func TestReload(t *testing.T) {
	c, chara, clock := newTestController(t, rig.DefaultOptions())
	inflate(c, fullShape())
	body := chara.BodyMesh()

	c.OnReload()
	assert.Equal(t, 0, c.records.Len())
	assert.Equal(t, baseVertices(t, body), liveVertices(body))

	clock.advance(c.opts.Timing.ReloadDelay)
	c.Tick()
	c.Drain()
	assert.Equal(t, 3, c.records.Len())
	assert.NotEqual(t, baseVertices(t, body), liveVertices(body))

	clock.advance(c.opts.Timing.RemeasureDelay - c.opts.Timing.ReloadDelay)
	c.Tick()
	assert.False(t, c.sched.Busy(), "unchanged measurements need no recompute")
	assert.True(t, c.Idle())
}

func TestSceneEnd(t *testing.T) {
	c, chara, _ := newTestController(t, rig.DefaultOptions())
	inflate(c, fullShape())
	c.OnClothingChanged("top")
	c.OnReload()
	inflate(c, fullShape())

	c.OnSceneEnd()
	assert.True(t, c.Idle())
	assert.Equal(t, 0, c.records.Len())
	body := chara.BodyMesh()
	assert.Equal(t, baseVertices(t, body), liveVertices(body))
}

func TestBlendShapeLifecycle(t *testing.T) {
	c, chara, _ := newTestController(t, rig.DefaultOptions())
	inflate(c, fullShape())
	body := chara.BodyMesh()
	full := liveVertices(body)

	n := c.CreateBlendShapes("", false)
	assert.Equal(t, 3, n)
	assert.Equal(t, float32(0), c.Shape().Intensity)
	assert.Equal(t, baseVertices(t, body), liveVertices(body))
	assert.Equal(t, 0, c.CreateBlendShapes("", false), "duplicates are not added")
	assert.Equal(t, 3, c.CreateBlendShapes("preview", true))
	assert.Len(t, c.BlendShapes(), 3)

	blob, err := c.EncodeBlendShapes()
	require.NoError(t, err)

	// A new session on an identical character.
	other, otherChara, _ := newTestController(t, rig.DefaultOptions())
	loaded, err := other.LoadBlendShapes(blob)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded, "temporary shapes are not persisted")
	assert.Equal(t, 0, other.ApplyBlendShapes("preview", 1))
	assert.Equal(t, 3, other.ApplyBlendShapes("", 1))

	got := liveVertices(otherChara.BodyMesh())
	require.Len(t, got, len(full))
	for i := range full {
		assert.InDelta(t, full[i].X, got[i].X, 1e-5)
		assert.InDelta(t, full[i].Y, got[i].Y, 1e-5)
		assert.InDelta(t, full[i].Z, got[i].Z, 1e-5)
	}

	// Weight 0 is the base mesh.
	assert.Equal(t, 3, other.ApplyBlendShapes("", 0))
	assert.Equal(t, baseVertices(t, otherChara.BodyMesh()), liveVertices(otherChara.BodyMesh()))

	c.RemoveBlendShapes()
	assert.Empty(t, c.BlendShapes())
	assert.Equal(t, baseVertices(t, body), liveVertices(body))
}

func TestLoadBlendShapesSkipsOtherMeshes(t *testing.T) {
	c, _, _ := newTestController(t, rig.DefaultOptions())
	inflate(c, fullShape())
	require.Equal(t, 3, c.CreateBlendShapes("", false))
	blob, err := c.EncodeBlendShapes()
	require.NoError(t, err)

	o := rig.DefaultOptions()
	o.Clothing = false
	o.Segments = 16
	other, _, _ := newTestController(t, o)
	n, err := other.LoadBlendShapes(blob)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "vertex counts differ")

	_, err = other.LoadBlendShapes([]byte("garbage"))
	assert.Error(t, err)
}

func TestCreateBlendShapesNeedsComputedMeshes(t *testing.T) {
	c, _, _ := newTestController(t, rig.DefaultOptions())
	s := params.Default()
	s.Intensity = 10
	c.SetShape(s)

	assert.Equal(t, 0, c.CreateBlendShapes("", false))
	assert.Equal(t, float32(10), c.Shape().Intensity, "nothing created, intensity kept")
	assert.Empty(t, c.BlendShapes())
}
