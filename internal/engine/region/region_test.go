package region

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bellysculpt/internal/host"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
	"github.com/Faultbox/bellysculpt/pkg/rig"
)

func TestSelectByDominantBone(t *testing.T) {
	c := rig.New(&host.KK, rig.DefaultOptions())
	m := c.BodyMesh()
	weights, err := m.BoneWeights()
	require.NoError(t, err)
	verts, _ := m.Vertices()

	mask, err := Select(m.Bones(), weights, host.KK.RegionJoints, false)
	require.NoError(t, err)
	require.Len(t, mask, m.VertexCount())

	n := Count(mask)
	assert.Greater(t, n, 0)
	assert.Less(t, n, m.VertexCount())

	for i, in := range mask {
		// Region bones cover the band between the hips and the lower ribs.
		if in {
			assert.GreaterOrEqual(t, verts[i].Y, float32(0.85))
			assert.Less(t, verts[i].Y, float32(1.20))
		}
	}
}

func TestSelectIsBoneDriven(t *testing.T) {
	// A clothing vertex sitting right on the belly but skinned to a joint
	// outside the region set is never selected.
	c := rig.New(&host.KK, rig.DefaultOptions())
	top := c.Garment("top")
	weights, err := top.BoneWeights()
	require.NoError(t, err)
	verts, _ := top.Vertices()

	front := -1
	for i, v := range verts {
		if v.Y > 0.98 && v.Y < 1.08 && v.Z > 0.1 {
			front = i
			break
		}
	}
	require.GreaterOrEqual(t, front, 0, "expected a front belly vertex")

	mask, err := Select(top.Bones(), weights, host.KK.RegionJoints, false)
	require.NoError(t, err)
	require.True(t, mask[front])

	// Reskin that one vertex to the upper spine.
	weights[front] = host.BoneWeight{Bones: [4]int{4, 2}, Weights: [4]float32{0.6, 0.4}}
	mask, err = Select(top.Bones(), weights, host.KK.RegionJoints, false)
	require.NoError(t, err)
	assert.False(t, mask[front])
}

func TestSelectBalloon(t *testing.T) {
	c := rig.New(&host.KK, rig.DefaultOptions())
	m := c.BodyMesh()
	weights, _ := m.BoneWeights()

	mask, err := Select(m.Bones(), weights, host.KK.RegionJoints, true)
	require.NoError(t, err)
	assert.Equal(t, m.VertexCount(), Count(mask))
}

func TestSelectNoRegion(t *testing.T) {
	c := rig.New(&host.KK, rig.DefaultOptions())
	m := c.BodyMesh()
	weights, _ := m.BoneWeights()

	// The HS2 joint names never appear on a KK skeleton.
	mask, err := Select(m.Bones(), weights, host.HS2.RegionJoints, false)
	assert.True(t, errors.Is(err, ErrNoRegionVertices))
	assert.Len(t, mask, m.VertexCount())
	assert.Zero(t, Count(mask))

	_, err = Select(nil, nil, nil, true)
	assert.True(t, errors.Is(err, ErrNoRegionVertices))
}

func TestSelectSkipsBadBones(t *testing.T) {
	weights := []host.BoneWeight{
		{},
		{Bones: [4]int{7}, Weights: [4]float32{1}},
		{Bones: [4]int{0}, Weights: [4]float32{1}},
	}
	bones := []host.Joint{fakeJoint("cf_s_waist01")}
	mask, err := Select(bones, weights, host.KK.RegionJoints, false)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true}, mask)
}

type fakeJoint string

func (j fakeJoint) Name() string              { return string(j) }
func (j fakeJoint) Parent() host.Joint        { return nil }
func (j fakeJoint) LocalToWorld() pm.Mat4     { return pm.Identity() }
func (j fakeJoint) ReferenceToWorld() pm.Mat4 { return pm.Identity() }
