package character

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Faultbox/bellysculpt/internal/engine/blend"
	"github.com/Faultbox/bellysculpt/internal/engine/clothfit"
	"github.com/Faultbox/bellysculpt/internal/engine/measure"
	"github.com/Faultbox/bellysculpt/internal/engine/region"
	"github.com/Faultbox/bellysculpt/internal/engine/sculpt"
	"github.com/Faultbox/bellysculpt/internal/engine/skinning"
	"github.com/Faultbox/bellysculpt/internal/host"
	"github.com/Faultbox/bellysculpt/internal/logger"
	"github.com/Faultbox/bellysculpt/internal/mesh"
	"github.com/Faultbox/bellysculpt/internal/params"
	"github.com/Faultbox/bellysculpt/internal/scheduler"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

// inflateMesh runs one mesh through the pass: blend the cached result, or
// start the bind pose or shape computation it is missing.
func (c *Controller) inflateMesh(p *pass, key mesh.Key) {
	lm, ok := c.live[key]
	if !ok {
		return
	}
	if c.sched.State(key) == scheduler.Ignored {
		return
	}
	if c.sched.Defer(key) {
		return
	}

	rec, created := c.records.GetOrCreate(key)
	if created || rec.BaseVertices == nil {
		if err := c.capture(lm, rec); err != nil {
			c.report(key.Name, codeFor(err), "reading mesh", zap.Error(err))
			c.forget(key)
			return
		}
	}
	if err := rec.Validate(); err != nil {
		c.report(key.Name, logger.CodeVertexCountMismatch, "discarding cached mesh record", zap.Error(err))
		c.forget(key)
		rec, _ = c.records.GetOrCreate(key)
		if err := c.capture(lm, rec); err != nil {
			c.report(key.Name, codeFor(err), "reading mesh", zap.Error(err))
			c.forget(key)
			return
		}
	}

	change := params.Diff(rec.Shape, p.shape)
	if !scheduler.NeedsComputeVerts(rec, lm.mesh.VertexCount(), change, p.force) {
		c.apply(key)
		return
	}
	if rec.FirstPass {
		c.bindPose(lm, rec)
		return
	}
	c.shapePass(p, lm, rec)
}

// capture reads the mesh's base geometry, topology and weights on first
// sight.
func (c *Controller) capture(lm liveMesh, rec *mesh.Record) error {
	m := lm.mesh
	var (
		verts, normals []pm.Vec3
		uvs            []pm.Vec2
		tris           []int
		weights        []host.BoneWeight
	)
	err := host.WithReadable(m, func() error {
		var err error
		if verts, err = m.Vertices(); err != nil {
			return err
		}
		if normals, err = m.Normals(); err != nil {
			return err
		}
		if uvs, err = m.UVs(); err != nil {
			return err
		}
		if tris, err = m.Triangles(); err != nil {
			return err
		}
		weights, err = m.BoneWeights()
		return err
	})
	if err != nil {
		return err
	}
	if len(verts) != rec.Key.VertexCount || len(normals) != len(verts) {
		return mesh.ErrVertexCountMismatch
	}

	rec.BaseVertices = verts
	rec.BaseNormals = normals
	rec.BaseTangents = blend.RecalculateTangents(verts, normals, uvs, tris, nil, nil)
	rec.IsClothing = lm.cloth
	if vc, ok := m.(host.VerticalCorrector); ok {
		rec.VerticalCorrection = vc.VerticalCorrection()
	}
	c.topo[rec.Key] = blend.Topology{Triangles: tris, UVs: uvs}
	c.weights[rec.Key] = weights
	return nil
}

// bindPose selects the belly region and resolves the reference pose on a
// worker. The shape pass follows once the result is applied.
func (c *Controller) bindPose(lm liveMesh, rec *mesh.Record) {
	key := rec.Key
	weights := c.weights[key]

	mask, err := region.Select(lm.mesh.Bones(), weights, c.profile.RegionJoints, c.opts.Deform.Balloon)
	if errors.Is(err, region.ErrNoRegionVertices) {
		rec.Region = mask
		c.sched.SetState(key, scheduler.Ignored)
		c.report(key.Name, logger.CodeNoRegionVertices, "mesh has no belly vertices, ignoring it")
		return
	}
	if err != nil {
		c.report(key.Name, codeFor(err), "selecting belly region", zap.Error(err))
		return
	}
	frame, err := skinning.SampleFrame(lm.mesh, rec.VerticalCorrection)
	if err != nil {
		c.report(key.Name, codeFor(err), "sampling bind pose", zap.Error(err))
		return
	}

	verts := rec.BaseVertices
	c.sched.Dispatch(key, scheduler.BindPoseComputing, func() func() {
		ref, toBuffer, err := skinning.ResolveAll(frame, verts, weights)
		return func() {
			if cur, ok := c.records.Get(key); !ok || cur != rec {
				return
			}
			if err != nil {
				c.report(key.Name, codeFor(err), "resolving bind pose", zap.Error(err))
				c.forget(key)
				return
			}
			rec.Original = ref
			rec.ToBuffer = toBuffer
			rec.Region = mask
			rec.FirstPass = false
			logger.Debug("bind pose ready",
				zap.String("character", c.chara.ID()),
				zap.Stringer("mesh", key),
				zap.Int("region", rec.RegionCount()))

			c.continueMesh(key)
			if !lm.cloth {
				c.wakeClothing()
			}
		}
	})
}

// shapePass samples the skin for clothing on the foreground and runs the
// solver on a worker.
func (c *Controller) shapePass(p *pass, lm liveMesh, rec *mesh.Record) {
	key := rec.Key
	sphere := sphereFor(p, lm.mesh)

	var (
		est     *clothfit.Estimator
		samples clothfit.Samples
	)
	if rec.IsClothing {
		probe, ready := c.skinProbe()
		if !ready {
			c.waiting[key] = true
			return
		}
		delete(c.waiting, key)
		samples = clothfit.Sample(probe, toBodySpace(p.body, lm.mesh, rec.Original), rec.Region, p.sphere)
		est = &clothfit.Estimator{
			Version:     p.shape.ClothingOffsetVersion,
			ClothOffset: p.shape.ClothOffset,
			Sphere:      sphere,
			InnerLayer:  c.profile.IsInnerLayer(key.Name),
		}
	}

	solver := sculpt.NewSolver(&p.shape, sphere, c.curves, c.opts.Deform.Balloon)
	orig, mask := rec.Original, rec.Region
	shape := p.shape.Clone()
	c.sched.Dispatch(key, scheduler.ShapeComputing, func() func() {
		var offsets []float32
		if est != nil {
			offsets = est.Offsets(orig, samples)
		}
		res := solver.Solve(orig, mask, offsets)
		return func() {
			if cur, ok := c.records.Get(key); !ok || cur != rec {
				return
			}
			rec.Inflated = res.Inflated
			rec.Altered = res.Altered
			rec.ClothOffsets = offsets
			rec.Shape = shape
			rec.HasShape = true
			c.apply(key)
		}
	})
}

// continueMesh runs key through a new pass with the current shape. It is
// used after a bind pose lands and for passes refused while one ran.
func (c *Controller) continueMesh(key mesh.Key) {
	if _, ok := c.live[key]; !ok {
		return
	}
	if !c.eligible() || !c.shape.GameplayEnabled || c.shape.Intensity <= 0 {
		return
	}
	p, ok := c.newPass(false)
	if !ok {
		return
	}
	c.inflateMesh(p, key)
}

// wakeClothing restarts clothing passes that were waiting for the body.
func (c *Controller) wakeClothing() {
	for _, key := range c.order {
		if c.waiting[key] {
			c.continueMesh(key)
		}
	}
}

// skinProbe returns the probe over the body's reference pose. ready is
// false while the body bind pose is still being resolved. A body without
// belly vertices yields a nil probe, so clothing gets no offsets.
func (c *Controller) skinProbe() (probe *clothfit.Probe, ready bool) {
	if len(c.order) == 0 || c.live[c.order[0]].cloth {
		return nil, true
	}
	bodyKey := c.order[0]
	if c.probe != nil && c.probeKey == bodyKey {
		return c.probe, true
	}
	if c.sched.State(bodyKey) == scheduler.Ignored {
		return nil, true
	}
	rec, ok := c.records.Get(bodyKey)
	if !ok || rec.FirstPass || rec.Original == nil {
		return nil, false
	}

	probe, err := clothfit.NewProbe(rec.Original, c.topo[bodyKey].Triangles)
	if err != nil {
		logger.Warn("building skin probe", zap.Stringer("mesh", bodyKey), zap.Error(err))
		return nil, true
	}
	c.probe, c.probeKey = probe, bodyKey
	return probe, true
}

// apply blends the cached result at the current intensity and writes it to
// the live mesh.
func (c *Controller) apply(key mesh.Key) {
	rec, ok := c.records.Get(key)
	lm, live := c.live[key]
	if !ok || !live || !rec.Ready() {
		return
	}
	g, err := c.engine.Build(rec, c.topo[key], c.shape.IntensityFactor())
	if err != nil {
		c.report(key.Name, codeFor(err), "blending mesh", zap.Error(err))
		return
	}
	if err := lm.mesh.Apply(g); err != nil {
		logger.Warn("applying geometry", zap.Stringer("mesh", key), zap.Error(err))
		return
	}
	c.applied[key] = true
}

// sphereFor places the pass sphere in m's local space.
func sphereFor(p *pass, m host.Mesh) measure.Sphere {
	if m.LocalToWorld() == p.body.LocalToWorld() {
		return p.sphere
	}
	return p.sphere.Transform(m.LocalToWorld().Inverse().Mul(p.body.LocalToWorld()))
}

// toBodySpace maps m's local positions into the body's local space.
func toBodySpace(body, m host.Mesh, verts []pm.Vec3) []pm.Vec3 {
	if m.LocalToWorld() == body.LocalToWorld() {
		return verts
	}
	xf := body.LocalToWorld().Inverse().Mul(m.LocalToWorld())
	out := make([]pm.Vec3, len(verts))
	for i, v := range verts {
		out[i] = xf.TransformPoint(v)
	}
	return out
}
