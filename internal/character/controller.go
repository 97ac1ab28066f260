// Package character drives the belly deformation of one host character. A
// Controller owns every piece of per-character state: cached mesh records,
// measurements, the computation scheduler, debounced event timers and
// distilled blend shapes. All exported methods run on the foreground.
package character

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/bellysculpt/internal/blendshape"
	"github.com/Faultbox/bellysculpt/internal/config"
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

// Options configures a Controller.
type Options struct {
	Profile *host.Profile
	Deform  config.DeformConfig
	Timing  config.TimingConfig

	// Curves shape the falloff passes. The zero value uses the defaults.
	Curves sculpt.Curves

	// Now is the debounce clock. Nil uses the wall clock.
	Now func() time.Time

	// Diagnostics may be shared between characters. Nil creates one.
	Diagnostics *logger.Diagnostics
}

// OptionsFromConfig builds options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, p *host.Profile) Options {
	return Options{
		Profile: p,
		Deform:  cfg.Deform,
		Timing:  cfg.Timing,
	}
}

// Flags modify one Inflate call.
type Flags struct {
	FreshStart bool // forget every cached record first
	Remeasure  bool // drop cached measurements
}

type liveMesh struct {
	mesh  host.Mesh
	cloth bool
}

// Controller is the per-character context.
type Controller struct {
	chara   host.Character
	profile *host.Profile
	opts    Options
	curves  sculpt.Curves

	shape      params.Shape
	restore    params.Shape
	hasRestore bool

	records   *mesh.Store
	sched     *scheduler.Scheduler
	timers    *scheduler.Debouncer
	measurer  *measure.Measurer
	engine    *blend.Engine
	distiller *blendshape.Distiller
	shapes    *blendshape.Store
	diag      *logger.Diagnostics

	live    map[mesh.Key]liveMesh
	order   []mesh.Key // body first, then clothing
	topo    map[mesh.Key]blend.Topology
	weights map[mesh.Key][]host.BoneWeight
	applied map[mesh.Key]bool // live geometry differs from base
	waiting map[mesh.Key]bool // clothing waiting for the body bind pose

	probe      *clothfit.Probe
	probeKey   mesh.Key
	lastSphere measure.Sphere
	visible    bool
}

// New creates a controller for chara. The character starts with the
// default shape and nothing is computed until Inflate.
func New(chara host.Character, opts Options) *Controller {
	if opts.Profile == nil {
		opts.Profile = &host.KK
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = logger.NewDiagnostics()
	}
	curves := opts.Curves.WithDefaults()
	angle := opts.Deform.SmoothingAngle
	if angle <= 0 {
		angle = blend.DefaultSmoothingAngle
	}
	engine := &blend.Engine{SmoothingAngle: angle, All: opts.Deform.Balloon}

	c := &Controller{
		chara:     chara,
		profile:   opts.Profile,
		opts:      opts,
		curves:    curves,
		shape:     params.Default(),
		records:   mesh.NewStore(),
		sched:     scheduler.New(),
		timers:    scheduler.NewDebouncer(opts.Now),
		measurer:  measure.New(opts.Profile, opts.Deform.MinRadius, opts.Deform.MaxRadius),
		engine:    engine,
		distiller: &blendshape.Distiller{Engine: engine},
		shapes:    blendshape.NewStore(),
		diag:      opts.Diagnostics,
		visible:   chara.Visible(),
	}
	c.resetCaches()
	return c
}

func (c *Controller) resetCaches() {
	c.live = make(map[mesh.Key]liveMesh)
	c.order = nil
	c.topo = make(map[mesh.Key]blend.Topology)
	c.weights = make(map[mesh.Key][]host.BoneWeight)
	c.applied = make(map[mesh.Key]bool)
	c.waiting = make(map[mesh.Key]bool)
	c.probe = nil
	c.probeKey = mesh.Key{}
	c.lastSphere = measure.Sphere{}
}

// ID returns the host character id.
func (c *Controller) ID() string { return c.chara.ID() }

// Diagnostics returns the reporter this controller logs through.
func (c *Controller) Diagnostics() *logger.Diagnostics { return c.diag }

// Shape returns a snapshot of the current shape.
func (c *Controller) Shape() params.Shape { return c.shape.Clone() }

// SetShape clamps s to the slider ranges and makes it current. Nothing is
// recomputed until Inflate. A shape with a positive intensity is remembered
// for Restore.
func (c *Controller) SetShape(s params.Shape) {
	c.shape = params.Clamp(s, c.opts.Deform.ScaleLimit)
	if c.shape.Intensity > 0 {
		c.restore = c.shape.Clone()
		c.hasRestore = true
	}
}

// LastShape returns the last shape set with a positive intensity.
func (c *Controller) LastShape() (params.Shape, bool) {
	return c.restore.Clone(), c.hasRestore
}

// Restore makes s current and re-inflates. Callers usually pass the result
// of LastShape.
func (c *Controller) Restore(s params.Shape) {
	c.SetShape(s)
	c.Inflate(Flags{})
}

// ResetAll returns every slider to its default and writes the base
// geometry back.
func (c *Controller) ResetAll() {
	c.SetShape(params.Default())
	c.Inflate(Flags{})
}

// pass is the foreground context of one inflation pass.
type pass struct {
	shape  params.Shape
	body   host.Mesh
	sphere measure.Sphere // body local space
	force  bool           // recompute shaped meshes
}

// Inflate brings every mesh of the character to the current shape. Meshes
// whose cached result is still valid are only blended; the rest are queued
// for computation and finish on later ticks.
func (c *Controller) Inflate(f Flags) {
	if !c.eligible() {
		return
	}
	if !c.shape.GameplayEnabled {
		if c.records.Len() > 0 {
			c.CleanSlate()
		}
		return
	}
	if f.FreshStart {
		c.CleanSlate()
	}
	if c.shape.Intensity <= 0 {
		c.ResetInflation()
		return
	}
	if f.Remeasure {
		c.measurer.Invalidate()
	}

	p, ok := c.newPass(f.FreshStart)
	if !ok {
		return
	}
	c.collect()
	for _, key := range c.order {
		c.inflateMesh(p, key)
	}
}

// eligible reports whether the character can be deformed at all.
func (c *Controller) eligible() bool {
	if c.chara.Body() == nil {
		c.report("", logger.CodeMissingMeshRoot, "character has no body mesh")
		return false
	}
	if c.chara.Skeleton() == nil {
		c.report(c.chara.Body().Name(), logger.CodeMissingSkeleton, "character has no skeleton")
		return false
	}
	if c.chara.Male() && !c.opts.Deform.AllowMale {
		logger.Debug("skipping male character", zap.String("character", c.chara.ID()))
		return false
	}
	return true
}

func (c *Controller) newPass(fresh bool) (*pass, bool) {
	body := c.chara.Body()
	shape := c.shape.Clone()
	prof, err := c.measurer.Measure(c.chara.Skeleton(), body, shape.EffectiveMultiplier())
	if err != nil {
		if c.chara.Visible() {
			c.report(body.Name(), codeFor(err), "measuring character", zap.Error(err))
		} else {
			logger.Debug("measuring hidden character", zap.String("character", c.chara.ID()), zap.Error(err))
		}
		return nil, false
	}

	p := &pass{
		shape:  shape,
		body:   body,
		sphere: prof.Sphere(c.profile.BellyButtonBias, &shape),
		force:  fresh,
	}
	if c.lastSphere.Radius > 0 && c.lastSphere != p.sphere {
		p.force = true
	}
	c.lastSphere = p.sphere
	return p, true
}

// collect refreshes the live mesh list, body first, and forgets records of
// meshes that are gone.
func (c *Controller) collect() {
	live := make(map[mesh.Key]liveMesh)
	var order []mesh.Key
	add := func(m host.Mesh, cloth bool) {
		key := mesh.Key{Name: m.Name(), VertexCount: m.VertexCount()}
		if _, dup := live[key]; dup {
			return
		}
		live[key] = liveMesh{mesh: m, cloth: cloth}
		order = append(order, key)
	}

	if body := c.chara.Body(); body != nil {
		add(body, false)
	}
	for _, g := range c.chara.Clothing() {
		if g.Mesh == nil {
			continue
		}
		cloth := true
		if c.profile.IsBodyMesh(g.Mesh.Name()) {
			c.report(g.Mesh.Name(), logger.CodeBodyMeshDisguisedAsCloth,
				"body mesh nested under clothing, treating it as skin", zap.String("slot", g.Slot))
			cloth = false
		}
		add(g.Mesh, cloth)
	}

	for _, key := range c.order {
		if _, ok := live[key]; !ok {
			c.forget(key)
		}
	}
	c.live = live
	c.order = order
}

func (c *Controller) forget(key mesh.Key) {
	c.records.Delete(key)
	c.sched.Forget(key)
	delete(c.topo, key)
	delete(c.weights, key)
	delete(c.applied, key)
	delete(c.waiting, key)
	if key == c.probeKey {
		c.probe = nil
	}
}

// CleanSlate writes the base geometry back and forgets every cached
// record. Results of passes still running are discarded.
func (c *Controller) CleanSlate() {
	c.ResetInflation()
	c.records.Clear()
	c.sched.Reset()
	c.resetCaches()
}

// ResetInflation writes the base geometry back to every mesh this
// controller changed. Cached records are kept.
func (c *Controller) ResetInflation() {
	for _, key := range c.order {
		if !c.applied[key] {
			continue
		}
		rec, ok := c.records.Get(key)
		lm, live := c.live[key]
		if !ok || !live || rec.BaseVertices == nil {
			continue
		}
		if err := lm.mesh.Apply(baseGeometry(rec)); err != nil {
			logger.Warn("restoring base geometry", zap.Stringer("mesh", key), zap.Error(err))
			continue
		}
		delete(c.applied, key)
	}
}

func baseGeometry(rec *mesh.Record) host.Geometry {
	g := host.Geometry{
		Vertices: append([]pm.Vec3(nil), rec.BaseVertices...),
		Normals:  append([]pm.Vec3(nil), rec.BaseNormals...),
		Tangents: append([]pm.Vec4(nil), rec.BaseTangents...),
	}
	g.Bounds.Min, g.Bounds.Max = blend.Bounds(g.Vertices)
	return g
}

// NeedsRecompute reports whether key would be recomputed, rather than only
// blended, by the next Inflate.
func (c *Controller) NeedsRecompute(key mesh.Key) bool {
	if c.sched.State(key) == scheduler.Ignored {
		return false
	}
	rec, ok := c.records.Get(key)
	if !ok {
		return true
	}
	count := key.VertexCount
	if lm, live := c.live[key]; live {
		count = lm.mesh.VertexCount()
	}
	return scheduler.NeedsComputeVerts(rec, count, params.Diff(rec.Shape, c.shape), false)
}

// Tick runs due event timers and applies finished computations. Call it
// once per host frame.
func (c *Controller) Tick() {
	c.timers.Poll()
	for _, key := range c.sched.Tick() {
		c.continueMesh(key)
	}
}

// Idle reports whether no computation or timer is pending.
func (c *Controller) Idle() bool {
	return !c.sched.Busy() && c.timers.Pending() == 0
}

// Drain waits for running computations and applies them, including any
// passes they start, until nothing is in flight. Pending timers are left
// alone.
func (c *Controller) Drain() {
	for c.sched.Busy() {
		c.sched.Wait()
		c.Tick()
	}
}

func (c *Controller) report(meshName string, code logger.Code, msg string, fields ...zap.Field) {
	c.diag.Report(c.chara.ID(), meshName, code, msg, fields...)
}

func codeFor(err error) logger.Code {
	switch {
	case errors.Is(err, host.ErrMeshNotReadable):
		return logger.CodeMeshNotReadable
	case errors.Is(err, mesh.ErrVertexCountMismatch):
		return logger.CodeVertexCountMismatch
	case errors.Is(err, region.ErrNoRegionVertices):
		return logger.CodeNoRegionVertices
	case errors.Is(err, measure.ErrMissingSkeleton),
		errors.Is(err, host.ErrMissingJoint),
		errors.Is(err, skinning.ErrBoneCountMismatch),
		errors.Is(err, skinning.ErrMissingBoneWeights):
		return logger.CodeMissingSkeleton
	}
	return logger.CodeBadMeasurement
}
