package character

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Faultbox/bellysculpt/internal/blendshape"
	"github.com/Faultbox/bellysculpt/internal/logger"
	"github.com/Faultbox/bellysculpt/internal/mesh"
)

// CreateBlendShapes distills the current full-intensity shape of every
// computed mesh into a blend shape named with tag. Temporary shapes are
// never encoded. Afterwards intensity drops to zero so the shape is not
// applied twice. It returns how many shapes were added.
func (c *Controller) CreateBlendShapes(tag string, temporary bool) int {
	added := 0
	for _, key := range c.order {
		rec, ok := c.records.Get(key)
		if !ok || !rec.Ready() || !rec.HasShape {
			continue
		}
		s, err := c.distiller.Distill(c.live[key].mesh, rec, c.topo[key], tag)
		if errors.Is(err, blendshape.ErrNoOriginalVertices) {
			logger.Debug("mesh not computed, skipping blend shape", zap.Stringer("mesh", key))
			continue
		}
		if err != nil {
			c.report(key.Name, codeFor(err), "creating blend shape", zap.Error(err))
			continue
		}
		if c.shapes.Put(s, !temporary) {
			added++
		}
	}
	logger.Info("created blend shapes",
		zap.String("character", c.chara.ID()),
		zap.Int("added", added),
		zap.Bool("temporary", temporary))

	if added > 0 {
		c.shape.Intensity = 0
		c.ResetInflation()
	}
	return added
}

// ApplyBlendShapes writes the blend shape named with tag to every live mesh
// that has one, at weight in [0, 1]. It returns how many meshes changed.
func (c *Controller) ApplyBlendShapes(tag string, weight float32) int {
	c.collect()
	n := 0
	for _, key := range c.order {
		s, ok := c.shapes.Get(key, blendshape.Name(key, tag))
		if !ok {
			continue
		}
		rec, created := c.records.GetOrCreate(key)
		if created || rec.BaseVertices == nil {
			if err := c.capture(c.live[key], rec); err != nil {
				c.report(key.Name, codeFor(err), "reading mesh", zap.Error(err))
				c.forget(key)
				continue
			}
		}
		g, err := s.Apply(rec, weight)
		if err != nil {
			c.report(key.Name, codeFor(err), "applying blend shape", zap.Error(err))
			continue
		}
		if err := c.live[key].mesh.Apply(g); err != nil {
			logger.Warn("applying geometry", zap.Stringer("mesh", key), zap.Error(err))
			continue
		}
		c.applied[key] = true
		n++
	}
	return n
}

// RemoveBlendShapes drops every blend shape and re-inflates with the
// current shape.
func (c *Controller) RemoveBlendShapes() {
	c.shapes.Clear()
	c.Inflate(Flags{})
}

// EncodeBlendShapes serializes the persisted blend shapes.
func (c *Controller) EncodeBlendShapes() ([]byte, error) {
	return c.shapes.Encode()
}

// LoadBlendShapes decodes blob and keeps the shapes that match a live mesh
// by name and vertex count. Shapes already present are skipped.
func (c *Controller) LoadBlendShapes(blob []byte) (int, error) {
	if c.chara.Body() == nil {
		return 0, nil
	}
	c.collect()
	return c.shapes.Load(blob, c.order)
}

// BlendShapes returns the keys of every mesh with at least one blend shape.
func (c *Controller) BlendShapes() []mesh.Key {
	return c.shapes.Keys()
}
