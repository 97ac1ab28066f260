package character

import (
	"github.com/Faultbox/bellysculpt/internal/engine/region"
	"github.com/Faultbox/bellysculpt/internal/mesh"
	"github.com/Faultbox/bellysculpt/internal/scheduler"
)

// MeshInfo summarizes the state of one live mesh.
type MeshInfo struct {
	Key      mesh.Key
	State    scheduler.State
	Clothing bool
	Region   int
	Altered  int
	// MaxDisplacement is the largest distance between an original and an
	// inflated position, in reference space.
	MaxDisplacement float32
}

// Meshes returns the state of every live mesh, body first.
func (c *Controller) Meshes() []MeshInfo {
	out := make([]MeshInfo, 0, len(c.order))
	for _, key := range c.order {
		info := MeshInfo{
			Key:      key,
			State:    c.sched.State(key),
			Clothing: c.live[key].cloth,
		}
		if rec, ok := c.records.Get(key); ok {
			info.Region = region.Count(rec.Region)
			info.Altered = region.Count(rec.Altered)
			if rec.Ready() {
				for i, o := range rec.Original {
					if d := o.Distance(rec.Inflated[i]); d > info.MaxDisplacement {
						info.MaxDisplacement = d
					}
				}
			}
		}
		out = append(out, info)
	}
	return out
}
