package scheduler

import (
	"github.com/Faultbox/bellysculpt/internal/mesh"
	"github.com/Faultbox/bellysculpt/internal/params"
)

// NeedsComputeVerts decides whether a mesh needs its inflated vertices
// recomputed, or whether blending the cached result is enough.
//
// A known mesh with an unchanged vertex count only needs a blend when the
// intensity, or nothing at all, changed since its shape was computed. Any
// other slider change, a count mismatch, an invalid record or a fresh start
// forces a recompute.
func NeedsComputeVerts(rec *mesh.Record, liveCount int, change params.Change, fresh bool) bool {
	switch {
	case fresh, rec == nil:
		return true
	case rec.Key.VertexCount != liveCount:
		return true
	case rec.Validate() != nil:
		return true
	case !rec.Ready(), !rec.HasShape:
		return true
	}
	return change.Shape
}
