// Package region classifies mesh vertices as belly region or not.
package region

import (
	"errors"
	"slices"

	"github.com/Faultbox/bellysculpt/internal/host"
)

var ErrNoRegionVertices = errors.New("mesh has no belly region vertices")

// Select marks every vertex whose dominant bone is one of joints. With
// balloon set every vertex is selected. The mask is returned even when it
// is empty, together with ErrNoRegionVertices.
func Select(bones []host.Joint, weights []host.BoneWeight, joints []string, balloon bool) ([]bool, error) {
	mask := make([]bool, len(weights))
	if balloon {
		for i := range mask {
			mask[i] = true
		}
		if len(mask) == 0 {
			return mask, ErrNoRegionVertices
		}
		return mask, nil
	}

	inRegion := make([]bool, len(bones))
	for i, b := range bones {
		inRegion[i] = b != nil && slices.Contains(joints, b.Name())
	}

	count := 0
	for i, w := range weights {
		bone, ok := w.Dominant()
		if !ok || bone < 0 || bone >= len(inRegion) {
			continue
		}
		if inRegion[bone] {
			mask[i] = true
			count++
		}
	}
	if count == 0 {
		return mask, ErrNoRegionVertices
	}
	return mask, nil
}

// Count returns the number of selected vertices.
func Count(mask []bool) int {
	n := 0
	for _, in := range mask {
		if in {
			n++
		}
	}
	return n
}
