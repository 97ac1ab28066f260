package params

// Range is an inclusive slider range.
type Range struct {
	Min, Max float32
	// Scaled ranges widen with the configured scale limit.
	Scaled bool
}

func (r Range) clamp(v, limit float32) float32 {
	lo, hi := r.Min, r.Max
	if r.Scaled {
		lo *= limit
		hi *= limit
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ranges are the documented slider bounds.
var Ranges = struct {
	Intensity, Multiplier, Roundness, MoveY, MoveZ, StretchX, StretchY,
	ShiftY, ShiftZ, TaperY, TaperZ, ClothOffset, FatFold, FatFoldHeight, Drop Range
}{
	Intensity:     Range{0, MaxIntensity, false},
	Multiplier:    Range{-0.9, 2, false},
	Roundness:     Range{-0.5, 0.5, true},
	MoveY:         Range{-0.5, 0.5, true},
	MoveZ:         Range{-0.2, 0.2, true},
	StretchX:      Range{-0.5, 0.5, true},
	StretchY:      Range{-0.5, 0.5, true},
	ShiftY:        Range{-0.5, 0.5, true},
	ShiftZ:        Range{-0.2, 0.2, true},
	TaperY:        Range{-0.5, 0.5, true},
	TaperZ:        Range{-0.5, 0.5, true},
	ClothOffset:   Range{0, 3, false},
	FatFold:       Range{0, 100, false},
	FatFoldHeight: Range{-0.5, 0.5, true},
	Drop:          Range{0, 0.5, true},
}

// Clamp limits every slider to its range. limit widens the scaled ranges;
// values below 1 are treated as 1.
func Clamp(s Shape, limit float32) Shape {
	if limit < 1 {
		limit = 1
	}
	r := Ranges
	s.Intensity = r.Intensity.clamp(s.Intensity, limit)
	s.Multiplier = r.Multiplier.clamp(s.Multiplier, limit)
	s.Roundness = r.Roundness.clamp(s.Roundness, limit)
	s.MoveY = r.MoveY.clamp(s.MoveY, limit)
	s.MoveZ = r.MoveZ.clamp(s.MoveZ, limit)
	s.StretchX = r.StretchX.clamp(s.StretchX, limit)
	s.StretchY = r.StretchY.clamp(s.StretchY, limit)
	s.ShiftY = r.ShiftY.clamp(s.ShiftY, limit)
	s.ShiftZ = r.ShiftZ.clamp(s.ShiftZ, limit)
	s.TaperY = r.TaperY.clamp(s.TaperY, limit)
	s.TaperZ = r.TaperZ.clamp(s.TaperZ, limit)
	s.ClothOffset = r.ClothOffset.clamp(s.ClothOffset, limit)
	s.FatFold = r.FatFold.clamp(s.FatFold, limit)
	s.FatFoldHeight = r.FatFoldHeight.clamp(s.FatFoldHeight, limit)
	s.Drop = r.Drop.clamp(s.Drop, limit)
	if s.ClothingOffsetVersion != OffsetV1 {
		s.ClothingOffsetVersion = OffsetV2
	}
	return s
}
