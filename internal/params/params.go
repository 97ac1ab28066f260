// Package params holds the per-character shape parameters that drive the
// belly deformation.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OffsetVersion selects the clothing offset formula.
type OffsetVersion int

const (
	OffsetV1 OffsetVersion = 1
	OffsetV2 OffsetVersion = 2
)

// MaxIntensity is the intensity at which a vertex reaches its inflated
// position.
const MaxIntensity = 40

// Shape is the user-controlled shape of one character's belly. The zero
// value is a valid, fully deflated shape.
type Shape struct {
	Intensity     float32 `yaml:"intensity"`
	Multiplier    float32 `yaml:"multiplier"` // added to 1 to scale the sphere radius
	Roundness     float32 `yaml:"roundness"`
	MoveY         float32 `yaml:"move_y"`
	MoveZ         float32 `yaml:"move_z"`
	StretchX      float32 `yaml:"stretch_x"`
	StretchY      float32 `yaml:"stretch_y"`
	ShiftY        float32 `yaml:"shift_y"`
	ShiftZ        float32 `yaml:"shift_z"`
	TaperY        float32 `yaml:"taper_y"`
	TaperZ        float32 `yaml:"taper_z"`
	ClothOffset   float32 `yaml:"cloth_offset"`
	FatFold       float32 `yaml:"fat_fold"`
	FatFoldHeight float32 `yaml:"fat_fold_height"`
	Drop          float32 `yaml:"drop"`

	ClothingOffsetVersion OffsetVersion `yaml:"clothing_offset_version"`
	GameplayEnabled       bool          `yaml:"gameplay_enabled"`
}

// Default returns the shape a new character starts with.
func Default() Shape {
	return Shape{
		ClothingOffsetVersion: OffsetV2,
		GameplayEnabled:       true,
	}
}

// Clone returns an independent snapshot of s for a computation pass.
func (s *Shape) Clone() Shape {
	return *s
}

// EffectiveMultiplier is the factor applied to the measured sphere radius.
func (s *Shape) EffectiveMultiplier() float32 {
	return 1 + s.Multiplier
}

// IntensityFactor maps intensity onto [0, 1].
func (s *Shape) IntensityFactor() float32 {
	f := s.Intensity / MaxIntensity
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// HasShape reports whether any slider besides intensity is away from its
// default. A character with intensity zero and no shape is fully deflated.
func (s *Shape) HasShape() bool {
	z := *s
	z.Intensity = 0
	z.ClothingOffsetVersion = 0
	z.GameplayEnabled = false
	return z != Shape{}
}

// Load reads a shape from a YAML file. Missing keys keep their defaults.
func Load(path string) (Shape, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing %s: %w", path, err)
	}
	return Clamp(s, 1), nil
}

// Save writes the shape as YAML.
func (s *Shape) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
