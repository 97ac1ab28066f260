// Package config handles bellysculpt configuration loading and management.
package config

import "time"

// Config holds all engine settings.
type Config struct {
	Host    HostConfig    `yaml:"host"`
	Deform  DeformConfig  `yaml:"deform"`
	Timing  TimingConfig  `yaml:"timing"`
	Logging LoggingConfig `yaml:"logging"`
}

// HostConfig selects the host profile (joint table and mesh naming).
type HostConfig struct {
	Profile string `yaml:"profile"` // kk, hs2 or ai
}

// DeformConfig holds solver-wide settings that are not per-character sliders.
type DeformConfig struct {
	Balloon        bool    `yaml:"balloon"`         // every vertex is a region vertex
	SmoothingAngle float32 `yaml:"smoothing_angle"` // degrees, seam normal merge threshold
	MinRadius      float32 `yaml:"min_radius"`      // 0 disables the lower clamp
	MaxRadius      float32 `yaml:"max_radius"`      // 0 disables the upper clamp
	ScaleLimit     float32 `yaml:"scale_limit"`     // widens symmetric slider ranges
	AllowMale      bool    `yaml:"allow_male"`
}

// TimingConfig holds the debounce delays for host events.
type TimingConfig struct {
	ReloadDelay    time.Duration `yaml:"reload_delay"`
	RemeasureDelay time.Duration `yaml:"remeasure_delay"`
	ClothingDelay  time.Duration `yaml:"clothing_delay"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			Profile: "kk",
		},
		Deform: DeformConfig{
			Balloon:        false,
			SmoothingAngle: 40,
			ScaleLimit:     1,
			AllowMale:      false,
		},
		Timing: TimingConfig{
			ReloadDelay:    500 * time.Millisecond,
			RemeasureDelay: 1500 * time.Millisecond,
			ClothingDelay:  500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
