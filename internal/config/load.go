package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	// Explicit path takes priority
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Host.Profile {
	case "kk", "hs2", "ai":
	default:
		return fmt.Errorf("unknown host profile %q", c.Host.Profile)
	}
	if c.Deform.MaxRadius > 0 && c.Deform.MinRadius > c.Deform.MaxRadius {
		return fmt.Errorf("min_radius %.3f exceeds max_radius %.3f", c.Deform.MinRadius, c.Deform.MaxRadius)
	}
	if c.Deform.SmoothingAngle < 0 || c.Deform.SmoothingAngle > 180 {
		return fmt.Errorf("smoothing_angle %.1f out of range [0, 180]", c.Deform.SmoothingAngle)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./bellysculpt.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "BellySculpt")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "BellySculpt")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "bellysculpt")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "bellysculpt")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
