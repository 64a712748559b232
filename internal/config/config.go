// Package config loads and hot-reloads the engine's profile and its
// surrounding runtime settings (spec.md §4.9).
package config

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/kidandcat-derived/macroengine/internal/gesture"
	"github.com/kidandcat-derived/macroengine/internal/obslog"
	"github.com/kidandcat-derived/macroengine/internal/profile"
)

// EngineConfig is the top-level configuration file: runtime settings
// plus the macro profile itself.
type EngineConfig struct {
	Logging       obslog.Config          `yaml:"logging"`
	AltShiftMode  string                 `yaml:"altShiftMode,omitempty"` // "distinct" or "exempt"
	Profile       profile.Profile        `yaml:"profile"`
}

// AltShiftPolicy resolves the configured mode to the compiler's policy
// enum, defaulting to the main-line distinct-form behavior.
func (c EngineConfig) AltShiftPolicy() profile.AltShiftPolicy {
	if c.AltShiftMode == "exempt" {
		return profile.AltShiftExempt
	}
	return profile.AltShiftDistinctForm
}

// Default returns a minimal, valid configuration: default gesture
// timing, console logging, no bindings.
func Default() EngineConfig {
	return EngineConfig{
		Logging: obslog.DefaultConfig(),
		Profile: profile.Profile{
			Name:     "default",
			Timing:   gesture.DefaultTimingConfig(),
			Bindings: nil,
		},
	}
}

// ConfigDir resolves the per-user directory the engine's config and log
// files live under, honoring $MACROENGINE_HOME before falling back to
// the user's home directory.
func ConfigDir() (string, error) {
	if v := os.Getenv("MACROENGINE_HOME"); v != "" {
		return v, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return home + "/.macroengine", nil
}

// Load reads and parses the YAML configuration file at path. A missing
// file yields Default() rather than an error, matching the CLI's
// "run with no setup" ergonomics.
func Load(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return EngineConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Profile.Timing.Validate(); err != nil {
		return EngineConfig{}, fmt.Errorf("config: %s: timing: %w", path, err)
	}
	if err := profile.ValidateProfile(cfg.Profile); err != nil {
		return EngineConfig{}, fmt.Errorf("config: %s: profile: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg back to path as YAML.
func Save(cfg EngineConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
