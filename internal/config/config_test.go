package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat-derived/macroengine/internal/keys"
	"github.com/kidandcat-derived/macroengine/internal/profile"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Profile.Name)
	assert.Equal(t, profile.AltShiftDistinctForm, cfg.AltShiftPolicy())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.AltShiftMode = "exempt"
	cfg.Profile.Name = "round-trip"
	cfg.Profile.Bindings = []profile.Binding{
		{
			Name:    "tap-a",
			Enabled: true,
			Trigger: profile.Trigger{Key: keys.InputW, Gesture: "single"},
			Sequence: []profile.Step{
				{Key: &keys.QualifiedKey{Base: keys.OutputA, Modifiers: keys.NewModifierSet()}, BufferTier: profile.BufferLow},
			},
		},
	}

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip", loaded.Profile.Name)
	assert.Equal(t, profile.AltShiftExempt, loaded.AltShiftPolicy())
	require.Len(t, loaded.Profile.Bindings, 1)
	assert.Equal(t, "tap-a", loaded.Profile.Bindings[0].Name)
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Profile.Bindings = []profile.Binding{
		{Name: "bad", Enabled: true, Sequence: []profile.Step{{}}},
	}
	require.NoError(t, Save(cfg, path))

	_, err := Load(path)
	assert.Error(t, err)
}
