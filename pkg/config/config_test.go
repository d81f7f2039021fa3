package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/core/alias"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Engine.DefaultYears)
	assert.Equal(t, 100, cfg.Engine.CacheSize)
	assert.Equal(t, 0.05, cfg.Quality.BalanceTolerance)
	assert.Empty(t, cfg.Engine.ImplicitScaling.Categories)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Engine, cfg.Engine)
}

func TestLoad_FileOverlay(t *testing.T) {
	path := writeFile(t, `
engine:
  default_years: 6
  implicit_scaling:
    categories: [monetary]
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Engine.DefaultYears)
	assert.Equal(t, 100, cfg.Engine.CacheSize, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.LogLevel)

	opts := cfg.EngineOptions()
	assert.Equal(t, 6, opts.DefaultYears)
	assert.Equal(t, []alias.Kind{alias.KindMonetary}, opts.Cleaner.ImplicitKinds)
	assert.Equal(t, 1e8, opts.Cleaner.ImplicitMultiplier)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINSIGHT_ADDR", ":9999")
	t.Setenv("FINSIGHT_CACHE_SIZE", "0")
	t.Setenv("FINSIGHT_IMPLICIT_SCALING", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 0, cfg.Engine.CacheSize)
	assert.Equal(t, []string{"monetary", "signed_monetary"}, cfg.Engine.ImplicitScaling.Categories)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"horizon too long", "engine:\n  default_years: 50\n"},
		{"negative cache", "engine:\n  cache_size: -1\n"},
		{"unknown kind", "engine:\n  implicit_scaling:\n    categories: [ratio]\n"},
		{"tolerance", "quality:\n  balance_tolerance: 2\n"},
		{"log level", "log_level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "engine: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_RepoConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "engine.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Engine.DefaultYears, cfg.Engine.DefaultYears)
}
