package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 50, cfg.Correlation.MinAppearances)
	assert.Equal(t, 1.2, cfg.Correlation.MinLift)
	assert.Equal(t, int64(10000), cfg.Correlation.WindowSize)
	assert.Equal(t, "louvain", cfg.Detection.Strategy)
	assert.Equal(t, 7, cfg.Detection.MinCommunitySize)
	assert.Equal(t, 3, cfg.Detection.FlexMinConnections)
	assert.Equal(t, 2.0, cfg.Detection.FlexMinLift)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMP_CORRELATION_MIN_APPEARANCES", "100")
	t.Setenv("GEMP_DETECTION_STRATEGY", "anchor")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Correlation.MinAppearances)
	assert.Equal(t, "anchor", cfg.Detection.Strategy)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
