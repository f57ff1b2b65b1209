package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "2022-01-01", cfg.Analysis.StartDate)
	assert.Equal(t, "2022-12-31", cfg.Analysis.EndDate)
	assert.Equal(t, []float64{72.5, 22.9, 72.65, 23.05}, cfg.Analysis.DefaultBBox)
	assert.Equal(t, 1, cfg.Analysis.Concurrency)
	assert.Equal(t, "COPERNICUS/S2_SR_HARMONIZED", cfg.Layers.Sentinel2)
	assert.Equal(t, 2020, cfg.Layers.PopulationYear)
	assert.InDelta(t, 0.3, cfg.Layers.NDVIGreenThreshold, 1e-9)
	assert.InDelta(t, 40, cfg.Layers.MaxCloudPct, 1e-9)
	assert.InDelta(t, 10000, cfg.Scoring.Population.Span, 1e-9)
	assert.InDelta(t, -0.2, cfg.Scoring.NDVI.Min, 1e-9)
	assert.InDelta(t, 0.8, cfg.Scoring.NDVI.Span, 1e-9)
	assert.InDelta(t, 0.5, cfg.Scoring.Greenspace.Population, 1e-9)
	assert.InDelta(t, 0.1, cfg.Scoring.Industrial.Aerosol, 1e-9)
	assert.InDelta(t, 0.3, cfg.Scoring.Residential.Green, 1e-9)
	assert.InDelta(t, 200, cfg.Scoring.Flood.ElevationCeilingM, 1e-9)
	assert.Equal(t, ProviderXAI, cfg.Advisor.Provider)
	assert.InDelta(t, 0.3, cfg.Advisor.Temperature, 1e-9)
	assert.Equal(t, "grok-4", cfg.XAI.Model)
	assert.Equal(t, "https://api.x.ai/v1", cfg.XAI.BaseURL)
	assert.Equal(t, 256, cfg.Geostats.CacheSize)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
analysis:
  start_date: "2023-01-01"
  end_date: "2023-06-30"
scoring:
  greenspace:
    population: 0.6
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "2023-01-01", cfg.Analysis.StartDate)
	assert.InDelta(t, 0.6, cfg.Scoring.Greenspace.Population, 1e-9)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.3, cfg.Scoring.Greenspace.Vegetation, 1e-9)
	assert.Equal(t, "grok-4", cfg.XAI.Model)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
advisor:
  provider: xai
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LANDUSE_LOG_LEVEL", "warn")
	t.Setenv("LANDUSE_ADVISOR_PROVIDER", "anthropic")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ProviderAnthropic, cfg.Advisor.Provider)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LANDUSE_XAI_KEY=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("LANDUSE_XAI_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.XAI.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the fields validation inspects populated.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Analysis.Concurrency = 1
	cfg.Analysis.DefaultBBox = []float64{72.5, 22.9, 72.65, 23.05}
	cfg.Geostats.BaseURL = "http://localhost:8000"
	cfg.Advisor.Provider = ProviderXAI
	cfg.Advisor.Temperature = 0.3
	cfg.XAI.Key = "xai-key"
	return cfg
}

func TestValidateProfile(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("profile"))

	cfg.Geostats.BaseURL = ""
	cfg.Analysis.Concurrency = 0
	cfg.Analysis.DefaultBBox = []float64{1, 2}
	err := cfg.Validate("profile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geostats.base_url is required")
	assert.Contains(t, err.Error(), "analysis.concurrency must be between 1 and 16")
	assert.Contains(t, err.Error(), "analysis.default_bbox must have 4 values")
}

func TestValidateAdvise_Providers(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("advise"))

	cfg.XAI.Key = ""
	err := cfg.Validate("advise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xai.key is required")

	cfg.Advisor.Provider = ProviderAnthropic
	err = cfg.Validate("advise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant"
	assert.NoError(t, cfg.Validate("advise"))

	cfg.Advisor.Provider = "openai"
	err = cfg.Validate("advise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisor.provider must be")
}

func TestValidateAdvise_Temperature(t *testing.T) {
	cfg := validDefaults()
	cfg.Advisor.Temperature = 2.5
	err := cfg.Validate("advise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisor.temperature")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_AdvisorOptional(t *testing.T) {
	cfg := validDefaults()
	cfg.XAI.Key = ""
	require.False(t, cfg.AdvisorConfigured())
	assert.NoError(t, cfg.Validate("serve"))

	// A configured advisor is still checked.
	cfg.Anthropic.Key = "sk-ant"
	require.True(t, cfg.AdvisorConfigured())
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xai.key is required")
}

func TestValidateOfflineModes(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate("score"))
	assert.NoError(t, cfg.Validate("tiles"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
