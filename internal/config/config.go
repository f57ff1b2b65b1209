package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Layers    LayersConfig    `yaml:"layers" mapstructure:"layers"`
	Geostats  GeostatsConfig  `yaml:"geostats" mapstructure:"geostats"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Advisor   AdvisorConfig   `yaml:"advisor" mapstructure:"advisor"`
	XAI       XAIConfig       `yaml:"xai" mapstructure:"xai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AnalysisConfig holds the default analysis window and AOI fallback.
type AnalysisConfig struct {
	StartDate   string    `yaml:"start_date" mapstructure:"start_date"`
	EndDate     string    `yaml:"end_date" mapstructure:"end_date"`
	DefaultBBox []float64 `yaml:"default_bbox" mapstructure:"default_bbox"` // minLon, minLat, maxLon, maxLat
	Concurrency int       `yaml:"concurrency" mapstructure:"concurrency"`
}

// LayersConfig is the catalog of source datasets and per-layer parameters.
type LayersConfig struct {
	Population         string  `yaml:"population" mapstructure:"population"`
	PopulationYear     int     `yaml:"population_year" mapstructure:"population_year"`
	Sentinel2          string  `yaml:"sentinel2" mapstructure:"sentinel2"`
	ModisLST           string  `yaml:"modis_lst" mapstructure:"modis_lst"`
	MaiacAOD           string  `yaml:"maiac_aod" mapstructure:"maiac_aod"`
	SRTM               string  `yaml:"srtm" mapstructure:"srtm"`
	GPMIMERG           string  `yaml:"gpm_imerg" mapstructure:"gpm_imerg"`
	WorldCover         string  `yaml:"world_cover" mapstructure:"world_cover"`
	JRCGSW             string  `yaml:"jrc_gsw" mapstructure:"jrc_gsw"`
	NDVIGreenThreshold float64 `yaml:"ndvi_green_threshold" mapstructure:"ndvi_green_threshold"`
	MaxCloudPct        float64 `yaml:"max_cloud_pct" mapstructure:"max_cloud_pct"`
	MaxPixels          float64 `yaml:"max_pixels" mapstructure:"max_pixels"`
}

// GeostatsConfig holds settings for the region-reduction service.
type GeostatsConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Key         string  `yaml:"key" mapstructure:"key"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	CacheSize   int     `yaml:"cache_size" mapstructure:"cache_size"`
}

// ScoringConfig holds normalization domains and composite weights.
type ScoringConfig struct {
	Population  DomainConfig       `yaml:"population" mapstructure:"population"`
	NDVI        DomainConfig       `yaml:"ndvi" mapstructure:"ndvi"`
	LST         DomainConfig       `yaml:"lst" mapstructure:"lst"`
	AOD         DomainConfig       `yaml:"aod" mapstructure:"aod"`
	Greenspace  GreenspaceWeights  `yaml:"greenspace" mapstructure:"greenspace"`
	Industrial  IndustrialWeights  `yaml:"industrial" mapstructure:"industrial"`
	Residential ResidentialWeights `yaml:"residential" mapstructure:"residential"`
	Flood       FloodConfig        `yaml:"flood" mapstructure:"flood"`
}

// DomainConfig maps a raw statistic onto [0,1] as (v - Min) / Span.
type DomainConfig struct {
	Min  float64 `yaml:"min" mapstructure:"min"`
	Span float64 `yaml:"span" mapstructure:"span"`
}

// GreenspaceWeights weight the greenspace priority composite.
type GreenspaceWeights struct {
	Population float64 `yaml:"population" mapstructure:"population"`
	Vegetation float64 `yaml:"vegetation" mapstructure:"vegetation"`
	Heat       float64 `yaml:"heat" mapstructure:"heat"`
}

// IndustrialWeights weight the industrial suitability composite.
type IndustrialWeights struct {
	Population float64 `yaml:"population" mapstructure:"population"`
	Flood      float64 `yaml:"flood" mapstructure:"flood"`
	Aerosol    float64 `yaml:"aerosol" mapstructure:"aerosol"`
}

// ResidentialWeights weight the residential suitability composite.
type ResidentialWeights struct {
	Flood   float64 `yaml:"flood" mapstructure:"flood"`
	Aerosol float64 `yaml:"aerosol" mapstructure:"aerosol"`
	Green   float64 `yaml:"green" mapstructure:"green"`
}

// FloodConfig configures the flood-risk proxy.
type FloodConfig struct {
	ElevationCeilingM    float64 `yaml:"elevation_ceiling_m" mapstructure:"elevation_ceiling_m"`
	PrecipCeilingMM      float64 `yaml:"precip_ceiling_mm" mapstructure:"precip_ceiling_mm"`
	OccurrenceCeilingPct float64 `yaml:"occurrence_ceiling_pct" mapstructure:"occurrence_ceiling_pct"`
	ElevationWeight      float64 `yaml:"elevation_weight" mapstructure:"elevation_weight"`
	PrecipWeight         float64 `yaml:"precip_weight" mapstructure:"precip_weight"`
	OccurrenceWeight     float64 `yaml:"occurrence_weight" mapstructure:"occurrence_weight"`
}

// AdvisorConfig configures the LLM advisory step.
type AdvisorConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	UserType    string  `yaml:"user_type" mapstructure:"user_type"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// XAIConfig holds xAI (Grok) API settings.
type XAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// Advisor providers.
const (
	ProviderXAI       = "xai"
	ProviderAnthropic = "anthropic"
)

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LANDUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:9002"})

	v.SetDefault("analysis.start_date", "2022-01-01")
	v.SetDefault("analysis.end_date", "2022-12-31")
	v.SetDefault("analysis.default_bbox", []float64{72.5, 22.9, 72.65, 23.05}) // Ahmedabad
	v.SetDefault("analysis.concurrency", 1)

	v.SetDefault("layers.population", "WorldPop/GP/100m/pop")
	v.SetDefault("layers.population_year", 2020)
	v.SetDefault("layers.sentinel2", "COPERNICUS/S2_SR_HARMONIZED")
	v.SetDefault("layers.modis_lst", "MODIS/061/MOD11A2")
	v.SetDefault("layers.maiac_aod", "MODIS/061/MCD19A2_GRANULES")
	v.SetDefault("layers.srtm", "USGS/SRTMGL1_003")
	v.SetDefault("layers.gpm_imerg", "NASA/GPM_L3/IMERG_V07")
	v.SetDefault("layers.world_cover", "ESA/WorldCover/v100")
	v.SetDefault("layers.jrc_gsw", "JRC/GSW1_4/GlobalSurfaceWater")
	v.SetDefault("layers.ndvi_green_threshold", 0.3)
	v.SetDefault("layers.max_cloud_pct", 40)
	v.SetDefault("layers.max_pixels", 1e13)

	// Secrets default to empty so AutomaticEnv can bind them on Unmarshal.
	v.SetDefault("geostats.base_url", "")
	v.SetDefault("geostats.key", "")
	v.SetDefault("xai.key", "")
	v.SetDefault("anthropic.key", "")

	v.SetDefault("geostats.timeout_secs", 60)
	v.SetDefault("geostats.rate_per_sec", 5)
	v.SetDefault("geostats.max_retries", 3)
	v.SetDefault("geostats.cache_size", 256)

	// Scoring defaults. Keep in sync with suitability.DefaultConfig.
	v.SetDefault("scoring.population.min", 0)
	v.SetDefault("scoring.population.span", 10000)
	v.SetDefault("scoring.ndvi.min", -0.2)
	v.SetDefault("scoring.ndvi.span", 0.8)
	v.SetDefault("scoring.lst.min", 20)
	v.SetDefault("scoring.lst.span", 25)
	v.SetDefault("scoring.aod.min", 0)
	v.SetDefault("scoring.aod.span", 1.0)
	v.SetDefault("scoring.greenspace.population", 0.5)
	v.SetDefault("scoring.greenspace.vegetation", 0.3)
	v.SetDefault("scoring.greenspace.heat", 0.2)
	v.SetDefault("scoring.industrial.population", 0.5)
	v.SetDefault("scoring.industrial.flood", 0.4)
	v.SetDefault("scoring.industrial.aerosol", 0.1)
	v.SetDefault("scoring.residential.flood", 0.4)
	v.SetDefault("scoring.residential.aerosol", 0.3)
	v.SetDefault("scoring.residential.green", 0.3)
	v.SetDefault("scoring.flood.elevation_ceiling_m", 200)
	v.SetDefault("scoring.flood.precip_ceiling_mm", 2000)
	v.SetDefault("scoring.flood.occurrence_ceiling_pct", 100)
	v.SetDefault("scoring.flood.elevation_weight", 0.4)
	v.SetDefault("scoring.flood.precip_weight", 0.4)
	v.SetDefault("scoring.flood.occurrence_weight", 0.2)

	v.SetDefault("advisor.provider", ProviderXAI)
	v.SetDefault("advisor.user_type", "city planner")
	v.SetDefault("advisor.temperature", 0.3)
	v.SetDefault("advisor.max_tokens", 2048)
	v.SetDefault("advisor.timeout_secs", 15)
	v.SetDefault("xai.base_url", "https://api.x.ai/v1")
	v.SetDefault("xai.model", "grok-4")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
}

// Validate checks the fields a given command needs.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "profile":
		if c.Geostats.BaseURL == "" {
			errs = append(errs, "geostats.base_url is required")
		}
		if c.Analysis.Concurrency < 1 || c.Analysis.Concurrency > 16 {
			errs = append(errs, "analysis.concurrency must be between 1 and 16")
		}
		if n := len(c.Analysis.DefaultBBox); n != 0 && n != 4 {
			errs = append(errs, "analysis.default_bbox must have 4 values")
		}
	case "advise":
		errs = append(errs, c.validateAdvisor()...)
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.AdvisorConfigured() {
			errs = append(errs, c.validateAdvisor()...)
		}
	case "score", "tiles":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AdvisorConfigured reports whether any advisor provider key is set. serve
// runs without an advisor otherwise.
func (c *Config) AdvisorConfigured() bool {
	return c.XAI.Key != "" || c.Anthropic.Key != ""
}

func (c *Config) validateAdvisor() []string {
	var errs []string
	switch c.Advisor.Provider {
	case ProviderXAI:
		if c.XAI.Key == "" {
			errs = append(errs, "xai.key is required")
		}
	case ProviderAnthropic:
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("advisor.provider must be %q or %q", ProviderXAI, ProviderAnthropic))
	}
	if c.Advisor.Temperature < 0 || c.Advisor.Temperature > 2 {
		errs = append(errs, "advisor.temperature must be between 0 and 2")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
