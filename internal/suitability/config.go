// Package suitability scores an AOI profile for three competing land uses.
package suitability

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landuse-cli/internal/config"
)

// weightTolerance is the allowed drift from 1.0 for each composite's weights.
const weightTolerance = 1e-6

// DefaultConfig returns the documented normalization domains and weights.
// Each composite's weights sum to 1.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		// Raw domains: population 0..10000 /km², NDVI -0.2..0.6,
		// LST 20..45 °C, AOD 0..1.
		Population: config.DomainConfig{Min: 0, Span: 10000},
		NDVI:       config.DomainConfig{Min: -0.2, Span: 0.8},
		LST:        config.DomainConfig{Min: 20, Span: 25},
		AOD:        config.DomainConfig{Min: 0, Span: 1.0},

		Greenspace:  config.GreenspaceWeights{Population: 0.5, Vegetation: 0.3, Heat: 0.2},
		Industrial:  config.IndustrialWeights{Population: 0.5, Flood: 0.4, Aerosol: 0.1},
		Residential: config.ResidentialWeights{Flood: 0.4, Aerosol: 0.3, Green: 0.3},

		Flood: config.FloodConfig{
			ElevationCeilingM:    200,
			PrecipCeilingMM:      2000,
			OccurrenceCeilingPct: 100,
			ElevationWeight:      0.4,
			PrecipWeight:         0.4,
			OccurrenceWeight:     0.2,
		},
	}
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	domains := []struct {
		name string
		d    config.DomainConfig
	}{
		{"population", c.Population},
		{"ndvi", c.NDVI},
		{"lst", c.LST},
		{"aod", c.AOD},
	}
	for _, d := range domains {
		if d.d.Span <= 0 {
			errs = append(errs, fmt.Sprintf("%s.span must be > 0", d.name))
		}
	}

	composites := []struct {
		name    string
		weights []float64
	}{
		{"greenspace", []float64{c.Greenspace.Population, c.Greenspace.Vegetation, c.Greenspace.Heat}},
		{"industrial", []float64{c.Industrial.Population, c.Industrial.Flood, c.Industrial.Aerosol}},
		{"residential", []float64{c.Residential.Flood, c.Residential.Aerosol, c.Residential.Green}},
	}
	for _, comp := range composites {
		sum := 0.0
		for _, w := range comp.weights {
			if w < 0 {
				errs = append(errs, fmt.Sprintf("%s weights must be >= 0", comp.name))
			}
			sum += w
		}
		if math.Abs(sum-1) > weightTolerance {
			errs = append(errs, fmt.Sprintf("%s weights should sum to 1, got %.4f", comp.name, sum))
		}
	}

	f := c.Flood
	if f.ElevationCeilingM <= 0 || f.PrecipCeilingMM <= 0 || f.OccurrenceCeilingPct <= 0 {
		errs = append(errs, "flood ceilings must be > 0")
	}
	if f.ElevationWeight <= 0 || f.PrecipWeight <= 0 || f.OccurrenceWeight <= 0 {
		errs = append(errs, "flood weights must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("suitability: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
