package suitability

import (
	"math"

	"github.com/sells-group/landuse-cli/internal/config"
	"github.com/sells-group/landuse-cli/internal/model"
)

// Components holds the normalized inputs to the composite scores.
type Components struct {
	Population float64 `json:"pop_norm"`
	NDVI       float64 `json:"ndvi_norm"`
	LST        float64 `json:"lst_norm"`
	AOD        float64 `json:"aod_norm"`
	Flood      float64 `json:"flood_norm"`
	PctGreen   float64 `json:"pct_green"`
}

// Scorer maps profiles to suitability results. It holds no mutable state and
// is safe for concurrent use.
type Scorer struct {
	cfg config.ScoringConfig
}

// New creates a Scorer with the given config. It does not validate cfg; use
// NewValidated for configuration read from outside the program.
func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// NewValidated runs ValidateConfig and creates a Scorer. A zero span would
// otherwise divide by zero and yield NaN composites.
func NewValidated(cfg config.ScoringConfig) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// NewDefault creates a Scorer with DefaultConfig.
func NewDefault() *Scorer {
	return New(DefaultConfig())
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() config.ScoringConfig {
	return s.cfg
}

// Score computes the suitability result for a profile.
func (s *Scorer) Score(p model.Profile) model.Suitability {
	return s.ScoreStats(p.Stats)
}

// ScoreStats computes the suitability result from raw statistics.
func (s *Scorer) ScoreStats(stats model.Stats) model.Suitability {
	return s.Composite(s.Components(stats))
}

// Components normalizes the scoring inputs. Missing or null statistics read
// as 0 before normalization; unknown is treated as baseline, not as an error.
func (s *Scorer) Components(stats model.Stats) Components {
	pop := stats.Or(model.StatPopulationDensity, 0)
	ndvi := stats.Or(model.StatNDVIMean, 0)
	pctGreen := stats.Or(model.StatPctGreen, 0)
	lst := stats.Or(model.StatLSTCelsius, 0)
	aod := stats.Or(model.StatAODMean, 0)
	flood := stats.Or(model.StatFloodRisk, 0)

	return Components{
		Population: normalize(pop, s.cfg.Population),
		NDVI:       normalize(ndvi, s.cfg.NDVI),
		LST:        normalize(lst, s.cfg.LST),
		AOD:        normalize(aod, s.cfg.AOD),
		Flood:      Clamp01(flood),
		PctGreen:   pctGreen,
	}
}

// Composite combines normalized components into the three scores and the
// best-use decision.
func (s *Scorer) Composite(c Components) model.Suitability {
	g, i, r := s.cfg.Greenspace, s.cfg.Industrial, s.cfg.Residential

	// The float64 conversions round each product before the sum so results
	// are identical on platforms that would otherwise fuse multiply-add.
	greenspace := Clamp01(float64(g.Population*c.Population) + float64(g.Vegetation*(1-c.NDVI)) + float64(g.Heat*c.LST))
	industrial := Clamp01(float64(i.Population*(1-c.Population)) + float64(i.Flood*(1-c.Flood)) + float64(i.Aerosol*(1-c.AOD)))
	residential := Clamp01(float64(r.Flood*(1-c.Flood)) + float64(r.Aerosol*(1-c.AOD)) + float64(r.Green*c.PctGreen))

	return model.Suitability{
		GreenspacePriority:     greenspace,
		IndustrialSuitability:  industrial,
		ResidentialSuitability: residential,
		BestUse:                Decide(greenspace, industrial, residential),
	}
}

// Decide picks the best use. Greenspace wins any tie for the maximum, and
// residential wins a tie with industrial.
func Decide(greenspace, industrial, residential float64) model.BestUse {
	if greenspace >= math.Max(industrial, residential) {
		return model.BestUseGreenspace
	}
	if residential >= industrial {
		return model.BestUseResidential
	}
	return model.BestUseIndustrial
}

// Clamp01 saturates v to [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func normalize(v float64, d config.DomainConfig) float64 {
	return Clamp01((v - d.Min) / d.Span)
}

// Score computes suitability with the default configuration.
func Score(p model.Profile) model.Suitability {
	return NewDefault().Score(p)
}
