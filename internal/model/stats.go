package model

import (
	"math"
	"sort"
)

// Standard statistic keys produced by the layer collectors.
const (
	StatPopulationDensity = "population_density_mean_per_km2"
	StatPopulationYear    = "population_year"
	StatNDVIMean          = "ndvi_mean"
	StatPctGreen          = "pct_green"
	StatLSTCelsius        = "lst_mean_celsius_est"
	StatLSTRaw            = "lst_raw_mean"
	StatAODMean           = "aod_mean"
	StatElevation         = "elevation_mean_m"
	StatPrecipitation     = "precip_total_mean_mm"
	StatLandcoverClass    = "landcover_dominant_class"
	StatWaterOccurrence   = "water_occurrence_mean"
	StatFloodRisk         = "flood_risk_score"
	StatNightlightIndex   = "nightlight_index"
)

// Standard attribute keys; attributes annotate how a statistic was produced.
const (
	AttrPopulationSource = "population_source"
	AttrAODBand          = "aod_band_used"
	AttrPrecipBand       = "precip_band_used"
)

// Stats maps a statistic name to its value. A nil value is an explicit null:
// the layer could not produce it.
type Stats map[string]*float64

// Float returns a pointer to v, or nil if v is not finite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FloatPtr copies *v, returning nil when v is nil or not finite.
func FloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

// Set stores v under key. Non-finite values are stored as null.
func (s Stats) Set(key string, v float64) {
	s[key] = Float(v)
}

// SetNull records key as explicitly absent.
func (s Stats) SetNull(key string) {
	s[key] = nil
}

// Get returns the value for key and whether it is present and non-null.
func (s Stats) Get(key string) (float64, bool) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Or returns the value for key, or def when the key is missing or null.
func (s Stats) Or(key string, def float64) float64 {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Ptr returns the stored pointer for key (nil when missing or null).
func (s Stats) Ptr(key string) *float64 {
	v, ok := s.Get(key)
	if !ok {
		return nil
	}
	return &v
}

// Nulls returns the sorted keys whose value is null.
func (s Stats) Nulls() []string {
	var out []string
	for k, v := range s {
		if v == nil {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		if v == nil {
			out[k] = nil
			continue
		}
		c := *v
		out[k] = &c
	}
	return out
}

// Attributes holds non-numeric collector annotations such as the band a
// statistic was reduced from.
type Attributes map[string]string

// Clone returns a copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// LayerResult is the output of a single layer collector.
type LayerResult struct {
	Stats      Stats
	Attributes Attributes
}

// NewLayerResult returns an empty LayerResult with initialized maps.
func NewLayerResult() LayerResult {
	return LayerResult{Stats: Stats{}, Attributes: Attributes{}}
}
