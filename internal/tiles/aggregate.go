package tiles

import (
	"strconv"

	"github.com/sells-group/landuse-cli/internal/model"
)

// Aggregated summarizes a set of tiles. Every field but Count is omitted when
// Count is 0.
type Aggregated struct {
	Count                  int      `json:"count" yaml:"count"`
	AvgNDVIMean            *float64 `json:"avg_ndvi_mean,omitempty" yaml:"avg_ndvi_mean,omitempty"`
	AvgLSTMeanCelsius      *float64 `json:"avg_lst_mean_celsius_est,omitempty" yaml:"avg_lst_mean_celsius_est,omitempty"`
	AvgFloodRisk           *float64 `json:"avg_flood_risk_score,omitempty" yaml:"avg_flood_risk_score,omitempty"`
	TotalPopulationDensity *float64 `json:"total_population_density_mean_per_km2,omitempty" yaml:"total_population_density_mean_per_km2,omitempty"`
	AvgGreenspacePriority  *float64 `json:"avg_greenspace_priority,omitempty" yaml:"avg_greenspace_priority,omitempty"`
	AvgAODMean             *float64 `json:"avg_aod_mean,omitempty" yaml:"avg_aod_mean,omitempty"`
	AvgPrecipTotal         *float64 `json:"avg_precip_total_mean_mm,omitempty" yaml:"avg_precip_total_mean_mm,omitempty"`
}

// Aggregate sums the headline statistics of features. Missing or null values
// count as 0 and averages divide by the tile count.
func Aggregate(features []*Feature) Aggregated {
	n := len(features)
	if n == 0 {
		return Aggregated{}
	}

	var ndvi, lst, flood, pop, green, aod, precip float64
	for _, f := range features {
		ndvi += orZero(f, model.StatNDVIMean)
		lst += orZero(f, model.StatLSTCelsius)
		flood += orZero(f, model.StatFloodRisk)
		pop += orZero(f, model.StatPopulationDensity)
		green += orZero(f, "greenspace_priority")
		aod += orZero(f, model.StatAODMean)
		precip += orZero(f, model.StatPrecipitation)
	}

	total := float64(n)
	return Aggregated{
		Count:                  n,
		AvgNDVIMean:            model.Float(ndvi / total),
		AvgLSTMeanCelsius:      model.Float(lst / total),
		AvgFloodRisk:           model.Float(flood / total),
		TotalPopulationDensity: model.Float(pop),
		AvgGreenspacePriority:  model.Float(green / total),
		AvgAODMean:             model.Float(aod / total),
		AvgPrecipTotal:         model.Float(precip / total),
	}
}

func orZero(f *Feature, key string) float64 {
	v, _ := f.number(key)
	return v
}

// AreaBestUse labels an aggregated area for the advisor.
const AreaBestUse = "Mixed Use Area"

// AreaProfile maps an aggregate onto the per-tile field names the advisor
// prompt expects. Fields an aggregate cannot provide are null.
func AreaProfile(agg Aggregated) map[string]any {
	id := "area with " + strconv.Itoa(agg.Count) + " tiles"
	if agg.Count == 1 {
		id = "single tile area"
	}
	return map[string]any{
		PropTileID:                  id,
		model.StatNDVIMean:          agg.AvgNDVIMean,
		model.StatPctGreen:          nil,
		model.StatLSTCelsius:        agg.AvgLSTMeanCelsius,
		model.StatAODMean:           agg.AvgAODMean,
		model.StatElevation:         nil,
		model.StatPrecipitation:     agg.AvgPrecipTotal,
		model.StatWaterOccurrence:   nil,
		model.StatFloodRisk:         agg.AvgFloodRisk,
		model.StatNightlightIndex:   nil,
		model.StatPopulationDensity: agg.TotalPopulationDensity,
		"greenspace_priority":       agg.AvgGreenspacePriority,
		"industrial_suitability":    nil,
		"residential_suitability":   nil,
		"best_use":                  AreaBestUse,
	}
}
