// Package layers implements the per-layer statistic collectors. Each one
// describes its remote-sensing query and reduces it through a Reducer.
package layers

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landuse-cli/internal/config"
	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/profile"
	"github.com/sells-group/landuse-cli/internal/suitability"
	"github.com/sells-group/landuse-cli/pkg/geostats"
)

// Reducer runs region reductions. geostats.Client satisfies it.
type Reducer interface {
	Reduce(ctx context.Context, req geostats.ReduceRequest) (*geostats.ReduceResponse, error)
	BandNames(ctx context.Context, req geostats.BandsRequest) ([]string, error)
}

// Reduction scales in meters.
const (
	scaleSentinel   = 10
	scaleSRTM       = 30
	scaleWater      = 30
	scalePopulation = 100
	scaleModis      = 1000
)

// Collector names, in default order.
const (
	NamePopulation    = "population"
	NameNDVI          = "ndvi"
	NameLST           = "lst"
	NameAOD           = "aod"
	NameElevation     = "elevation"
	NamePrecipitation = "precipitation"
	NameLandcover     = "landcover"
	NameWater         = "water"
)

// Names lists every collector name accepted by Select.
var Names = []string{
	NamePopulation, NameNDVI, NameLST, NameAOD,
	NameElevation, NamePrecipitation, NameLandcover, NameWater,
}

type base struct {
	reducer Reducer
	catalog config.LayersConfig
}

// Default returns the eight collectors in their canonical order: population,
// NDVI, LST, AOD, elevation, precipitation, land cover, then water and flood.
func Default(r Reducer, catalog config.LayersConfig, scorer *suitability.Scorer) []profile.Collector {
	b := base{reducer: r, catalog: catalog}
	return []profile.Collector{
		&Population{b},
		&NDVI{b},
		&LST{b},
		&AOD{b},
		&Elevation{b},
		&Precipitation{b},
		&Landcover{b},
		&Water{base: b, scorer: scorer},
	}
}

// Select filters collectors by name, keeping default order. An empty names
// list returns all of them.
func Select(collectors []profile.Collector, names []string) ([]profile.Collector, error) {
	if len(names) == 0 {
		return collectors, nil
	}
	for _, n := range names {
		if !slices.Contains(Names, n) {
			return nil, eris.Errorf("layers: unknown collector %q", n)
		}
	}
	var out []profile.Collector
	for _, c := range collectors {
		if slices.Contains(names, c.Name()) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b base) maxPixels() float64 {
	if b.catalog.MaxPixels > 0 {
		return b.catalog.MaxPixels
	}
	return 1e13
}

// dated scopes a collection source to the request window. The service treats
// End as exclusive, so the inclusive window end is advanced one day.
func dated(src geostats.Source, w model.AnalysisWindow) geostats.Source {
	src.Start = w.StartDate()
	src.End = w.End.AddDate(0, 0, 1).Format(model.DateLayout)
	return src
}

// reduce runs a reduction and returns the first band's value.
func (b base) reduce(ctx context.Context, req profile.Request, src geostats.Source, reducer string, scale float64) (*float64, error) {
	resp, err := b.reducer.Reduce(ctx, geostats.ReduceRequest{
		Geometry:  req.Geometry,
		Source:    src,
		Reducer:   reducer,
		Scale:     scale,
		MaxPixels: b.maxPixels(),
	})
	if err != nil {
		return nil, err
	}
	return model.FloatPtr(resp.FirstValue()), nil
}

// chooseBand returns the first preferred band present in available, else the
// first available band, else "".
func chooseBand(available, preferred []string) string {
	for _, p := range preferred {
		if slices.Contains(available, p) {
			return p
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}

// keyErr tags a sub-query failure with the statistic it left null.
func keyErr(key string, err error) error {
	return eris.Wrapf(err, "layers: %s", key)
}
