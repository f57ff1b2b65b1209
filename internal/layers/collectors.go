package layers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/profile"
	"github.com/sells-group/landuse-cli/internal/suitability"
	"github.com/sells-group/landuse-cli/pkg/geostats"
)

// Band preferences, most specific first.
var (
	aodBands    = []string{"Optical_Depth_047", "Optical_Depth_055", "AOD_047", "AOD_550"}
	precipBands = []string{"precipitationCal", "precipitation", "precipitationCal_1km"}
)

// Population reads mean population density from a yearly gridded product.
// The population year is fixed by the catalog, not the request window.
type Population struct{ base }

func (c *Population) Name() string { return NamePopulation }
func (c *Population) Keys() []string {
	return []string{model.StatPopulationDensity, model.StatPopulationYear}
}

func (c *Population) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	year := c.catalog.PopulationYear
	res.Stats.Set(model.StatPopulationYear, float64(year))
	res.Attributes[model.AttrPopulationSource] = c.catalog.Population

	src := geostats.Source{
		Dataset:   c.catalog.Population,
		Kind:      geostats.KindCollection,
		Start:     fmt.Sprintf("%04d-01-01", year),
		End:       fmt.Sprintf("%04d-01-01", year+1),
		Composite: geostats.CompositeMean,
	}
	v, err := c.reduce(ctx, req, src, geostats.ReducerMean, scalePopulation)
	if err != nil {
		return res, keyErr(model.StatPopulationDensity, err)
	}
	res.Stats[model.StatPopulationDensity] = v
	return res, nil
}

// NDVI reads the median Sentinel-2 vegetation index over the window and the
// share of pixels above the green threshold.
type NDVI struct{ base }

func (c *NDVI) Name() string   { return NameNDVI }
func (c *NDVI) Keys() []string { return []string{model.StatNDVIMean, model.StatPctGreen} }

func (c *NDVI) source(req profile.Request) geostats.Source {
	return dated(geostats.Source{
		Dataset:      c.catalog.Sentinel2,
		Kind:         geostats.KindCollection,
		FilterBounds: true,
		Filters: []geostats.Filter{
			{Property: "CLOUDY_PIXEL_PERCENTAGE", Op: "lt", Value: c.catalog.MaxCloudPct},
		},
		Bands:     []string{"B8", "B4"},
		Derive:    &geostats.Derive{Op: "normalized_difference", Bands: []string{"B8", "B4"}, Name: "NDVI"},
		Composite: geostats.CompositeMedian,
	}, req.Window)
}

func (c *NDVI) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	src := c.source(req)
	var errs []error

	mean, err := c.reduce(ctx, req, src, geostats.ReducerMean, scaleSentinel)
	if err != nil {
		errs = append(errs, keyErr(model.StatNDVIMean, err))
	} else {
		res.Stats[model.StatNDVIMean] = mean
	}

	masked := src
	masked.Mask = &geostats.Mask{Op: "gt", Value: c.catalog.NDVIGreenThreshold}
	green, err := c.reduce(ctx, req, masked, geostats.ReducerSum, scaleSentinel)
	if err != nil {
		errs = append(errs, keyErr(model.StatPctGreen, err))
		return res, errors.Join(errs...)
	}
	count, err := c.reduce(ctx, req, src, geostats.ReducerCount, scaleSentinel)
	if err != nil {
		errs = append(errs, keyErr(model.StatPctGreen, err))
		return res, errors.Join(errs...)
	}

	// An empty region has no defined green share.
	if green != nil && count != nil && *count != 0 {
		res.Stats.Set(model.StatPctGreen, *green / *count)
	} else {
		res.Stats.SetNull(model.StatPctGreen)
	}
	return res, errors.Join(errs...)
}

// LST reads MODIS daytime land-surface temperature and converts the raw
// scaled value to degrees Celsius.
type LST struct{ base }

// LST scale factor and Kelvin offset for LST_Day_1km.
const (
	lstScale  = 0.02
	kelvinToC = 273.15
)

func (c *LST) Name() string   { return NameLST }
func (c *LST) Keys() []string { return []string{model.StatLSTCelsius, model.StatLSTRaw} }

func (c *LST) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	src := dated(geostats.Source{
		Dataset:      c.catalog.ModisLST,
		Kind:         geostats.KindCollection,
		FilterBounds: true,
		Bands:        []string{"LST_Day_1km"},
		Composite:    geostats.CompositeMean,
	}, req.Window)

	raw, err := c.reduce(ctx, req, src, geostats.ReducerMean, scaleModis)
	if err != nil {
		return res, keyErr(model.StatLSTRaw, err)
	}
	res.Stats[model.StatLSTRaw] = raw
	if raw == nil {
		res.Stats.SetNull(model.StatLSTCelsius)
		return res, nil
	}
	res.Stats.Set(model.StatLSTCelsius, LSTCelsius(*raw))
	return res, nil
}

// LSTCelsius converts a raw LST_Day_1km value to degrees Celsius.
func LSTCelsius(raw float64) float64 {
	return float64(raw*lstScale) - kelvinToC
}

// AOD reads mean aerosol optical depth from the first suitable MAIAC band.
type AOD struct{ base }

func (c *AOD) Name() string   { return NameAOD }
func (c *AOD) Keys() []string { return []string{model.StatAODMean} }

func (c *AOD) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	src := dated(geostats.Source{
		Dataset:      c.catalog.MaiacAOD,
		Kind:         geostats.KindCollection,
		FilterBounds: true,
	}, req.Window)

	band, err := c.band(ctx, req, src, aodBands)
	if err != nil {
		return res, keyErr(model.StatAODMean, err)
	}
	if band == "" {
		res.Stats.SetNull(model.StatAODMean)
		return res, nil
	}
	res.Attributes[model.AttrAODBand] = band

	src.Bands = []string{band}
	src.Composite = geostats.CompositeMean
	v, err := c.reduce(ctx, req, src, geostats.ReducerMean, scaleModis)
	if err != nil {
		return res, keyErr(model.StatAODMean, err)
	}
	res.Stats[model.StatAODMean] = v
	return res, nil
}

func (b base) band(ctx context.Context, req profile.Request, src geostats.Source, preferred []string) (string, error) {
	names, err := b.reducer.BandNames(ctx, geostats.BandsRequest{Geometry: req.Geometry, Source: src})
	if err != nil {
		return "", err
	}
	return chooseBand(names, preferred), nil
}

// Elevation reads mean SRTM elevation in meters.
type Elevation struct{ base }

func (c *Elevation) Name() string   { return NameElevation }
func (c *Elevation) Keys() []string { return []string{model.StatElevation} }

func (c *Elevation) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	v, err := c.elevation(ctx, req)
	if err != nil {
		return res, keyErr(model.StatElevation, err)
	}
	res.Stats[model.StatElevation] = v
	return res, nil
}

func (b base) elevation(ctx context.Context, req profile.Request) (*float64, error) {
	src := geostats.Source{Dataset: b.catalog.SRTM, Kind: geostats.KindImage}
	return b.reduce(ctx, req, src, geostats.ReducerMean, scaleSRTM)
}

// Precipitation reads total precipitation over the window, averaged over the
// region, in millimeters.
type Precipitation struct{ base }

func (c *Precipitation) Name() string   { return NamePrecipitation }
func (c *Precipitation) Keys() []string { return []string{model.StatPrecipitation} }

func (c *Precipitation) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	v, band, err := c.precipitation(ctx, req)
	if band != "" {
		res.Attributes[model.AttrPrecipBand] = band
	}
	if err != nil {
		return res, keyErr(model.StatPrecipitation, err)
	}
	res.Stats[model.StatPrecipitation] = v
	return res, nil
}

func (b base) precipitation(ctx context.Context, req profile.Request) (*float64, string, error) {
	src := dated(geostats.Source{
		Dataset:      b.catalog.GPMIMERG,
		Kind:         geostats.KindCollection,
		FilterBounds: true,
	}, req.Window)

	band, err := b.band(ctx, req, src, precipBands)
	if err != nil || band == "" {
		return nil, "", err
	}
	src.Bands = []string{band}
	src.Composite = geostats.CompositeSum
	v, err := b.reduce(ctx, req, src, geostats.ReducerMean, scaleModis)
	return v, band, err
}

// Landcover reads the dominant ESA WorldCover class.
type Landcover struct{ base }

func (c *Landcover) Name() string   { return NameLandcover }
func (c *Landcover) Keys() []string { return []string{model.StatLandcoverClass} }

func (c *Landcover) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	resp, err := c.reducer.Reduce(ctx, geostats.ReduceRequest{
		Geometry: req.Geometry,
		Source: geostats.Source{
			Dataset:   c.catalog.WorldCover,
			Kind:      geostats.KindCollection,
			Composite: geostats.CompositeFirst,
			Bands:     []string{"Map"},
		},
		Reducer:   geostats.ReducerHistogram,
		Scale:     scaleSentinel,
		MaxPixels: c.maxPixels(),
	})
	if err != nil {
		return res, keyErr(model.StatLandcoverClass, err)
	}

	var hist map[string]float64
	if b := resp.First(); b != nil {
		hist = b.Histogram
	}
	class, ok, err := DominantClass(hist)
	if err != nil {
		return res, keyErr(model.StatLandcoverClass, err)
	}
	if !ok {
		res.Stats.SetNull(model.StatLandcoverClass)
		return res, nil
	}
	res.Stats.Set(model.StatLandcoverClass, float64(class))
	return res, nil
}

// DominantClass returns the class code with the highest pixel count. Ties go
// to the lowest code. ok is false for an empty histogram.
func DominantClass(hist map[string]float64) (class int, ok bool, err error) {
	type bin struct {
		class int
		count float64
	}
	bins := make([]bin, 0, len(hist))
	for k, v := range hist {
		c, err := strconv.Atoi(k)
		if err != nil {
			return 0, false, eris.Wrapf(err, "layers: parse landcover class %q", k)
		}
		bins = append(bins, bin{class: c, count: v})
	}
	if len(bins) == 0 {
		return 0, false, nil
	}
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].count != bins[j].count {
			return bins[i].count > bins[j].count
		}
		return bins[i].class < bins[j].class
	})
	return bins[0].class, true, nil
}

// Water reads mean surface-water occurrence and derives the flood-risk proxy
// from occurrence, elevation and precipitation. Elevation and precipitation
// are re-queried so the collector stands alone.
type Water struct {
	base
	scorer *suitability.Scorer
}

func (c *Water) Name() string   { return NameWater }
func (c *Water) Keys() []string { return []string{model.StatWaterOccurrence, model.StatFloodRisk} }

func (c *Water) Collect(ctx context.Context, req profile.Request) (model.LayerResult, error) {
	res := model.NewLayerResult()
	var errs []error

	src := geostats.Source{Dataset: c.catalog.JRCGSW, Kind: geostats.KindImage, Bands: []string{"occurrence"}}
	occ, err := c.reduce(ctx, req, src, geostats.ReducerMean, scaleWater)
	if err != nil {
		errs = append(errs, keyErr(model.StatWaterOccurrence, err))
	}
	res.Stats[model.StatWaterOccurrence] = occ

	// Failed inputs are omitted from the proxy rather than failing it.
	elev, err := c.elevation(ctx, req)
	if err != nil {
		errs = append(errs, keyErr(model.StatElevation, err))
	}
	precip, _, err := c.precipitation(ctx, req)
	if err != nil {
		errs = append(errs, keyErr(model.StatPrecipitation, err))
	}

	scorer := c.scorer
	if scorer == nil {
		scorer = suitability.NewDefault()
	}
	res.Stats[model.StatFloodRisk] = scorer.FloodRisk(elev, precip, occ)

	return res, errors.Join(errs...)
}
