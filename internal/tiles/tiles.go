// Package tiles scores and aggregates gridded tile FeatureCollections, the
// per-tile form of an AOI profile.
package tiles

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/landuse-cli/internal/aoi"
	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/monitoring"
	"github.com/sells-group/landuse-cli/internal/suitability"
)

// PropTileID names the tile identifier property.
const PropTileID = "tile_id"

// Feature is one tile. Properties keep whatever the source carried; numeric
// and null values are read as statistics.
type Feature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// Collection is a GeoJSON FeatureCollection of tiles.
type Collection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// Parse decodes a tile FeatureCollection.
func Parse(data []byte) (*Collection, error) {
	var fc Collection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "tiles: decode collection")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("tiles: expected FeatureCollection, got %q", fc.Type)
	}
	for i, f := range fc.Features {
		if f == nil {
			return nil, eris.Errorf("tiles: feature %d is null", i)
		}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
	}
	return &fc, nil
}

// Load reads and parses a tile FeatureCollection file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tiles: read %s", path)
	}
	return Parse(data)
}

// TileID returns the tile_id property, falling back to the feature id.
func (f *Feature) TileID() string {
	if v, ok := f.Properties[PropTileID].(string); ok {
		return v
	}
	switch id := f.ID.(type) {
	case string:
		return id
	case float64:
		b, _ := json.Marshal(id)
		return string(b)
	}
	return ""
}

// Stats reads numeric and null properties as statistics.
func (f *Feature) Stats() model.Stats {
	s := model.Stats{}
	for k, v := range f.Properties {
		switch t := v.(type) {
		case nil:
			s.SetNull(k)
		case float64:
			s.Set(k, t)
		case json.Number:
			if n, err := t.Float64(); err == nil {
				s.Set(k, n)
			}
		}
	}
	return s
}

// Bounds returns the envelope of the tile geometry.
func (f *Feature) Bounds() (aoi.BBox, error) {
	if len(f.Geometry) == 0 || bytes.Equal(f.Geometry, []byte("null")) {
		return aoi.BBox{}, eris.New("tiles: feature has no geometry")
	}
	g, err := aoi.DecodeGeometry(f.Geometry)
	if err != nil {
		return aoi.BBox{}, err
	}
	return aoi.BoundsOf(g)
}

func (f *Feature) number(key string) (float64, bool) {
	v, ok := f.Properties[key].(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ScoreCollection computes suitability for every tile and writes the four
// suitability fields back into its properties. Up to concurrency tiles are
// scored at once.
func ScoreCollection(ctx context.Context, fc *Collection, scorer *suitability.Scorer, concurrency int) error {
	if scorer == nil {
		scorer = suitability.NewDefault()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, f := range fc.Features {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			applySuitability(f, scorer.ScoreStats(f.Stats()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "tiles: score collection")
	}

	counts := map[model.BestUse]int{}
	for _, f := range fc.Features {
		bu := model.BestUse(f.Properties["best_use"].(string))
		counts[bu]++
		monitoring.RecordBestUse(string(bu))
	}
	zap.L().Info("tiles: scored collection",
		zap.Int("tiles", len(fc.Features)),
		zap.Int(string(model.BestUseGreenspace), counts[model.BestUseGreenspace]),
		zap.Int(string(model.BestUseResidential), counts[model.BestUseResidential]),
		zap.Int(string(model.BestUseIndustrial), counts[model.BestUseIndustrial]),
	)
	return nil
}

func applySuitability(f *Feature, s model.Suitability) {
	f.Properties["greenspace_priority"] = s.GreenspacePriority
	f.Properties["industrial_suitability"] = s.IndustrialSuitability
	f.Properties["residential_suitability"] = s.ResidentialSuitability
	f.Properties["best_use"] = string(s.BestUse)
}

// Select returns the tiles whose bounds intersect bbox, in collection order.
// Tiles without a readable geometry are skipped.
func Select(fc *Collection, bbox aoi.BBox) []*Feature {
	var out []*Feature
	var skipped int
	for _, f := range fc.Features {
		b, err := f.Bounds()
		if err != nil {
			skipped++
			continue
		}
		if b.Intersects(bbox) {
			out = append(out, f)
		}
	}
	if skipped > 0 {
		zap.L().Debug("tiles: skipped tiles without geometry", zap.Int("skipped", skipped))
	}
	return out
}
