// Package aoi loads the area of interest an analysis runs over.
package aoi

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// BBox is a lon/lat rectangle: minLon, minLat, maxLon, maxLat.
type BBox [4]float64

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, eris.Errorf("aoi: bbox %q must have 4 comma-separated values", s)
	}
	var b BBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, eris.Wrapf(err, "aoi: bbox value %q", p)
		}
		b[i] = v
	}
	if !b.Valid() {
		return BBox{}, eris.Errorf("aoi: bbox %q has min greater than max", s)
	}
	return b, nil
}

// BBoxFromSlice converts a configured []float64 bbox.
func BBoxFromSlice(v []float64) (BBox, error) {
	if len(v) != 4 {
		return BBox{}, eris.Errorf("aoi: bbox needs 4 values, got %d", len(v))
	}
	b := BBox{v[0], v[1], v[2], v[3]}
	if !b.Valid() {
		return BBox{}, eris.New("aoi: bbox has min greater than max")
	}
	return b, nil
}

// Valid reports whether every value is finite and min <= max on both axes.
func (b BBox) Valid() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}

// Intersects reports whether b and o overlap, edges included.
func (b BBox) Intersects(o BBox) bool {
	return b[0] <= o[2] && o[0] <= b[2] && b[1] <= o[3] && o[1] <= b[3]
}

// Polygon returns b as a closed counterclockwise ring.
func (b BBox) Polygon() *geom.Polygon {
	minX, minY, maxX, maxY := b[0], b[1], b[2], b[3]
	return geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY,
		maxX, minY,
		maxX, maxY,
		minX, maxY,
		minX, minY,
	}, []int{10})
}

// BoundsOf returns the envelope of g.
func BoundsOf(g geom.T) (BBox, error) {
	if g == nil || len(g.FlatCoords()) == 0 {
		return BBox{}, eris.New("aoi: empty geometry")
	}
	bd := g.Bounds()
	return BBox{bd.Min(0), bd.Min(1), bd.Max(0), bd.Max(1)}, nil
}

// AOI is a loaded area of interest.
type AOI struct {
	Geometry geom.T
	GeoJSON  json.RawMessage
	Bounds   BBox
	Source   string
}

func newAOI(g geom.T, source string) (*AOI, error) {
	bounds, err := BoundsOf(g)
	if err != nil {
		return nil, err
	}
	raw, err := geojson.Marshal(g)
	if err != nil {
		return nil, eris.Wrap(err, "aoi: encode geometry")
	}
	return &AOI{Geometry: g, GeoJSON: raw, Bounds: bounds, Source: source}, nil
}

// FromBBox builds an AOI covering b.
func FromBBox(b BBox) (*AOI, error) {
	if !b.Valid() {
		return nil, eris.New("aoi: invalid bbox")
	}
	return newAOI(b.Polygon(), "bbox")
}

// Load reads an AOI from a GeoJSON (.geojson, .json) or ESRI shapefile (.shp).
func Load(path string) (*AOI, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "aoi: read %s", path)
		}
		a, err := ParseGeoJSON(data)
		if err != nil {
			return nil, eris.Wrapf(err, "aoi: load %s", path)
		}
		a.Source = path
		return a, nil
	case ".shp":
		return LoadShapefile(path)
	default:
		return nil, eris.Errorf("aoi: unsupported file type %q", filepath.Ext(path))
	}
}

// LoadOrDefault loads path, falling back to the rectangle def when path is
// empty or cannot be loaded.
func LoadOrDefault(path string, def BBox) (*AOI, error) {
	if path != "" {
		a, err := Load(path)
		if err == nil {
			zap.L().Info("aoi: loaded", zap.String("path", path), zap.Float64s("bounds", a.Bounds[:]))
			return a, nil
		}
		zap.L().Warn("aoi: failed to load; falling back to default bbox",
			zap.String("path", path), zap.Float64s("bbox", def[:]), zap.Error(err))
	}
	return FromBBox(def)
}

// ParseGeoJSON reads a Geometry, Feature or FeatureCollection. Polygons from
// several features are merged into one MultiPolygon.
func ParseGeoJSON(data []byte) (*AOI, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "aoi: decode geojson")
	}

	var geoms []geom.T
	switch head.Type {
	case "FeatureCollection":
		var fc struct {
			Features []feature `json:"features"`
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrap(err, "aoi: decode feature collection")
		}
		for i, f := range fc.Features {
			g, err := f.geometry()
			if err != nil {
				return nil, eris.Wrapf(err, "aoi: feature %d", i)
			}
			if g != nil {
				geoms = append(geoms, g)
			}
		}
	case "Feature":
		var f feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "aoi: decode feature")
		}
		g, err := f.geometry()
		if err != nil {
			return nil, err
		}
		if g != nil {
			geoms = append(geoms, g)
		}
	case "":
		return nil, eris.New("aoi: geojson has no type")
	default:
		g, err := DecodeGeometry(data)
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, g)
	}

	merged, err := mergePolygons(geoms)
	if err != nil {
		return nil, err
	}
	return newAOI(merged, "geojson")
}

type feature struct {
	Geometry json.RawMessage `json:"geometry"`
}

func (f feature) geometry() (geom.T, error) {
	if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
		return nil, nil
	}
	return DecodeGeometry(f.Geometry)
}

// DecodeGeometry decodes a GeoJSON geometry object.
func DecodeGeometry(raw json.RawMessage) (geom.T, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "aoi: decode geometry")
	}
	return g, nil
}

// mergePolygons combines polygonal geometries. A single geometry is returned
// unchanged.
func mergePolygons(geoms []geom.T) (geom.T, error) {
	if len(geoms) == 0 {
		return nil, eris.New("aoi: no geometries")
	}

	var polys []*geom.Polygon
	for _, g := range geoms {
		switch t := g.(type) {
		case *geom.Polygon:
			polys = append(polys, t)
		case *geom.MultiPolygon:
			for i := range t.NumPolygons() {
				polys = append(polys, t.Polygon(i))
			}
		default:
			return nil, eris.Errorf("aoi: unsupported geometry type %T", g)
		}
	}
	if len(geoms) == 1 {
		return geoms[0], nil
	}

	mp := geom.NewMultiPolygon(polys[0].Layout())
	for _, p := range polys {
		if err := mp.Push(p); err != nil {
			return nil, eris.Wrap(err, "aoi: merge polygons")
		}
	}
	return mp, nil
}
