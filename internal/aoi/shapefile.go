package aoi

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads every polygon record of an ESRI shapefile into one AOI.
// Coordinates are taken as WGS84 lon/lat.
func LoadShapefile(path string) (*AOI, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "aoi: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var geoms []geom.T
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(p)
		if mp == nil {
			skipped++
			continue
		}
		geoms = append(geoms, mp)
	}
	if skipped > 0 {
		zap.L().Debug("aoi: skipped non-polygon shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}

	merged, err := mergePolygons(geoms)
	if err != nil {
		return nil, eris.Wrapf(err, "aoi: load %s", path)
	}
	return newAOI(merged, path)
}

// polygonToMultiPolygon converts a shapefile polygon. Clockwise rings start a
// new polygon; counterclockwise rings are holes of the polygon before them.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("aoi: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) > 0 && current != nil {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("aoi: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}
		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("aoi: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is positive for counterclockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return sum / 2
}
