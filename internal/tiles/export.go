package tiles

import (
	"io"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/landuse-cli/internal/model"
)

// ExportColumns are the spreadsheet columns after tile_id, in order.
var ExportColumns = []string{
	model.StatNDVIMean,
	model.StatPctGreen,
	model.StatLSTCelsius,
	model.StatAODMean,
	model.StatElevation,
	model.StatPrecipitation,
	model.StatWaterOccurrence,
	model.StatFloodRisk,
	model.StatNightlightIndex,
	model.StatPopulationDensity,
	"greenspace_priority",
	"industrial_suitability",
	"residential_suitability",
	"best_use",
}

// BuildWorkbook lays tiles out as one row per tile on a "tiles" sheet.
// Missing values are left blank.
func BuildWorkbook(features []*Feature) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("tiles")
	if err != nil {
		return nil, eris.Wrap(err, "tiles: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range slices.Concat([]string{PropTileID}, ExportColumns) {
		header.AddCell().SetString(col)
	}

	for _, feat := range features {
		row := sheet.AddRow()
		row.AddCell().SetString(feat.TileID())
		for _, col := range ExportColumns {
			cell := row.AddCell()
			switch v := feat.Properties[col].(type) {
			case float64:
				cell.SetFloat(v)
			case string:
				cell.SetString(v)
			}
		}
	}
	return f, nil
}

// WriteXLSX writes the tile workbook to w.
func WriteXLSX(w io.Writer, features []*Feature) error {
	f, err := BuildWorkbook(features)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "tiles: write xlsx")
	}
	return nil
}

// SaveXLSX writes the tile workbook to path.
func SaveXLSX(path string, features []*Feature) error {
	f, err := BuildWorkbook(features)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "tiles: save %s", path)
	}
	return nil
}
