package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landuse-cli/internal/aoi"
	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/suitability"
	"github.com/sells-group/landuse-cli/internal/tiles"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Score a tile grid and summarize an area",
	Long: `Score every tile of a GeoJSON FeatureCollection, optionally select the
tiles intersecting a bbox, and print the area aggregate.

Examples:
  tiles --in tiles.geojson
  tiles --in tiles.geojson --bbox 72.55,22.95,72.6,23.0 --xlsx area.xlsx
  tiles --in tiles.geojson --scored scored.geojson --format yaml`,
	RunE: runTiles,
}

func init() {
	f := tilesCmd.Flags()
	f.String("in", "tiles.geojson", "tile FeatureCollection; - for stdin")
	f.String("bbox", "", "select tiles intersecting minLon,minLat,maxLon,maxLat")
	f.String("xlsx", "", "write the selected tiles to this spreadsheet")
	f.String("scored", "", "write the scored FeatureCollection to this file")
	f.String("out", "", "aggregate output file (default stdout)")
	f.String("format", "table", "aggregate format: table, json or yaml")
	f.Bool("area-profile", false, "emit the advisor input for the area instead of the aggregate")

	rootCmd.AddCommand(tilesCmd)
}

func runTiles(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("tiles"); err != nil {
		return err
	}

	f := cmd.Flags()
	in, _ := f.GetString("in")
	bboxArg, _ := f.GetString("bbox")
	xlsxPath, _ := f.GetString("xlsx")
	scoredPath, _ := f.GetString("scored")
	out, _ := f.GetString("out")
	format, _ := f.GetString("format")
	areaProfile, _ := f.GetBool("area-profile")

	data, err := readInput(in)
	if err != nil {
		return err
	}
	fc, err := tiles.Parse(data)
	if err != nil {
		return err
	}

	scorer, err := suitability.NewValidated(cfg.Scoring)
	if err != nil {
		return err
	}
	if err := tiles.ScoreCollection(ctx, fc, scorer, cfg.Analysis.Concurrency); err != nil {
		return err
	}
	if scoredPath != "" {
		if err := writeOutputFile(scoredPath, fc, formatJSON); err != nil {
			return err
		}
	}

	selected := fc.Features
	if bboxArg != "" {
		bbox, err := aoi.ParseBBox(bboxArg)
		if err != nil {
			return err
		}
		selected = tiles.Select(fc, bbox)
		zap.L().Info("selected tiles", zap.Int("selected", len(selected)), zap.Int("total", len(fc.Features)))
	}

	if xlsxPath != "" {
		if err := tiles.SaveXLSX(xlsxPath, selected); err != nil {
			return err
		}
		zap.L().Info("saved tile spreadsheet", zap.String("path", xlsxPath))
	}

	agg := tiles.Aggregate(selected)
	var result any = agg
	if areaProfile {
		result = tiles.AreaProfile(agg)
	}
	if format == "table" && !areaProfile {
		printAggregate(os.Stdout, agg, selected)
		return nil
	}
	if format == "table" {
		format = formatJSON
	}
	return writeOutputFile(out, result, format)
}

func printAggregate(out io.Writer, agg tiles.Aggregated, selected []*tiles.Feature) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Tiles\t%d\n", agg.Count)
	if agg.Count > 0 {
		fmt.Fprintf(w, "Avg NDVI\t%s\n", formatStat(agg.AvgNDVIMean))
		fmt.Fprintf(w, "Avg LST (C)\t%s\n", formatStat(agg.AvgLSTMeanCelsius))
		fmt.Fprintf(w, "Avg flood risk\t%s\n", formatStat(agg.AvgFloodRisk))
		fmt.Fprintf(w, "Total population density\t%s\n", formatStat(agg.TotalPopulationDensity))
		fmt.Fprintf(w, "Avg greenspace priority\t%s\n", formatStat(agg.AvgGreenspacePriority))
		fmt.Fprintf(w, "Avg AOD\t%s\n", formatStat(agg.AvgAODMean))
		fmt.Fprintf(w, "Avg precip (mm)\t%s\n", formatStat(agg.AvgPrecipTotal))
	}

	counts := map[model.BestUse]int{}
	for _, t := range selected {
		if s, ok := t.Properties["best_use"].(string); ok {
			counts[model.BestUse(s)]++
		}
	}
	for _, bu := range []model.BestUse{model.BestUseGreenspace, model.BestUseResidential, model.BestUseIndustrial} {
		fmt.Fprintf(w, "%s tiles\t%d\n", bestUseLabel(bu), counts[bu])
	}
	_ = w.Flush()
}
