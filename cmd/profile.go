package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landuse-cli/internal/aoi"
	"github.com/sells-group/landuse-cli/internal/config"
	"github.com/sells-group/landuse-cli/internal/layers"
	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/monitoring"
	"github.com/sells-group/landuse-cli/internal/profile"
	"github.com/sells-group/landuse-cli/internal/resilience"
	"github.com/sells-group/landuse-cli/internal/suitability"
	"github.com/sells-group/landuse-cli/pkg/geostats"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build and score an AOI statistics profile",
	Long: `Collect remote-sensing statistics for an area of interest and score it.

The AOI is read from a GeoJSON or shapefile. When it is missing or cannot be
read, the configured default bbox is used instead.

Examples:
  # Profile an AOI for 2022
  profile --aoi aoi.geojson --out aoi_profile.json

  # Custom window, YAML, only the vegetation layers
  profile --aoi city.shp --start 2023-01-01 --end 2023-06-30 --layers ndvi,lst --format yaml`,
	RunE: runProfile,
}

func init() {
	f := profileCmd.Flags()
	f.String("aoi", "aoi.geojson", "AOI file (.geojson, .json or .shp)")
	f.String("start", "", "window start date YYYY-MM-DD (default from config)")
	f.String("end", "", "window end date YYYY-MM-DD, inclusive (default from config)")
	f.String("layers", "", "comma-separated collectors to run (default all): "+strings.Join(layers.Names, ","))
	f.Int("concurrency", 0, "collectors run at once (default from config)")
	f.String("out", "aoi_profile.json", "output file; - for stdout")
	f.String("format", formatJSON, "output format: json or yaml")
	f.Bool("quiet", false, "skip the summary table")

	rootCmd.AddCommand(profileCmd)
}

type profileOptions struct {
	AOIPath     string
	Start, End  string
	Layers      []string
	Concurrency int
}

func runProfile(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("profile"); err != nil {
		return err
	}

	f := cmd.Flags()
	opts := profileOptions{}
	opts.AOIPath, _ = f.GetString("aoi")
	opts.Start, _ = f.GetString("start")
	opts.End, _ = f.GetString("end")
	opts.Concurrency, _ = f.GetInt("concurrency")
	if s, _ := f.GetString("layers"); s != "" {
		opts.Layers = strings.Split(s, ",")
	}
	out, _ := f.GetString("out")
	format, _ := f.GetString("format")
	quiet, _ := f.GetBool("quiet")

	client := newGeostatsClient(cfg.Geostats)
	p, err := buildProfile(ctx, cfg, client, opts)
	if err != nil {
		return err
	}

	if out == "-" {
		out = ""
	}
	if err := writeOutputFile(out, p, format); err != nil {
		return err
	}
	if out != "" {
		zap.L().Info("saved AOI profile", zap.String("path", out))
	}
	if !quiet {
		printProfileSummary(os.Stderr, p)
	}
	return nil
}

func newGeostatsClient(gc config.GeostatsConfig) geostats.Client {
	return geostats.NewClient(gc.BaseURL, gc.Key,
		geostats.WithTimeout(time.Duration(gc.TimeoutSecs)*time.Second),
		geostats.WithRateLimit(gc.RatePerSec, 1),
		geostats.WithRetryPolicy(resilience.PolicyWithRetries(gc.MaxRetries)),
		geostats.WithCache(gc.CacheSize),
	)
}

// buildProfile loads the AOI, runs the collectors and attaches suitability.
func buildProfile(ctx context.Context, c *config.Config, r layers.Reducer, opts profileOptions) (model.Profile, error) {
	start, end := c.Analysis.StartDate, c.Analysis.EndDate
	if opts.Start != "" {
		start = opts.Start
	}
	if opts.End != "" {
		end = opts.End
	}
	window, err := model.ParseWindow(start, end)
	if err != nil {
		return model.Profile{}, err
	}

	def, err := aoi.BBoxFromSlice(c.Analysis.DefaultBBox)
	if err != nil {
		return model.Profile{}, eris.Wrap(err, "profile: default bbox")
	}
	area, err := aoi.LoadOrDefault(opts.AOIPath, def)
	if err != nil {
		return model.Profile{}, err
	}

	scorer, err := suitability.NewValidated(c.Scoring)
	if err != nil {
		return model.Profile{}, err
	}
	collectors, err := layers.Select(layers.Default(r, c.Layers, scorer), opts.Layers)
	if err != nil {
		return model.Profile{}, err
	}

	concurrency := c.Analysis.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	asm := profile.New(collectors, profile.WithConcurrency(concurrency))
	p, err := asm.Assemble(ctx, profile.Request{Geometry: area.GeoJSON, Window: window})
	if err != nil {
		return model.Profile{}, err
	}

	s := scorer.Score(p)
	monitoring.RecordBestUse(string(s.BestUse))
	return p.WithSuitability(s), nil
}
