package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/monitoring"
	"github.com/sells-group/landuse-cli/internal/suitability"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute suitability scores for an existing profile",
	Long: `Read a profile written by "profile", recompute its suitability block with
the configured scoring weights and write it back out.

Examples:
  score --in aoi_profile.json
  score --in - --format yaml < aoi_profile.json`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("in", "aoi_profile.json", "profile JSON file; - for stdin")
	f.String("out", "", "output file (default stdout)")
	f.String("format", formatJSON, "output format: json or yaml")
	f.Bool("summary", false, "print the summary table instead of the profile")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate("score"); err != nil {
		return err
	}
	scorer, err := suitability.NewValidated(cfg.Scoring)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	in, _ := f.GetString("in")
	out, _ := f.GetString("out")
	format, _ := f.GetString("format")
	summary, _ := f.GetBool("summary")

	data, err := readInput(in)
	if err != nil {
		return err
	}
	p, err := rescore(data, scorer)
	if err != nil {
		return err
	}

	if summary {
		printProfileSummary(os.Stdout, p)
		return nil
	}
	return writeOutputFile(out, p, format)
}

// rescore decodes a flat profile and replaces its suitability block.
func rescore(data []byte, scorer *suitability.Scorer) (model.Profile, error) {
	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Profile{}, eris.Wrap(err, "score: decode profile")
	}
	s := scorer.Score(p)
	monitoring.RecordBestUse(string(s.BestUse))
	return p.WithSuitability(s), nil
}
