package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/landuse-cli/internal/advisor"
	"github.com/sells-group/landuse-cli/internal/model"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Ask the configured LLM for planning recommendations",
	Long: `Send a profile (or any JSON object of metrics) to the advisor and print
the parsed recommendations. The provider is chosen by advisor.provider.

Examples:
  advise --in aoi_profile.json
  advise --in tile.json --user-type "parks department"`,
	RunE: runAdvise,
}

func init() {
	f := adviseCmd.Flags()
	f.String("in", "aoi_profile.json", "profile or metrics JSON file; - for stdin")
	f.String("user-type", "", "persona the advice is tailored to (default from config)")
	f.Bool("keep-geometry", false, "include the profile geometry in the prompt")
	f.String("out", "", "output file (default stdout)")
	f.String("format", formatJSON, "output format: json or yaml")

	rootCmd.AddCommand(adviseCmd)
}

func runAdvise(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("advise"); err != nil {
		return err
	}

	f := cmd.Flags()
	in, _ := f.GetString("in")
	userType, _ := f.GetString("user-type")
	keepGeom, _ := f.GetBool("keep-geometry")
	out, _ := f.GetString("out")
	format, _ := f.GetString("format")

	raw, err := readInput(in)
	if err != nil {
		return err
	}
	data, err := adviceInput(raw, keepGeom)
	if err != nil {
		return err
	}

	adv, err := advisor.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	result, err := adv.Advise(ctx, data, userType)
	if err != nil {
		return err
	}
	return writeOutputFile(out, result, format)
}

// adviceInput decodes the metrics object handed to the advisor. The geometry
// is dropped unless keepGeometry is set.
func adviceInput(raw []byte, keepGeometry bool) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrap(err, "advise: input must be a JSON object")
	}
	if data == nil {
		return nil, eris.New("advise: input must be a JSON object")
	}
	if !keepGeometry {
		delete(data, model.KeyGeometry)
	}
	return data, nil
}
