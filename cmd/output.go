package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/landuse-cli/internal/model"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeOutput encodes v as indented JSON or YAML. YAML goes through the JSON
// form so custom marshalers and field names carry over.
func writeOutput(w io.Writer, v any, format string) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "output: encode json")
	}

	switch strings.ToLower(format) {
	case "", formatJSON:
		b = append(b, '\n')
		_, err = w.Write(b)
		return eris.Wrap(err, "output: write")
	case formatYAML:
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return eris.Wrap(err, "output: decode json")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "output: encode yaml")
		}
		return eris.Wrap(enc.Close(), "output: flush yaml")
	default:
		return eris.Errorf("output: unknown format %q (want json or yaml)", format)
	}
}

// writeOutputFile writes v to path, or to stdout when path is empty.
func writeOutputFile(path string, v any, format string) error {
	if path == "" {
		return writeOutput(os.Stdout, v, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	if err := writeOutput(f, v, format); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "output: close %s", path)
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return b, eris.Wrap(err, "input: read stdin")
	}
	b, err := os.ReadFile(path)
	return b, eris.Wrapf(err, "input: read %s", path)
}

var titleCaser = cases.Title(language.English)

// bestUseLabel renders a best-use value for humans, e.g. "Greenspace".
func bestUseLabel(b model.BestUse) string {
	return titleCaser.String(string(b))
}

// headlineStats are printed by the profile summary, in order.
var headlineStats = []struct {
	key   string
	label string
}{
	{model.StatPopulationDensity, "Population density (mean, /km2)"},
	{model.StatNDVIMean, "NDVI mean"},
	{model.StatPctGreen, "Pct green"},
	{model.StatLSTCelsius, "LST (C)"},
	{model.StatAODMean, "AOD (mean)"},
	{model.StatElevation, "Elevation (m mean)"},
	{model.StatPrecipitation, "Precip total (mm mean)"},
	{model.StatFloodRisk, "Flood risk score (0..1)"},
}

func printProfileSummary(out io.Writer, p model.Profile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATISTIC\tVALUE")
	for _, h := range headlineStats {
		fmt.Fprintf(w, "%s\t%s\n", h.label, formatStat(p.Stats.Ptr(h.key)))
	}
	if s := p.Suitability; s != nil {
		fmt.Fprintf(w, "Greenspace priority\t%.4f\n", s.GreenspacePriority)
		fmt.Fprintf(w, "Industrial suitability\t%.4f\n", s.IndustrialSuitability)
		fmt.Fprintf(w, "Residential suitability\t%.4f\n", s.ResidentialSuitability)
		fmt.Fprintf(w, "Best use\t%s\n", bestUseLabel(s.BestUse))
	}
	_ = w.Flush()
}

func formatStat(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.4f", *v)
}
