package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landuse-cli/internal/model"
)

type sample struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

func TestWriteOutput(t *testing.T) {
	quarter := 0.25
	v := sample{Name: "ndvi", Value: &quarter}

	tests := []struct {
		format string
		want   string
	}{
		{"", "{\n  \"name\": \"ndvi\",\n  \"value\": 0.25\n}\n"},
		{"json", "{\n  \"name\": \"ndvi\",\n  \"value\": 0.25\n}\n"},
		{"YAML", "name: ndvi\nvalue: 0.25\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeOutput(&buf, v, tt.format))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteOutput_NullInYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, sample{Name: "lst"}, formatYAML))
	assert.Equal(t, "name: lst\nvalue: null\n", buf.String())
}

func TestWriteOutput_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := writeOutput(&buf, sample{}, "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
	assert.Empty(t, buf.String())
}

func TestWriteOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeOutputFile(path, sample{Name: "aod"}, formatJSON))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"aod","value":null}`, string(b))

	err = writeOutputFile(filepath.Join(t.TempDir(), "missing", "out.json"), sample{}, formatJSON)
	assert.Error(t, err)
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	b, err := readInput(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	_, err = readInput(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestBestUseLabel(t *testing.T) {
	assert.Equal(t, "Greenspace", bestUseLabel(model.BestUseGreenspace))
	assert.Equal(t, "Residential", bestUseLabel(model.BestUseResidential))
	assert.Equal(t, "Industrial", bestUseLabel(model.BestUseIndustrial))
}

func TestPrintProfileSummary(t *testing.T) {
	p := model.Profile{Stats: model.Stats{}}
	p.Stats.Set(model.StatNDVIMean, 0.3)
	p.Stats.SetNull(model.StatLSTCelsius)
	p = p.WithSuitability(model.Suitability{GreenspacePriority: 0.5, BestUse: model.BestUseGreenspace})

	var buf bytes.Buffer
	printProfileSummary(&buf, p)
	out := buf.String()
	assert.Contains(t, out, "STATISTIC")
	assert.Regexp(t, `NDVI mean\s+0\.3000`, out)
	assert.Regexp(t, `LST \(C\)\s+null`, out)
	assert.Regexp(t, `Best use\s+Greenspace`, out)
}
