package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/landuse-cli/internal/tiles"
)

func TestPrintAggregate(t *testing.T) {
	ndvi := 0.25
	selected := []*tiles.Feature{
		{Properties: map[string]any{"best_use": "greenspace"}},
		{Properties: map[string]any{"best_use": "greenspace"}},
		{Properties: map[string]any{"best_use": "industrial"}},
	}
	agg := tiles.Aggregated{Count: 3, AvgNDVIMean: &ndvi}

	var buf bytes.Buffer
	printAggregate(&buf, agg, selected)
	out := buf.String()

	assert.Regexp(t, `Tiles\s+3`, out)
	assert.Regexp(t, `Avg NDVI\s+0\.2500`, out)
	assert.Regexp(t, `Avg LST \(C\)\s+null`, out)
	assert.Regexp(t, `Greenspace tiles\s+2`, out)
	assert.Regexp(t, `Residential tiles\s+0`, out)
	assert.Regexp(t, `Industrial tiles\s+1`, out)
}

func TestPrintAggregate_Empty(t *testing.T) {
	var buf bytes.Buffer
	printAggregate(&buf, tiles.Aggregated{}, nil)
	assert.Regexp(t, `Tiles\s+0`, buf.String())
	assert.NotContains(t, buf.String(), "Avg NDVI")
}
