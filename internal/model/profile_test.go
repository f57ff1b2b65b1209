package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{name: "full year", start: "2022-01-01", end: "2022-12-31"},
		{name: "single day", start: "2022-06-01", end: "2022-06-01"},
		{name: "reversed", start: "2022-12-31", end: "2022-01-01", wantErr: true},
		{name: "bad start", start: "2022/01/01", end: "2022-12-31", wantErr: true},
		{name: "bad end", start: "2022-01-01", end: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := ParseWindow(tt.start, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidWindow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, w.StartDate())
			assert.Equal(t, tt.end, w.EndDate())
		})
	}
}

func TestStatsSetNonFinite(t *testing.T) {
	t.Parallel()

	s := Stats{}
	s.Set("a", math.NaN())
	s.Set("b", math.Inf(1))
	s.Set("c", 1.5)

	_, ok := s.Get("a")
	assert.False(t, ok)
	v, present := s["a"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Nil(t, s["b"])
	assert.InDelta(t, 1.5, s.Or("c", 0), 1e-12)
	assert.InDelta(t, 7.0, s.Or("missing", 7), 1e-12)
	assert.Equal(t, []string{"a", "b"}, s.Nulls())
}

func TestStatsClone(t *testing.T) {
	t.Parallel()

	s := Stats{}
	s.Set("x", 1)
	c := s.Clone()
	*c["x"] = 2

	assert.InDelta(t, 1.0, s.Or("x", 0), 1e-12)
	assert.InDelta(t, 2.0, c.Or("x", 0), 1e-12)
}

func TestProfileJSONFlat(t *testing.T) {
	t.Parallel()

	w, err := ParseWindow("2022-01-01", "2022-12-31")
	require.NoError(t, err)

	p := Profile{
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Window:      w,
		Geometry:    json.RawMessage(`{"type":"Point","coordinates":[72.5,23]}`),
		Stats:       Stats{},
		Attributes:  Attributes{AttrAODBand: "Optical_Depth_047"},
	}
	p.Stats.Set(StatNDVIMean, 0.25)
	p.Stats.SetNull(StatAODMean)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "2024-03-01T12:00:00Z", flat[KeyGeneratedAt])
	assert.Equal(t, map[string]any{"start": "2022-01-01", "end": "2022-12-31"}, flat[KeyAnalysisWindow])
	assert.InDelta(t, 0.25, flat[StatNDVIMean], 1e-12)
	assert.Contains(t, flat, StatAODMean)
	assert.Nil(t, flat[StatAODMean])
	assert.Equal(t, "Optical_Depth_047", flat[AttrAODBand])
	assert.NotContains(t, flat, KeySuitability)

	var decoded Profile
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, p.GeneratedAt.Equal(decoded.GeneratedAt))
	assert.Equal(t, p.Window, decoded.Window)
	assert.JSONEq(t, string(p.Geometry), string(decoded.Geometry))
	assert.Equal(t, p.Stats, decoded.Stats)
	assert.Equal(t, p.Attributes, decoded.Attributes)
	assert.Nil(t, decoded.Suitability)
}

func TestProfileUnmarshalWithSuitability(t *testing.T) {
	t.Parallel()

	in := `{
		"generated_at": "2024-01-02T03:04:05.123456+00:00",
		"analysis_window": {"start": "2022-01-01", "end": "2022-12-31"},
		"geometry": null,
		"pct_green": 0.4,
		"landcover_dominant_class": 50,
		"tags": ["ignored"],
		"suitability": {
			"greenspace_priority": 0.5,
			"industrial_suitability": 0.2,
			"residential_suitability": 0.3,
			"best_use": "greenspace"
		}
	}`

	var p Profile
	require.NoError(t, json.Unmarshal([]byte(in), &p))
	assert.Equal(t, 2024, p.GeneratedAt.Year())
	assert.Nil(t, p.Geometry)
	assert.InDelta(t, 0.4, p.Stats.Or(StatPctGreen, 0), 1e-12)
	assert.InDelta(t, 50.0, p.Stats.Or(StatLandcoverClass, 0), 1e-12)
	assert.NotContains(t, p.Stats, "tags")
	require.NotNil(t, p.Suitability)
	assert.Equal(t, BestUseGreenspace, p.Suitability.BestUse)
}

func TestProfileUnmarshalInvalidWindow(t *testing.T) {
	t.Parallel()

	var p Profile
	err := json.Unmarshal([]byte(`{"analysis_window":{"start":"2023-01-01","end":"2022-01-01"}}`), &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestWithSuitabilityDoesNotMutate(t *testing.T) {
	t.Parallel()

	p := Profile{Stats: Stats{}, Attributes: Attributes{}}
	p.Stats.Set(StatPctGreen, 0.1)

	scored := p.WithSuitability(Suitability{BestUse: BestUseResidential})
	require.NotNil(t, scored.Suitability)
	assert.Nil(t, p.Suitability)

	scored.Stats.Set(StatPctGreen, 0.9)
	assert.InDelta(t, 0.1, p.Stats.Or(StatPctGreen, 0), 1e-12)
}

func TestBestUseValid(t *testing.T) {
	t.Parallel()

	assert.True(t, BestUseGreenspace.Valid())
	assert.True(t, BestUseResidential.Valid())
	assert.True(t, BestUseIndustrial.Valid())
	assert.False(t, BestUse("agriculture").Valid())
}
