package profile

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/suitability"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testRequest(t *testing.T) Request {
	t.Helper()
	w, err := model.ParseWindow("2022-01-01", "2022-12-31")
	require.NoError(t, err)
	return Request{
		Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`),
		Window:   w,
	}
}

func stub(name string, stats map[string]float64, attrs map[string]string) Collector {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	return NewCollector(name, keys, func(_ context.Context, _ Request) (model.LayerResult, error) {
		res := model.NewLayerResult()
		for k, v := range stats {
			res.Stats.Set(k, v)
		}
		for k, v := range attrs {
			res.Attributes[k] = v
		}
		return res, nil
	})
}

func failing(name string, keys ...string) Collector {
	return NewCollector(name, keys, func(_ context.Context, _ Request) (model.LayerResult, error) {
		return model.LayerResult{}, errors.New("remote query failed")
	})
}

func exampleCollectors() []Collector {
	return []Collector{
		stub("population", map[string]float64{model.StatPopulationDensity: 9000, model.StatPopulationYear: 2020},
			map[string]string{model.AttrPopulationSource: "WorldPop/GP/100m/pop"}),
		stub("ndvi", map[string]float64{model.StatNDVIMean: -0.1, model.StatPctGreen: 0.1}, nil),
		stub("lst", map[string]float64{model.StatLSTCelsius: 40}, nil),
		stub("aod", map[string]float64{model.StatAODMean: 0.2}, nil),
		stub("flood", map[string]float64{model.StatFloodRisk: 0.1}, nil),
	}
}

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestAssemble_MergesCollectors(t *testing.T) {
	a := New(exampleCollectors(), WithClock(func() time.Time { return fixedTime }))
	req := testRequest(t)

	p, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, fixedTime, p.GeneratedAt)
	assert.Equal(t, req.Window, p.Window)
	assert.JSONEq(t, string(req.Geometry), string(p.Geometry))
	assert.Len(t, p.Stats, 7)
	assert.InDelta(t, 9000, p.Stats.Or(model.StatPopulationDensity, 0), 1e-9)
	assert.Equal(t, "WorldPop/GP/100m/pop", p.Attributes[model.AttrPopulationSource])
	assert.Nil(t, p.Suitability)
}

func TestAssemble_FailureRecordsNulls(t *testing.T) {
	log, logs := observed(zapcore.WarnLevel)
	collectors := []Collector{
		stub("population", map[string]float64{model.StatPopulationDensity: 1200}, nil),
		failing("ndvi", model.StatNDVIMean, model.StatPctGreen),
		stub("elevation", map[string]float64{model.StatElevation: 52}, nil),
	}

	p, err := New(collectors, WithLogger(log)).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)

	assert.InDelta(t, 1200, p.Stats.Or(model.StatPopulationDensity, 0), 1e-9)
	assert.InDelta(t, 52, p.Stats.Or(model.StatElevation, 0), 1e-9)
	v, ok := p.Stats[model.StatNDVIMean]
	assert.True(t, ok, "failed collector keys must be present")
	assert.Nil(t, v)
	assert.Equal(t, []string{model.StatNDVIMean, model.StatPctGreen}, p.Stats.Nulls())

	warns := logs.FilterMessage("collector failed; recording nulls").All()
	require.Len(t, warns, 1)
	assert.Equal(t, "ndvi", warns[0].ContextMap()["collector"])
}

func TestAssemble_PartialResultKept(t *testing.T) {
	partial := NewCollector("ndvi", []string{model.StatNDVIMean, model.StatPctGreen}, func(_ context.Context, _ Request) (model.LayerResult, error) {
		res := model.NewLayerResult()
		res.Stats.Set(model.StatNDVIMean, 0.25)
		return res, errors.New("count query failed")
	})

	p, err := New([]Collector{partial}).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p.Stats.Or(model.StatNDVIMean, 0), 1e-12)
	assert.Equal(t, []string{model.StatPctGreen}, p.Stats.Nulls())
}

func TestAssemble_MissingDeclaredKeyIsNull(t *testing.T) {
	c := NewCollector("aod", []string{model.StatAODMean}, func(_ context.Context, _ Request) (model.LayerResult, error) {
		return model.NewLayerResult(), nil
	})
	p, err := New([]Collector{c}).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	v, ok := p.Stats[model.StatAODMean]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestAssemble_PanicIsFailure(t *testing.T) {
	c := NewCollector("lst", []string{model.StatLSTCelsius}, func(_ context.Context, _ Request) (model.LayerResult, error) {
		panic("boom")
	})
	p, err := New([]Collector{c, stub("aod", map[string]float64{model.StatAODMean: 0.3}, nil)}).
		Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, []string{model.StatLSTCelsius}, p.Stats.Nulls())
	assert.InDelta(t, 0.3, p.Stats.Or(model.StatAODMean, 0), 1e-12)
}

func TestAssemble_LaterCollectorOverwrites(t *testing.T) {
	log, logs := observed(zapcore.DebugLevel)
	collectors := []Collector{
		stub("elevation", map[string]float64{model.StatElevation: 40}, nil),
		stub("water", map[string]float64{model.StatElevation: 45, model.StatWaterOccurrence: 12}, nil),
	}

	p, err := New(collectors, WithLogger(log)).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.InDelta(t, 45, p.Stats.Or(model.StatElevation, 0), 1e-12)
	assert.Equal(t, 1, logs.FilterMessage("statistic overwritten by later collector").Len())
}

func TestAssemble_FailedLaterCollectorNullsEarlierValue(t *testing.T) {
	collectors := []Collector{
		stub("elevation", map[string]float64{model.StatElevation: 40}, nil),
		failing("water", model.StatElevation),
	}
	p, err := New(collectors).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Nil(t, p.Stats[model.StatElevation])
}

func TestAssemble_ReservedKeysSkipped(t *testing.T) {
	log, logs := observed(zapcore.WarnLevel)
	c := stub("rogue", map[string]float64{model.KeyGeneratedAt: 1, model.StatAODMean: 0.1}, map[string]string{model.KeySuitability: "x"})

	p, err := New([]Collector{c}, WithLogger(log), WithClock(func() time.Time { return fixedTime })).
		Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	_, ok := p.Stats[model.KeyGeneratedAt]
	assert.False(t, ok)
	_, ok = p.Attributes[model.KeySuitability]
	assert.False(t, ok)
	assert.Equal(t, fixedTime, p.GeneratedAt)
	assert.GreaterOrEqual(t, logs.FilterMessage("collector produced reserved key; skipped").Len(), 2)
}

func TestAssemble_NonFiniteStoredAsNull(t *testing.T) {
	c := NewCollector("lst", []string{model.StatLSTCelsius}, func(_ context.Context, _ Request) (model.LayerResult, error) {
		f := 0.0
		nan := f / f
		res := model.NewLayerResult()
		res.Stats[model.StatLSTCelsius] = &nan
		return res, nil
	})
	p, err := New([]Collector{c}).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Nil(t, p.Stats[model.StatLSTCelsius])
}

func TestAssemble_ConcurrentMatchesSequential(t *testing.T) {
	clock := WithClock(func() time.Time { return fixedTime })
	req := testRequest(t)

	var inFlight, peak atomic.Int32
	slow := func(c Collector) Collector {
		return NewCollector(c.Name(), c.Keys(), func(ctx context.Context, r Request) (model.LayerResult, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return c.Collect(ctx, r)
		})
	}

	var collectors []Collector
	for _, c := range exampleCollectors() {
		collectors = append(collectors, slow(c))
	}
	collectors = append(collectors, stub("override", map[string]float64{model.StatAODMean: 0.9}, nil))

	seq, err := New(collectors, clock).Assemble(context.Background(), req)
	require.NoError(t, err)
	par, err := New(collectors, clock, WithConcurrency(3)).Assemble(context.Background(), req)
	require.NoError(t, err)

	seqJSON, err := json.Marshal(seq)
	require.NoError(t, err)
	parJSON, err := json.Marshal(par)
	require.NoError(t, err)
	assert.Equal(t, string(seqJSON), string(parJSON))
	assert.InDelta(t, 0.9, par.Stats.Or(model.StatAODMean, 0), 1e-12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestAssemble_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(exampleCollectors()).Assemble(ctx, testRequest(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssemble_ThenScore_Reproducible(t *testing.T) {
	scorer := suitability.NewDefault()
	var outputs []string
	for i := 0; i < 5; i++ {
		// Real clock: generated_at differs per run and is excluded below.
		p, err := New(exampleCollectors()).Assemble(context.Background(), testRequest(t))
		require.NoError(t, err)
		scored := p.WithSuitability(scorer.Score(p))

		flat := scored.Flatten()
		delete(flat, model.KeyGeneratedAt)
		b, err := json.Marshal(flat)
		require.NoError(t, err)
		outputs = append(outputs, string(b))
	}
	for _, o := range outputs[1:] {
		assert.Equal(t, outputs[0], o)
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(outputs[0]), &decoded))
	s := decoded[model.KeySuitability].(map[string]any)
	assert.Equal(t, "greenspace", s["best_use"])
	assert.InDelta(t, 0.9125, s["greenspace_priority"], 1e-9)
	assert.InDelta(t, 0.49, s["industrial_suitability"], 1e-9)
	assert.InDelta(t, 0.63, s["residential_suitability"], 1e-9)
}

func TestNewCollector(t *testing.T) {
	c := stub("elevation", map[string]float64{model.StatElevation: 1}, nil)
	assert.Equal(t, "elevation", c.Name())
	assert.Equal(t, []string{model.StatElevation}, c.Keys())
	assert.Len(t, New([]Collector{c}).Collectors(), 1)
}

func TestAssemble_LaterAttributeReplacesStat(t *testing.T) {
	collectors := []Collector{
		stub("aod", map[string]float64{model.AttrAODBand: 0.47}, nil),
		stub("aod_band", nil, map[string]string{model.AttrAODBand: "Optical_Depth_047"}),
	}

	p, err := New(collectors).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	_, ok := p.Stats[model.AttrAODBand]
	assert.False(t, ok)
	assert.Equal(t, "Optical_Depth_047", p.Flatten()[model.AttrAODBand])
}

func TestAssemble_LaterStatReplacesAttribute(t *testing.T) {
	collectors := []Collector{
		stub("precipitation", nil, map[string]string{model.StatPrecipitation: "n/a"}),
		stub("water", map[string]float64{model.StatPrecipitation: 800}, nil),
	}

	p, err := New(collectors).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	_, ok := p.Attributes[model.StatPrecipitation]
	assert.False(t, ok)
	assert.InDelta(t, 800, p.Flatten()[model.StatPrecipitation], 1e-12)
}

func TestAssemble_FailedLaterCollectorReplacesAttribute(t *testing.T) {
	collectors := []Collector{
		stub("aod", nil, map[string]string{model.AttrAODBand: "AOD_550"}),
		failing("rogue", model.AttrAODBand),
	}

	p, err := New(collectors).Assemble(context.Background(), testRequest(t))
	require.NoError(t, err)
	_, ok := p.Attributes[model.AttrAODBand]
	assert.False(t, ok)
	flat := p.Flatten()
	assert.Contains(t, flat, model.AttrAODBand)
	assert.Nil(t, flat[model.AttrAODBand])
}
