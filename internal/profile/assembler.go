// Package profile assembles the statistics of independent layer collectors
// into one AOI profile.
package profile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/landuse-cli/internal/model"
	"github.com/sells-group/landuse-cli/internal/monitoring"
	"github.com/sells-group/landuse-cli/internal/tracing"
)

// Request is the input handed to every collector.
type Request struct {
	Geometry json.RawMessage
	Window   model.AnalysisWindow
}

// Collector produces one or more named statistics for a request.
//
// Keys lists every statistic the collector may produce. Declared keys missing
// from the returned result are recorded as null, whether or not Collect
// failed; keys it did return are kept.
type Collector interface {
	Name() string
	Keys() []string
	Collect(ctx context.Context, req Request) (model.LayerResult, error)
}

type funcCollector struct {
	name string
	keys []string
	fn   func(ctx context.Context, req Request) (model.LayerResult, error)
}

// NewCollector adapts a function into a Collector.
func NewCollector(name string, keys []string, fn func(ctx context.Context, req Request) (model.LayerResult, error)) Collector {
	return &funcCollector{name: name, keys: keys, fn: fn}
}

func (c *funcCollector) Name() string   { return c.name }
func (c *funcCollector) Keys() []string { return c.keys }
func (c *funcCollector) Collect(ctx context.Context, req Request) (model.LayerResult, error) {
	return c.fn(ctx, req)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithConcurrency runs up to n collectors at once. Results are still merged
// in declaration order. Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n < 1 {
			n = 1
		}
		a.concurrency = n
	}
}

// WithClock overrides the source of generated_at.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// WithLogger overrides the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) {
		a.log = l
	}
}

// Assembler invokes collectors and merges their output.
type Assembler struct {
	collectors  []Collector
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

// New creates an Assembler over collectors. Order matters: when two
// collectors produce the same key the later one wins.
func New(collectors []Collector, opts ...Option) *Assembler {
	a := &Assembler{
		collectors:  collectors,
		concurrency: 1,
		now:         time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = zap.L()
	}
	a.log = a.log.With(zap.String("component", "profile.assembler"))
	return a
}

// Collectors returns the configured collectors in merge order.
func (a *Assembler) Collectors() []Collector {
	return a.collectors
}

type outcome struct {
	result   model.LayerResult
	err      error
	duration time.Duration
}

// Assemble runs every collector and returns the merged profile. A failing
// collector never aborts assembly; only a cancelled context does.
func (a *Assembler) Assemble(ctx context.Context, req Request) (model.Profile, error) {
	p := model.Profile{
		GeneratedAt: a.now().UTC(),
		Window:      req.Window,
		Geometry:    req.Geometry,
		Stats:       model.Stats{},
		Attributes:  model.Attributes{},
	}

	outcomes := make([]outcome, len(a.collectors))
	if a.concurrency <= 1 {
		for i, c := range a.collectors {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = a.run(ctx, c, req)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(a.concurrency)
		for i, c := range a.collectors {
			g.Go(func() error {
				outcomes[i] = a.run(ctx, c, req)
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return model.Profile{}, eris.Wrap(err, "profile: assemble")
	}

	owner := make(map[string]string)
	for i, c := range a.collectors {
		a.merge(&p, owner, c, outcomes[i])
	}

	monitoring.RecordNullStats(p.Stats.Nulls())
	a.log.Info("profile assembled",
		zap.Int("collectors", len(a.collectors)),
		zap.Int("stats", len(p.Stats)),
		zap.Strings("null_stats", p.Stats.Nulls()),
	)
	return p, nil
}

func (a *Assembler) run(ctx context.Context, c Collector, req Request) (out outcome) {
	ctx, span := tracing.Start(ctx, "profile.collect/"+c.Name())
	span.SetAttributes(attribute.String("collector", c.Name()))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.result = model.LayerResult{}
			out.err = eris.Errorf("profile: collector %s panicked: %v", c.Name(), r)
		}
		out.duration = time.Since(start)
		monitoring.RecordCollector(c.Name(), out.duration, out.err == nil)
		tracing.End(span, out.err)
	}()

	res, err := c.Collect(ctx, req)
	return outcome{result: res, err: err}
}

func (a *Assembler) merge(p *model.Profile, owner map[string]string, c Collector, o outcome) {
	name := c.Name()
	if o.err != nil {
		a.log.Warn("collector failed; recording nulls",
			zap.String("collector", name),
			zap.Strings("keys", c.Keys()),
			zap.Duration("duration", o.duration),
			zap.Error(o.err),
		)
	}

	set := func(key string, apply func()) {
		if model.IsReservedKey(key) {
			a.log.Warn("collector produced reserved key; skipped",
				zap.String("collector", name), zap.String("key", key))
			return
		}
		if prev, ok := owner[key]; ok && prev != name {
			a.log.Debug("statistic overwritten by later collector",
				zap.String("key", key), zap.String("previous", prev), zap.String("collector", name))
		}
		owner[key] = name
		apply()
	}

	// A key lives in one map only, so a later attribute replaces an earlier
	// statistic of the same name and vice versa.
	for k, v := range o.result.Stats {
		set(k, func() {
			delete(p.Attributes, k)
			if v == nil {
				p.Stats.SetNull(k)
				return
			}
			p.Stats.Set(k, *v)
		})
	}
	for k, v := range o.result.Attributes {
		set(k, func() {
			delete(p.Stats, k)
			p.Attributes[k] = v
		})
	}

	for _, k := range c.Keys() {
		if _, ok := o.result.Stats[k]; ok {
			continue
		}
		if _, ok := o.result.Attributes[k]; ok {
			continue
		}
		set(k, func() {
			delete(p.Attributes, k)
			p.Stats.SetNull(k)
		})
	}
}
