// Package tracing wires OpenTelemetry spans around collectors and LLM calls.
package tracing

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	ServiceName = "landuse-cli"
	TracerName  = "github.com/sells-group/landuse-cli"
)

// EndpointEnv names the variable holding the OTLP gRPC collector address.
const EndpointEnv = "OTLP_ENDPOINT"

var tracer trace.Tracer = noop.NewTracerProvider().Tracer(TracerName)

// Init installs an OTLP exporter when OTLP_ENDPOINT is set and a no-op
// tracer otherwise. The returned function flushes and stops the exporter.
func Init(ctx context.Context, version string) (func(context.Context) error, error) {
	endpoint := os.Getenv(EndpointEnv)
	if endpoint == "" {
		tracer = noop.NewTracerProvider().Tracer(TracerName)
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	))
	if err != nil {
		return nil, eris.Wrap(err, "tracing: create otlp exporter")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, eris.Wrap(err, "tracing: build resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tracer = tp.Tracer(TracerName)

	zap.L().Info("tracing: otlp exporter enabled", zap.String("endpoint", endpoint))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// Start opens a span on the package tracer.
func Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// End closes span, recording err when non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
