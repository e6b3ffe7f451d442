// Package observability provides OpenTelemetry tracing for ration runs.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer every ration span comes from.
const TracerName = "github.com/efebarandurmaz/ration"

// DefaultServiceName is reported when the manifest leaves service_name empty.
const DefaultServiceName = "ration"

// TracingConfig selects where run spans are exported. With no OTLPEndpoint
// the global no-op provider stays in place and spans cost nothing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string  // host:port of an OTLP gRPC collector
	SampleRate     float64 // fraction of runs traced, clamped to [0, 1]
}

// TracerProvider holds the SDK provider installed by InitTracing, if any.
type TracerProvider struct {
	sdk *sdktrace.TracerProvider
}

// InitTracing installs a batching OTLP exporter as the global tracer
// provider. The caller must Shutdown the result to flush the run's spans.
func InitTracing(ctx context.Context, cfg TracingConfig) (*TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter for %s: %w", cfg.OTLPEndpoint, err)
	}
	res, err := Resource(cfg)
	if err != nil {
		return nil, err
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &TracerProvider{sdk: sdk}, nil
}

// Resource describes this process to the collector.
func Resource(cfg TracingConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	return res, nil
}

// Sampler traces every run at rate >= 1 and none at rate <= 0. In between,
// the decision follows the parent span when there is one.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes buffered spans. It is a no-op when tracing is disabled.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.sdk == nil {
		return nil
	}
	return tp.sdk.Shutdown(ctx)
}

// Pipeline stage names. Each becomes a span named "stage.<name>".
const (
	StageLoad      = "load"
	StageBuild     = "build"
	StageExtend    = "extend"
	StageSolve     = "solve"
	StageReport    = "report"
	StageVisualize = "visualize"
)

// StartRunSpan starts the root span of a pipeline run.
func StartRunSpan(ctx context.Context, runID, solverName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "ration.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("ration.run.id", runID),
			attribute.String("ration.solver", solverName),
		),
	)
}

// StartStageSpan starts a span for one pipeline stage.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("ration.stage", stage)),
	)
}

// RecordModelSize records the built model dimensions on a span.
func RecordModelSize(span trace.Span, nvars, nconstraints int, extensions []string) {
	span.SetAttributes(
		attribute.Int("model.nvars", nvars),
		attribute.Int("model.nconstraints", nconstraints),
		attribute.StringSlice("model.extensions", extensions),
	)
}

// StartSolveSpan starts a span for a solver invocation.
func StartSolveSpan(ctx context.Context, solverName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "solver.solve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ration.stage", StageSolve),
			attribute.String("solver.name", solverName),
		),
	)
}

// RecordSolveResult records the outcome of a solve on a span. A non-optimal
// termination is not a span error: it is a valid answer about the instance.
func RecordSolveResult(span trace.Span, termination string, objective *float64, duration time.Duration) {
	span.SetAttributes(
		attribute.String("solver.termination", termination),
		attribute.Int64("solver.duration_ms", duration.Milliseconds()),
	)
	if objective != nil {
		span.SetAttributes(attribute.Float64("solver.objective", *objective))
	}
}

// RecordOutput records a written output file on a span.
func RecordOutput(span trace.Span, path string, size int) {
	span.AddEvent("output.written", trace.WithAttributes(
		attribute.String("output.path", path),
		attribute.Int("output.bytes", size),
	))
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
