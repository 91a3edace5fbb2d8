package serve

import (
	"context"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is the resource service name reported on every span.
const ServiceName = "kgraph"

// NewTracerProvider creates a TracerProvider tagged with the kgraph service
// resource. Spans go to exporter through a SimpleSpanProcessor, so they are
// exported as soon as they end. A nil exporter yields a provider that
// records spans without exporting them.
func NewTracerProvider(exporter sdktrace.SpanExporter, version string, logger *slog.Logger) *sdktrace.TracerProvider {
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)),
	}
	if version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersionKey.String(version)))
	}

	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	}

	return sdktrace.NewTracerProvider(opts...)
}

// CreateParentContext creates a context with a parent SpanContext from
// hex-encoded traceID and parentSpanID strings.
//
// Retrieve requests may carry trace_id and parent_span_id so that server
// spans join the caller's trace.
//
// Returns a context with the parent span context injected, or the original
// context if the IDs cannot be decoded.
func CreateParentContext(ctx context.Context, traceID, parentSpanID string) context.Context {
	if traceID == "" || parentSpanID == "" {
		return ctx
	}

	traceIDBytes, err := hex.DecodeString(traceID)
	if err != nil || len(traceIDBytes) != 16 {
		return ctx
	}

	spanIDBytes, err := hex.DecodeString(parentSpanID)
	if err != nil || len(spanIDBytes) != 8 {
		return ctx
	}

	var tid trace.TraceID
	copy(tid[:], traceIDBytes)

	var sid trace.SpanID
	copy(sid[:], spanIDBytes)

	parentSpanContext := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	return trace.ContextWithSpanContext(ctx, parentSpanContext)
}
