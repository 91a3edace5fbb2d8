package serve

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogSpanExporter implements the OpenTelemetry SpanExporter interface by
// writing each finished span as one structured log record. It gives the
// CLI span visibility without a collector.
type LogSpanExporter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSpanExporter creates an exporter logging at level.
func NewLogSpanExporter(logger *slog.Logger, level slog.Level) *LogSpanExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSpanExporter{logger: logger, level: level}
}

// ExportSpans logs a batch of spans. It never fails.
func (e *LogSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		e.logger.LogAttrs(ctx, e.level, "span", spanAttrs(span)...)
	}
	return nil
}

// Shutdown is a no-op; the logger is owned by the caller.
func (e *LogSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

func spanAttrs(span sdktrace.ReadOnlySpan) []slog.Attr {
	sc := span.SpanContext()

	out := []slog.Attr{
		slog.String("name", span.Name()),
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
		slog.Duration("duration", span.EndTime().Sub(span.StartTime())),
		slog.String("status", statusString(span.Status())),
	}
	if span.Parent().IsValid() {
		out = append(out, slog.String("parent_span_id", span.Parent().SpanID().String()))
	}
	if attrs := span.Attributes(); len(attrs) > 0 {
		out = append(out, slog.Any("attributes", attributesToMap(attrs)))
	}
	if events := span.Events(); len(events) > 0 {
		names := make([]string, 0, len(events))
		for _, ev := range events {
			names = append(names, ev.Name)
		}
		out = append(out, slog.Any("events", names))
	}
	return out
}

func statusString(status sdktrace.Status) string {
	switch status.Code {
	case codes.Ok:
		return "ok"
	case codes.Error:
		if status.Description != "" {
			return "error: " + status.Description
		}
		return "error"
	default:
		return "unset"
	}
}

// attributesToMap flattens span attributes. Slices are rendered with
// their string form.
func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		switch attr.Value.Type() {
		case attribute.BOOL:
			m[string(attr.Key)] = attr.Value.AsBool()
		case attribute.INT64:
			m[string(attr.Key)] = attr.Value.AsInt64()
		case attribute.FLOAT64:
			m[string(attr.Key)] = attr.Value.AsFloat64()
		default:
			m[string(attr.Key)] = attr.Value.Emit()
		}
	}
	return m
}
