package retriever

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("kgraph.retriever")
	meter  = otel.Meter("kgraph.retriever")
)

var (
	retrieveLatency metric.Float64Histogram
	retrieveResults metric.Int64Histogram
	emptyResults    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		retrieveLatency, err = meter.Float64Histogram(
			"kgraph_retrieve_duration_seconds",
			metric.WithDescription("Duration of retrieve operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		retrieveResults, err = meter.Int64Histogram(
			"kgraph_retrieve_documents",
			metric.WithDescription("Number of documents returned per retrieve"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		emptyResults, err = meter.Int64Counter(
			"kgraph_retrieve_empty_total",
			metric.WithDescription("Retrieves that returned no documents"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordRetrieve(ctx context.Context, d time.Duration, results int, graphEmpty bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("graph_empty", graphEmpty))
	retrieveLatency.Record(ctx, d.Seconds(), attrs)
	retrieveResults.Record(ctx, int64(results), attrs)
	if results == 0 {
		emptyResults.Add(ctx, 1, attrs)
	}
}
