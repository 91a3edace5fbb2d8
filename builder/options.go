package builder

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Defaults applied by New.
const (
	// DefaultSimilarityThreshold is the Jaccard similarity a policy pair must
	// strictly exceed to be linked by a content_similar edge.
	DefaultSimilarityThreshold = 0.3

	// DefaultMentionStrength is the strength of every mentioned_in edge.
	DefaultMentionStrength = 0.6

	// DefaultPolicyConnectionStrength applies to declared policy connections
	// that carry no strength.
	DefaultPolicyConnectionStrength = 0.5

	// DefaultEntityConnectionStrength applies to declared entity connections
	// that carry no strength.
	DefaultEntityConnectionStrength = 0.5
)

type options struct {
	similarityThreshold float64
	mentionStrength     float64
	logger              *slog.Logger
	tracer              trace.Tracer
}

// Option configures a Builder.
type Option func(*options)

// WithSimilarityThreshold overrides DefaultSimilarityThreshold.
func WithSimilarityThreshold(t float64) Option {
	return func(o *options) { o.similarityThreshold = t }
}

// WithMentionStrength overrides DefaultMentionStrength.
func WithMentionStrength(s float64) Option {
	return func(o *options) { o.mentionStrength = s }
}

// WithLogger sets the logger for build progress and dropped references.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer for build spans. The default is the package
// tracer from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}
