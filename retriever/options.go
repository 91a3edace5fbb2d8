package retriever

import (
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/kgraph"
)

// Defaults for Config.
const (
	DefaultTopK  = 5
	DefaultDepth = 3
)

// Config holds the retrieval knobs.
type Config struct {
	// TopK is the number of documents returned when Retrieve is called
	// with k <= 0. Default: 5
	TopK int `yaml:"top_k"`

	// Depth is the maximum number of hops traversal follows from a seed.
	// Default: 3
	Depth int `yaml:"traversal_depth"`

	// SemanticFallback must stay false. Retrieval is graph-only; there is no
	// embedding search to fall back to, and enabling this is rejected.
	SemanticFallback bool `yaml:"semantic_fallback"`
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{TopK: DefaultTopK, Depth: DefaultDepth}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.TopK < 1 {
		errs = append(errs, fmt.Errorf("top_k must be at least 1, got %d", c.TopK))
	}
	if c.Depth < 0 {
		errs = append(errs, fmt.Errorf("traversal_depth cannot be negative, got %d", c.Depth))
	}
	if c.SemanticFallback {
		errs = append(errs, errors.New("semantic_fallback is not supported: retrieval is graph traversal only"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", kgraph.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

type options struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Retriever.
type Option func(*options)

// WithConfig replaces the whole retrieval configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithTopK sets the default number of documents.
func WithTopK(k int) Option {
	return func(o *options) { o.cfg.TopK = k }
}

// WithDepth sets the traversal hop limit.
func WithDepth(depth int) Option {
	return func(o *options) { o.cfg.Depth = depth }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer for retrieval spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

func newOptions(opts []Option) (options, error) {
	o := options{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		tracer: tracer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return o, kgraph.NewConfigurationError("retriever.New", err)
	}
	return o, nil
}
