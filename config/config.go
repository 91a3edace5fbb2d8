// Package config loads the kgraph configuration from a YAML file and
// KGRAPH_* environment variables.
//
// Precedence, lowest to highest: built-in defaults, the YAML file, the
// environment. Every section is optional.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/builder"
	"github.com/zero-day-ai/kgraph/registry"
	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/store"
)

// Defaults for the server and log sections.
const (
	DefaultDataDir         = "data"
	DefaultPort            = 50051
	DefaultGracefulTimeout = 30 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

// Config is the complete kgraph configuration.
type Config struct {
	// DataDir holds the knowledge base section files (policies.json,
	// entities.yaml, ...).
	DataDir string `yaml:"data_dir"`

	// KnowledgeFile, when set, names a single file carrying all sections
	// and takes precedence over DataDir.
	KnowledgeFile string `yaml:"knowledge_file"`

	Retrieval retriever.Config `yaml:"retrieval"`
	Builder   BuilderConfig    `yaml:"builder"`
	Store     store.Config     `yaml:"store"`
	Server    ServerConfig     `yaml:"server"`
	Registry  registry.Config  `yaml:"registry"`
	Log       LogConfig        `yaml:"log"`
}

// BuilderConfig tunes derived edges.
type BuilderConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MentionStrength     float64 `yaml:"mention_strength"`
}

// ServerConfig configures the gRPC server.
type ServerConfig struct {
	// Port is the TCP port. 0 picks a free port.
	Port int `yaml:"port"`

	// GracefulTimeout bounds shutdown before in-flight calls are cut off.
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		DataDir:   DefaultDataDir,
		Retrieval: retriever.DefaultConfig(),
		Builder: BuilderConfig{
			SimilarityThreshold: builder.DefaultSimilarityThreshold,
			MentionStrength:     builder.DefaultMentionStrength,
		},
		Store: store.DefaultConfig(),
		Server: ServerConfig{
			Port:            DefaultPort,
			GracefulTimeout: DefaultGracefulTimeout,
		},
		Registry: registry.Config{
			Namespace: registry.DefaultNamespace,
			TTL:       registry.DefaultTTL,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads path over the defaults, applies the environment and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, kgraph.NewConfigurationError("config.Load",
				fmt.Errorf("failed to read config file %s: %w", path, err))
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, kgraph.NewConfigurationError("config.Load",
				fmt.Errorf("failed to parse config file %s: %w", path, err))
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, kgraph.NewConfigurationError("config.Load", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, kgraph.NewConfigurationError("config.Load", err)
	}

	return cfg, nil
}

// Validate checks every section. All problems are reported together.
func (c Config) Validate() error {
	var errs []error

	if c.DataDir == "" && c.KnowledgeFile == "" {
		errs = append(errs, errors.New("one of data_dir or knowledge_file is required"))
	}
	if err := c.Retrieval.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retrieval: %w", err))
	}
	if t := c.Builder.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("builder.similarity_threshold must be within [0,1], got %v", t))
	}
	if s := c.Builder.MentionStrength; s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("builder.mention_strength must be within [0,1], got %v", s))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port))
	}
	if c.Server.GracefulTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.graceful_timeout cannot be negative, got %s", c.Server.GracefulTimeout))
	}
	if c.Registry.TTL < 0 {
		errs = append(errs, fmt.Errorf("registry.ttl cannot be negative, got %d", c.Registry.TTL))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	if errors.Is(err, kgraph.ErrInvalidConfig) {
		return err
	}
	return fmt.Errorf("%w: %w", kgraph.ErrInvalidConfig, err)
}

// KnowledgePath returns the file or directory the knowledge base is read
// from, and whether it is a single file.
func (c Config) KnowledgePath() (string, bool) {
	if c.KnowledgeFile != "" {
		return c.KnowledgeFile, true
	}
	return c.DataDir, false
}

// BuilderOptions converts the builder section into builder options.
func (c Config) BuilderOptions(logger *slog.Logger) []builder.Option {
	return []builder.Option{
		builder.WithSimilarityThreshold(c.Builder.SimilarityThreshold),
		builder.WithMentionStrength(c.Builder.MentionStrength),
		builder.WithLogger(logger),
	}
}

// RetrieverOptions converts the retrieval section into retriever options.
func (c Config) RetrieverOptions(logger *slog.Logger) []retriever.Option {
	return []retriever.Option{
		retriever.WithConfig(c.Retrieval),
		retriever.WithLogger(logger),
	}
}

// Logger builds a logger writing to w in the configured format and level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ArtifactDir is the directory holding the file-backed artifact. It is
// empty for other backends.
func (c Config) ArtifactDir() string {
	if b := strings.ToLower(c.Store.Backend); b != "" && b != store.BackendFile {
		return ""
	}
	return filepath.Dir(c.Store.Path)
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s)
	}
	return level, nil
}
