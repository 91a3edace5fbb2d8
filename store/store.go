package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zero-day-ai/kgraph"
)

// ArtifactStore persists the single serialized graph artifact of a
// deployment. Save overwrites; there is no versioning.
type ArtifactStore interface {
	// Save replaces the stored artifact with data.
	Save(ctx context.Context, data []byte) error

	// Load returns the stored artifact, or an error wrapping
	// kgraph.ErrArtifactNotFound when nothing has been saved yet.
	Load(ctx context.Context) ([]byte, error)

	// Location describes where the artifact lives, for logs and build reports.
	Location() string

	// Close releases connections held by the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendEtcd   = "etcd"
	BackendBadger = "badger"
)

// DefaultArtifactPath is the well-known artifact location of the file backend.
const DefaultArtifactPath = "data/graphs/ecommerce_minirag_graph.json"

// DefaultKey is the key the key-value backends store the artifact under.
const DefaultKey = "kgraph/artifact"

// Config selects and configures a backend.
type Config struct {
	// Backend is one of file, redis, etcd or badger. Default: file.
	Backend string `yaml:"backend"`

	// Path is the artifact file of the file backend.
	Path string `yaml:"path"`

	// Key is the artifact key of the redis, etcd and badger backends.
	Key string `yaml:"key"`

	Redis  RedisOptions  `yaml:"redis"`
	Etcd   EtcdOptions   `yaml:"etcd"`
	Badger BadgerOptions `yaml:"badger"`
}

// DefaultConfig returns a file-backed configuration at DefaultArtifactPath.
func DefaultConfig() Config {
	return Config{
		Backend: BackendFile,
		Path:    DefaultArtifactPath,
		Key:     DefaultKey,
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "", BackendFile:
		if c.Path == "" {
			return fmt.Errorf("%w: store.path is required for the file backend", kgraph.ErrInvalidConfig)
		}
	case BackendRedis:
		if c.Key == "" {
			return fmt.Errorf("%w: store.key is required for the redis backend", kgraph.ErrInvalidConfig)
		}
	case BackendEtcd:
		if c.Key == "" {
			return fmt.Errorf("%w: store.key is required for the etcd backend", kgraph.ErrInvalidConfig)
		}
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("%w: store.etcd.endpoints cannot be empty", kgraph.ErrInvalidConfig)
		}
	case BackendBadger:
		if c.Key == "" {
			return fmt.Errorf("%w: store.key is required for the badger backend", kgraph.ErrInvalidConfig)
		}
		if !c.Badger.InMemory && c.Badger.Path == "" {
			return fmt.Errorf("%w: store.badger.path is required unless in_memory is set", kgraph.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", kgraph.ErrInvalidConfig, c.Backend)
	}
	return nil
}

// Open creates the store selected by cfg. Network backends verify
// connectivity before returning.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (ArtifactStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, kgraph.NewConfigurationError("store.Open", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis, cfg.Key)
	case BackendEtcd:
		return NewEtcdStore(ctx, cfg.Etcd, cfg.Key)
	case BackendBadger:
		opts := cfg.Badger
		if opts.Logger == nil {
			opts.Logger = logger
		}
		return NewBadgerStore(opts, cfg.Key)
	default:
		return NewFileStore(cfg.Path), nil
	}
}

func connectTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}
