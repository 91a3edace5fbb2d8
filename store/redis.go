package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zero-day-ai/kgraph"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string `yaml:"url"`

	// TLS configuration for secure connections.
	TLS *tls.Config `yaml:"-"`

	// ConnectTimeout is the maximum time to wait for connection establishment.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReadTimeout is the maximum time to wait for read operations.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum time to wait for write operations.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RedisStore keeps the artifact under a single Redis string key.
type RedisStore struct {
	client *redis.Client
	key    string
	url    string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions, key string) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if key == "" {
		key = DefaultKey
	}
	opts.ConnectTimeout = connectTimeout(opts.ConnectTimeout)
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, kgraph.NewConfigurationError("RedisStore.Open", fmt.Errorf("failed to parse Redis URL: %w", err))
	}
	if opts.TLS != nil {
		redisOpts.TLSConfig = opts.TLS
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, kgraph.NewStorageError("RedisStore.Open", fmt.Errorf("failed to connect to Redis: %w", err))
	}

	return &RedisStore{client: client, key: key, url: opts.URL}, nil
}

// Location implements ArtifactStore.
func (s *RedisStore) Location() string {
	return fmt.Sprintf("%s#%s", s.url, s.key)
}

// Save implements ArtifactStore. The write and its Update announcement
// are sent as one MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	payload, err := json.Marshal(Update{Location: s.Location(), Size: len(data), SavedAt: time.Now().UTC()})
	if err != nil {
		return kgraph.NewInternalError("RedisStore.Save", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, data, 0)
		pipe.Publish(ctx, UpdatesChannel(s.key), payload)
		return nil
	})
	if err != nil {
		return kgraph.NewStorageError("RedisStore.Save", fmt.Errorf("failed to set %s: %w", s.key, err))
	}
	return nil
}

// Load implements ArtifactStore.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kgraph.NewNotFoundError("RedisStore.Load", kgraph.ErrArtifactNotFound).
				WithContext(map[string]any{"key": s.key})
		}
		return nil, kgraph.NewStorageError("RedisStore.Load", fmt.Errorf("failed to get %s: %w", s.key, err))
	}
	return data, nil
}

// Close implements ArtifactStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
