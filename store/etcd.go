package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/zero-day-ai/kgraph"
)

// EtcdOptions configures the etcd connection.
type EtcdOptions struct {
	// Endpoints is the list of etcd endpoints.
	// Format: ["host1:2379", "host2:2379"]
	Endpoints []string `yaml:"endpoints"`

	// DialTimeout bounds connection establishment. Default: 5 seconds.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Username and Password enable etcd authentication when set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// TLS enables mutual TLS when set.
	TLS *TLSFiles `yaml:"tls"`
}

// EtcdStore keeps the artifact under a single etcd key. etcd rejects
// requests over its configured size limit (1.5 MiB by default), which
// bounds the knowledge base size this backend can hold.
type EtcdStore struct {
	client *clientv3.Client
	key    string
}

// NewEtcdStore connects to etcd and probes it with a read of the artifact key.
func NewEtcdStore(ctx context.Context, opts EtcdOptions, key string) (*EtcdStore, error) {
	if len(opts.Endpoints) == 0 {
		return nil, kgraph.NewConfigurationError("EtcdStore.Open", errors.New("etcd endpoints cannot be empty"))
	}
	if key == "" {
		key = DefaultKey
	}

	clientCfg := clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: connectTimeout(opts.DialTimeout),
		Username:    opts.Username,
		Password:    opts.Password,
	}

	if opts.TLS != nil {
		tlsConfig, err := opts.TLS.ClientConfig()
		if err != nil {
			return nil, kgraph.NewConfigurationError("EtcdStore.Open", fmt.Errorf("failed to configure TLS: %w", err))
		}
		clientCfg.TLS = tlsConfig
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, kgraph.NewStorageError("EtcdStore.Open", fmt.Errorf("failed to create etcd client: %w", err))
	}

	probeCtx, cancel := context.WithTimeout(ctx, clientCfg.DialTimeout)
	defer cancel()

	if _, err := cli.Get(probeCtx, key, clientv3.WithCountOnly()); err != nil {
		cli.Close()
		return nil, kgraph.NewStorageError("EtcdStore.Open", fmt.Errorf("etcd health check failed: %w", err))
	}

	return &EtcdStore{client: cli, key: key}, nil
}

// Location implements ArtifactStore.
func (s *EtcdStore) Location() string {
	return fmt.Sprintf("etcd://%s/%s", strings.Join(s.client.Endpoints(), ","), strings.TrimPrefix(s.key, "/"))
}

// Save implements ArtifactStore.
func (s *EtcdStore) Save(ctx context.Context, data []byte) error {
	if _, err := s.client.Put(ctx, s.key, string(data)); err != nil {
		return kgraph.NewStorageError("EtcdStore.Save", fmt.Errorf("failed to put %s: %w", s.key, err))
	}
	return nil
}

// Load implements ArtifactStore.
func (s *EtcdStore) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, kgraph.NewStorageError("EtcdStore.Load", fmt.Errorf("failed to get %s: %w", s.key, err))
	}
	if len(resp.Kvs) == 0 {
		return nil, kgraph.NewNotFoundError("EtcdStore.Load", kgraph.ErrArtifactNotFound).
			WithContext(map[string]any{"key": s.key})
	}
	return resp.Kvs[0].Value, nil
}

// Close implements ArtifactStore.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}
