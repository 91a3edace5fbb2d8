// Package registry announces running kgraph retriever servers in etcd so
// clients can discover them.
//
// Each server registers a ServiceInfo under
// /{namespace}/{name}/{instance-id}, bound to an etcd lease that the client
// keeps alive. A crashed server disappears once its lease expires; a clean
// shutdown revokes the lease immediately.
package registry

import (
	"context"
	"time"
)

// ServiceInfo describes a registered retriever server.
type ServiceInfo struct {
	// Name is the service name. Default: "kgraph".
	Name string `json:"name"`

	// InstanceID uniquely identifies this server process (typically a UUID).
	InstanceID string `json:"instance_id"`

	// Endpoint is the gRPC address, "host:port".
	Endpoint string `json:"endpoint"`

	// BuildID is the build of the graph the server was serving when it
	// registered. Empty when it started without an artifact.
	BuildID string `json:"build_id,omitempty"`

	// Metadata carries free-form attributes such as the store backend.
	Metadata map[string]string `json:"metadata,omitempty"`

	// StartedAt is when the server started.
	StartedAt time.Time `json:"started_at"`
}

// Registry defines service registration and discovery.
//
// Implementations must be safe for concurrent use.
type Registry interface {
	// Register adds or refreshes the instance. Registering the same
	// InstanceID again replaces the entry and its lease.
	Register(ctx context.Context, info ServiceInfo) error

	// Deregister removes the instance. Unknown instances are a no-op.
	Deregister(ctx context.Context, info ServiceInfo) error

	// Discover returns every registered instance of name, in arbitrary order.
	Discover(ctx context.Context, name string) ([]ServiceInfo, error)

	// Close releases resources and stops keepalives.
	Close() error
}

// Defaults for Config.
const (
	DefaultNamespace = "kgraph"
	DefaultName      = "kgraph"
	DefaultTTL       = 30
)

// Config holds registry connection configuration. Registration is disabled
// when Endpoints is empty.
type Config struct {
	// Endpoints is the list of etcd endpoints.
	// Format: ["host1:2379", "host2:2379"]
	Endpoints []string `yaml:"endpoints"`

	// Namespace prefixes every key. Default: "kgraph".
	Namespace string `yaml:"namespace"`

	// TTL is the lease time-to-live in seconds. Default: 30.
	TTL int `yaml:"ttl"`

	// DialTimeout bounds connection establishment. Default: 5 seconds.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Enabled reports whether any endpoint is configured.
func (c Config) Enabled() bool { return len(c.Endpoints) > 0 }
