package serve

import (
	"log/slog"
	"net"
	"time"

	"github.com/zero-day-ai/kgraph/registry"
)

// Option is a functional option for configuring a Server.
// Options provide a flexible way to customize server behavior
// without requiring a large number of constructor parameters.
type Option func(*Config)

// WithPort sets the TCP port for the gRPC server.
// The port must be between 1 and 65535.
// Use port 0 to automatically select an available port.
//
// Example:
//
//	serve.NewServer(nil, serve.WithPort(8080))
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithGracefulShutdown sets the maximum duration to wait for active
// requests to complete during graceful shutdown.
// After this timeout, the server will force shutdown.
func WithGracefulShutdown(timeout time.Duration) Option {
	return func(c *Config) {
		c.GracefulTimeout = timeout
	}
}

// WithTLS enables TLS encryption for the gRPC server.
// Both certFile and keyFile must be valid paths to PEM-encoded files.
// If either path is empty, TLS will be disabled.
//
// Example:
//
//	serve.NewServer(nil, serve.WithTLS("/etc/certs/server.crt", "/etc/certs/server.key"))
func WithTLS(certFile, keyFile string) Option {
	return func(c *Config) {
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
	}
}

// WithListener serves on lis instead of opening a TCP port. Tests use it
// with an in-memory listener.
func WithListener(lis net.Listener) Option {
	return func(c *Config) {
		c.Listener = lis
	}
}

// WithRegistry enables automatic service registration with the provided registry.
// When configured, the server will:
//   - Register itself after the gRPC server starts
//   - Maintain its registration via lease keepalives
//   - Deregister during graceful shutdown
//
// Example:
//
//	reg, _ := registry.NewClient(ctx, cfg.Registry)
//	serve.NewServer(nil, serve.WithRegistry(reg))
func WithRegistry(reg registry.Registry) Option {
	return func(c *Config) {
		c.Registry = reg
	}
}

// WithAdvertiseHost sets the host announced to the registry.
func WithAdvertiseHost(host string) Option {
	return func(c *Config) {
		c.AdvertiseHost = host
	}
}

// WithLogger sets the lifecycle logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
