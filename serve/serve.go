package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/zero-day-ai/kgraph/registry"
)

// Config holds serve configuration.
// It defines the server's network settings, graceful shutdown behavior,
// optional TLS settings and optional service registration.
type Config struct {
	// Port is the TCP port on which the gRPC server listens.
	// Default: 50051
	Port int

	// GracefulTimeout is the maximum duration to wait for active requests
	// to complete during graceful shutdown.
	// Default: 30 seconds
	GracefulTimeout time.Duration

	// TLSCertFile is the path to the TLS certificate file.
	// If empty, TLS is disabled.
	TLSCertFile string

	// TLSKeyFile is the path to the TLS private key file.
	// If empty, TLS is disabled.
	TLSKeyFile string

	// Listener, when set, is served instead of a new TCP listener on Port.
	Listener net.Listener

	// Registry, when set, receives a registration once serving starts and
	// a deregistration on shutdown.
	Registry registry.Registry

	// AdvertiseHost is the host part of the registered endpoint.
	// Default: the machine's hostname
	AdvertiseHost string

	// Logger receives lifecycle messages. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns default serve configuration.
// These defaults are suitable for local development and testing.
func DefaultConfig() *Config {
	return &Config{
		Port:            50051,
		GracefulTimeout: 30 * time.Second,
	}
}

// Server wraps a gRPC server with lifecycle management.
// It handles server initialization, startup, graceful shutdown,
// and health check registration.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	config       *Config
	healthServer *health.Server
	logger       *slog.Logger
	instanceID   string
}

// NewServer creates a new gRPC server with the provided configuration.
// It sets up the gRPC server with appropriate options (e.g., TLS)
// and registers the health check service.
func NewServer(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
		}
	}

	var serverOpts []grpc.ServerOption

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(serverOpts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer:   grpcServer,
		listener:     listener,
		config:       cfg,
		healthServer: healthServer,
		logger:       logger,
		instanceID:   uuid.NewString(),
	}, nil
}

// GRPCServer returns the underlying gRPC server.
// This allows callers to register additional services.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// HealthServer returns the health check server.
// This allows callers to set service health status.
func (s *Server) HealthServer() *health.Server {
	return s.healthServer
}

// InstanceID identifies this server in the registry.
func (s *Server) InstanceID() string {
	return s.instanceID
}

// Serve starts the gRPC server and blocks until shutdown.
// It handles graceful shutdown on SIGINT/SIGTERM signals.
// The context can be used to initiate shutdown programmatically.
//
// info, when non-nil, supplies the registration announced to the
// configured registry. Registration failures are logged, not fatal.
func (s *Server) Serve(ctx context.Context, info func() registry.ServiceInfo) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	s.logger.Info("gRPC server listening", "address", s.listener.Addr().String())

	var registered *registry.ServiceInfo
	if s.config.Registry != nil && info != nil {
		si := s.serviceInfo(info())
		if err := s.config.Registry.Register(ctx, si); err != nil {
			s.logger.Warn("failed to register with service registry", "error", err)
		} else {
			registered = &si
			s.logger.Info("registered with service registry",
				"instance_id", si.InstanceID,
				"endpoint", si.Endpoint)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case sig := <-sigCh:
		s.logger.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err = <-errCh:
		s.deregister(registered)
		return err
	}

	s.deregister(registered)
	s.GracefulStop()
	return err
}

func (s *Server) serviceInfo(si registry.ServiceInfo) registry.ServiceInfo {
	if si.Name == "" {
		si.Name = registry.DefaultName
	}
	if si.InstanceID == "" {
		si.InstanceID = s.instanceID
	}
	if si.Endpoint == "" {
		host := s.config.AdvertiseHost
		if host == "" {
			host, _ = os.Hostname()
		}
		if host == "" {
			host = "localhost"
		}
		si.Endpoint = net.JoinHostPort(host, fmt.Sprint(s.Port()))
	}
	if si.StartedAt.IsZero() {
		si.StartedAt = time.Now().UTC()
	}
	return si
}

func (s *Server) deregister(si *registry.ServiceInfo) {
	if si == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.config.Registry.Deregister(ctx, *si); err != nil {
		s.logger.Warn("failed to deregister from service registry", "error", err)
	}
}

// Stop immediately stops the gRPC server.
// Active RPCs will be terminated abruptly.
// This should only be used when graceful shutdown is not required.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// GracefulStop gracefully stops the gRPC server.
// It stops accepting new connections and waits for active RPCs
// to complete within the configured timeout period.
func (s *Server) GracefulStop() {
	s.healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop")
		s.grpcServer.Stop()
	}
}

// Port returns the port the server is listening on.
// This is useful when using port 0 to get an available port.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}
