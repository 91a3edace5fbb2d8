package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/builder"
	"github.com/zero-day-ai/kgraph/registry"
	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/serve"
	"github.com/zero-day-ai/kgraph/store"
	"github.com/zero-day-ai/kgraph/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port       int
		watchFile  bool
		allowBuild bool
		tlsCert    string
		tlsKey     string
		traceSpans bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GraphRetriever gRPC service",
		Long: `Load the graph artifact and serve Retrieve, Stats and Build over gRPC.

A missing artifact is not fatal: the server starts with an empty graph and
reports NOT_SERVING for the GraphRetriever health check until a graph is
built. With --watch, the graph is reloaded whenever the artifact changes (file and
redis backends).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if traceSpans {
				tp := serve.NewTracerProvider(serve.NewLogSpanExporter(a.logger, slog.LevelDebug), version, a.logger)
				otel.SetTracerProvider(tp)
				defer func() {
					if err := tp.Shutdown(context.Background()); err != nil {
						a.logger.Warn("failed to shut down tracer provider", "error", err)
					}
				}()
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer kgraph.CloseWithLog(st, a.logger, "artifact store")

			retrieverOpts := a.cfg.RetrieverOptions(a.logger)
			r, err := retriever.New(ctx, st, retrieverOpts...)
			if err != nil {
				return err
			}
			handle := retriever.NewHandle(r)

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}
			opts := []serve.Option{
				serve.WithPort(port),
				serve.WithGracefulShutdown(a.cfg.Server.GracefulTimeout),
				serve.WithLogger(a.logger),
			}
			if tlsCert != "" || tlsKey != "" {
				opts = append(opts, serve.WithTLS(tlsCert, tlsKey))
			}

			if a.cfg.Registry.Enabled() {
				reg, err := registry.NewClient(ctx, a.cfg.Registry)
				if err != nil {
					a.logger.Warn("service registry unavailable, serving without registration", "error", err)
				} else {
					defer kgraph.CloseWithLog(reg, a.logger, "service registry")
					opts = append(opts, serve.WithRegistry(reg))
				}
			}

			srv, err := serve.NewServer(nil, opts...)
			if err != nil {
				return err
			}

			svcOpts := []serve.ServiceOption{
				serve.WithHealthServer(srv.HealthServer()),
				serve.WithServiceLogger(a.logger),
			}
			if allowBuild {
				svcOpts = append(svcOpts, serve.WithRebuilder(&serve.Rebuilder{
					Load:             a.loadKnowledge,
					Builder:          builder.New(st, a.cfg.BuilderOptions(a.logger)...),
					Store:            st,
					RetrieverOptions: retrieverOpts,
				}))
			}
			svc := serve.NewService(handle, svcOpts...)
			svc.Register(srv.GRPCServer())

			if watchFile {
				if err := a.startWatcher(ctx, st, handle, svc, retrieverOpts); err != nil {
					return err
				}
			}

			backend := a.cfg.Store.Backend
			info := func() registry.ServiceInfo {
				si := svc.ServiceInfo()
				si.Metadata = map[string]string{"store": backend, "version": version}
				return si
			}

			err = srv.Serve(ctx, info)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from configuration)")
	cmd.Flags().BoolVar(&watchFile, "watch", false, "reload the graph when the artifact changes")
	cmd.Flags().BoolVar(&allowBuild, "allow-build", true, "enable the Build RPC")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "TLS private key file")
	cmd.Flags().BoolVar(&traceSpans, "trace", false, "log finished spans at debug level")
	return cmd
}

// startWatcher reloads handle whenever the artifact changes: through
// filesystem events for the file backend, or save announcements for stores
// that publish them. The watcher stops when ctx is cancelled.
func (a *app) startWatcher(ctx context.Context, st store.ArtifactStore, handle *retriever.Handle, svc *serve.Service, retrieverOpts []retriever.Option) error {
	opts := []watch.Option{
		watch.WithLogger(a.logger),
		watch.WithOnReload(svc.OnReload),
		watch.WithRetrieverOptions(retrieverOpts...),
	}

	var run func(context.Context) error
	if fs, ok := st.(*store.FileStore); ok {
		w, err := watch.New(fs, handle, opts...)
		if err != nil {
			return err
		}
		run = w.Run
	} else {
		f, err := watch.NewFollower(st, handle, opts...)
		if errors.Is(err, watch.ErrNotNotifier) {
			a.logger.Warn("--watch is not supported by this store backend, ignoring", "backend", a.cfg.Store.Backend)
			return nil
		}
		if err != nil {
			return err
		}
		run = f.Run
	}

	go func() {
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("artifact watcher stopped", "error", err)
		}
	}()
	return nil
}
