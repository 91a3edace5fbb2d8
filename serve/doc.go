// Package serve exposes a knowledge graph retriever over gRPC.
//
// The kgraph.v1.GraphRetriever service has three unary methods whose
// messages are google.protobuf.Struct values:
//
//   - Retrieve runs a query with an optional CEL filter over the results.
//   - Stats reports graph counts, the current build and its health.
//   - Build reloads the knowledge base, rebuilds the artifact and swaps the
//     new graph in. It is only available when the service has a Rebuilder.
//
// Server handles lifecycle: listening, TLS, the standard gRPC health
// service, signal-driven graceful shutdown and, when a registry is
// configured, announcing the instance for the duration of Serve.
//
// # Usage
//
//	srv, err := serve.NewServer(nil,
//	    serve.WithPort(50051),
//	    serve.WithGracefulShutdown(30*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	svc := serve.NewService(handle, serve.WithHealthServer(srv.HealthServer()))
//	svc.Register(srv.GRPCServer())
//
//	if err := srv.Serve(ctx, svc.ServiceInfo); err != nil {
//	    log.Fatal(err)
//	}
//
// Clients use Dial or NewClient:
//
//	client, conn, err := serve.Dial("localhost:50051")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	docs, err := client.Retrieve(ctx, serve.RetrieveRequest{
//	    Query:  "can I return headphones",
//	    K:      3,
//	    Filter: `category == "customer_service"`,
//	})
//
// # Tracing
//
// NewTracerProvider tags spans with the kgraph service resource.
// LogSpanExporter writes finished spans to a slog.Logger, and
// CreateParentContext lets a Retrieve request join the caller's trace.
package serve
