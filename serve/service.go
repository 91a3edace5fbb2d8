package serve

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/builder"
	"github.com/zero-day-ai/kgraph/filter"
	"github.com/zero-day-ai/kgraph/health"
	"github.com/zero-day-ai/kgraph/knowledge"
	"github.com/zero-day-ai/kgraph/registry"
	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/store"
)

// GraphRetrieverServiceName is the fully qualified gRPC service name. It is
// also the name whose serving status the health service reports.
const GraphRetrieverServiceName = "kgraph.v1.GraphRetriever"

// Full method names.
const (
	RetrieveMethod = "/" + GraphRetrieverServiceName + "/Retrieve"
	StatsMethod    = "/" + GraphRetrieverServiceName + "/Stats"
	BuildMethod    = "/" + GraphRetrieverServiceName + "/Build"
)

// GraphRetrieverServer is the server API of kgraph.v1.GraphRetriever.
// Requests and responses are google.protobuf.Struct messages:
//
//	Retrieve {query, k, filter, trace_id, parent_span_id} -> {documents, count}
//	Stats    {} -> {nodes, edges, policy_nodes, entity_nodes, relations, build_id, built_at, ready, health}
//	Build    {} -> {nodes, edges, location, build_id, duration_ms}
type GraphRetrieverServer interface {
	Retrieve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Build(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// GraphRetrieverServiceDesc describes kgraph.v1.GraphRetriever for
// grpc.Server.RegisterService.
var GraphRetrieverServiceDesc = grpc.ServiceDesc{
	ServiceName: GraphRetrieverServiceName,
	HandlerType: (*GraphRetrieverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Retrieve", Handler: unaryHandler(RetrieveMethod, GraphRetrieverServer.Retrieve)},
		{MethodName: "Stats", Handler: unaryHandler(StatsMethod, GraphRetrieverServer.Stats)},
		{MethodName: "Build", Handler: unaryHandler(BuildMethod, GraphRetrieverServer.Build)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kgraph/v1/retriever.proto",
}

type unaryMethod func(GraphRetrieverServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GraphRetrieverServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GraphRetrieverServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Rebuilder rebuilds the graph on a Build call: it loads the knowledge
// base, builds and persists the artifact, then reopens the retriever from
// the store.
type Rebuilder struct {
	Load             func(ctx context.Context) (*knowledge.Base, error)
	Builder          *builder.Builder
	Store            store.ArtifactStore
	RetrieverOptions []retriever.Option
}

// Service implements GraphRetrieverServer over a retriever.Handle.
type Service struct {
	handle    *retriever.Handle
	rebuilder *Rebuilder
	health    *grpchealth.Server
	logger    *slog.Logger

	buildMu sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRebuilder enables the Build method. Without it Build returns
// Unimplemented.
func WithRebuilder(r *Rebuilder) ServiceOption {
	return func(s *Service) { s.rebuilder = r }
}

// WithHealthServer lets the service publish its serving status.
func WithHealthServer(hs *grpchealth.Server) ServiceOption {
	return func(s *Service) { s.health = hs }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates the retriever service.
func NewService(h *retriever.Handle, opts ...ServiceOption) *Service {
	s := &Service{handle: h, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.Refresh()
	return s
}

// Register registers the service on gs.
func (s *Service) Register(gs *grpc.Server) {
	gs.RegisterService(&GraphRetrieverServiceDesc, s)
}

// Refresh publishes the serving status of the current retriever: SERVING
// with a non-empty graph, NOT_SERVING otherwise. The overall server status
// stays SERVING, since queries against an empty graph still succeed.
func (s *Service) Refresh() {
	if s.health == nil {
		return
	}
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if r := s.handle.Load(); r != nil && r.Ready() {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(GraphRetrieverServiceName, st)
}

// OnReload adapts Refresh to the artifact watcher's reload callback.
func (s *Service) OnReload(_ *retriever.Retriever, err error) {
	if err == nil {
		s.Refresh()
	}
}

// ServiceInfo returns the registry entry describing the current graph.
func (s *Service) ServiceInfo() registry.ServiceInfo {
	info := registry.ServiceInfo{Name: registry.DefaultName}
	if r := s.handle.Load(); r != nil {
		info.BuildID = r.Header().BuildID
	}
	return info
}

// Retrieve implements GraphRetrieverServer.
func (s *Service) Retrieve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	query, err := stringField(fields, "query")
	if err != nil {
		return nil, err
	}
	expr, err := stringField(fields, "filter")
	if err != nil {
		return nil, err
	}
	k, err := intField(fields, "k")
	if err != nil {
		return nil, err
	}
	traceID, _ := stringField(fields, "trace_id")
	parentSpanID, _ := stringField(fields, "parent_span_id")
	ctx = CreateParentContext(ctx, traceID, parentSpanID)

	f, err := filter.Compile(expr)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	docs := s.handle.Retrieve(ctx, query, k)
	docs, ferr := f.Apply(docs)
	if ferr != nil {
		s.logger.Warn("filter evaluation failed for some documents",
			"filter", f.String(),
			"error", ferr)
	}

	out, err := documentsToStruct(docs)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode documents: %v", err)
	}
	return out, nil
}

// Stats implements GraphRetrieverServer.
func (s *Service) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	r := s.handle.Load()
	if r == nil {
		return nil, status.Error(codes.Unavailable, "no retriever loaded")
	}

	stats := r.Stats()
	h := r.Header()
	m := statsToMap(stats)
	m["build_id"] = h.BuildID
	if !h.BuiltAt.IsZero() {
		m["built_at"] = h.BuiltAt.UTC().Format(time.RFC3339)
	}
	m["ready"] = r.Ready()
	m["health"] = health.GraphCheck(stats).Status

	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode stats: %v", err)
	}
	return out, nil
}

// Build implements GraphRetrieverServer. Concurrent calls are serialized.
// A failed build leaves both the stored artifact and the served graph
// unchanged.
func (s *Service) Build(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.rebuilder == nil {
		return nil, status.Error(codes.Unimplemented, "build is not enabled on this server")
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	rb := s.rebuilder
	kb, err := rb.Load(ctx)
	if err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "failed to load knowledge base: %v", err)
	}

	res, err := rb.Builder.Build(ctx, kb)
	if err != nil {
		if errors.Is(err, kgraph.ErrNoPolicies) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "build failed: %v", err)
	}

	if _, err := s.handle.Reload(ctx, rb.Store, rb.RetrieverOptions...); err != nil {
		return nil, status.Errorf(codes.Internal, "graph built but reload failed: %v", err)
	}
	s.Refresh()

	s.logger.Info("graph rebuilt via rpc",
		"build_id", res.BuildID,
		"nodes", res.NodeCount,
		"edges", res.EdgeCount)

	out, err := structpb.NewStruct(map[string]any{
		"nodes":       res.NodeCount,
		"edges":       res.EdgeCount,
		"location":    res.Location,
		"build_id":    res.BuildID,
		"duration_ms": res.Duration.Milliseconds(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode build result: %v", err)
	}
	return out, nil
}

func stringField(fields map[string]*structpb.Value, name string) (string, error) {
	v, ok := fields[name]
	if !ok {
		return "", nil
	}
	switch v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return v.GetStringValue(), nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", name)
	}
}

func intField(fields map[string]*structpb.Value, name string) (int, error) {
	v, ok := fields[name]
	if !ok {
		return 0, nil
	}
	switch v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := v.GetNumberValue()
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return int(n), nil
	case *structpb.Value_NullValue:
		return 0, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
}
