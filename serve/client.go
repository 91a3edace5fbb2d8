package serve

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zero-day-ai/kgraph/retriever"
)

// Client is a typed client for kgraph.v1.GraphRetriever.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to target without transport security. Callers that need
// TLS should build their own connection and use NewClient.
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return NewClient(conn), conn, nil
}

// RetrieveRequest is the input of Client.Retrieve.
type RetrieveRequest struct {
	Query string
	K     int

	// Filter is an optional CEL expression applied to the results.
	Filter string

	TraceID      string
	ParentSpanID string
}

// Retrieve runs a query on the server.
func (c *Client) Retrieve(ctx context.Context, req RetrieveRequest) ([]retriever.Document, error) {
	m := map[string]any{"query": req.Query}
	if req.K != 0 {
		m["k"] = req.K
	}
	if req.Filter != "" {
		m["filter"] = req.Filter
	}
	if req.TraceID != "" {
		m["trace_id"] = req.TraceID
		m["parent_span_id"] = req.ParentSpanID
	}

	out, err := c.invoke(ctx, RetrieveMethod, m)
	if err != nil {
		return nil, err
	}

	values := out.GetFields()["documents"].GetListValue().GetValues()
	docs := make([]retriever.Document, 0, len(values))
	for _, v := range values {
		docs = append(docs, documentFromStruct(v.GetStructValue()))
	}
	return docs, nil
}

// StatsReply is the decoded result of Client.Stats.
type StatsReply struct {
	Nodes       int
	Edges       int
	PolicyNodes int
	EntityNodes int
	Relations   map[string]int
	BuildID     string
	BuiltAt     time.Time
	Ready       bool
	Health      string
}

// Stats fetches graph statistics.
func (c *Client) Stats(ctx context.Context) (*StatsReply, error) {
	out, err := c.invoke(ctx, StatsMethod, nil)
	if err != nil {
		return nil, err
	}
	f := out.GetFields()
	reply := &StatsReply{
		Nodes:       int(f["nodes"].GetNumberValue()),
		Edges:       int(f["edges"].GetNumberValue()),
		PolicyNodes: int(f["policy_nodes"].GetNumberValue()),
		EntityNodes: int(f["entity_nodes"].GetNumberValue()),
		Relations:   map[string]int{},
		BuildID:     f["build_id"].GetStringValue(),
		Ready:       f["ready"].GetBoolValue(),
		Health:      f["health"].GetStringValue(),
	}
	for k, v := range f["relations"].GetStructValue().GetFields() {
		reply.Relations[k] = int(v.GetNumberValue())
	}
	if s := f["built_at"].GetStringValue(); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			reply.BuiltAt = t
		}
	}
	return reply, nil
}

// BuildReply is the decoded result of Client.Build.
type BuildReply struct {
	Nodes    int
	Edges    int
	Location string
	BuildID  string
	Duration time.Duration
}

// Build asks the server to rebuild its graph from the knowledge base.
func (c *Client) Build(ctx context.Context) (*BuildReply, error) {
	out, err := c.invoke(ctx, BuildMethod, nil)
	if err != nil {
		return nil, err
	}
	f := out.GetFields()
	return &BuildReply{
		Nodes:    int(f["nodes"].GetNumberValue()),
		Edges:    int(f["edges"].GetNumberValue()),
		Location: f["location"].GetStringValue(),
		BuildID:  f["build_id"].GetStringValue(),
		Duration: time.Duration(f["duration_ms"].GetNumberValue()) * time.Millisecond,
	}, nil
}

func (c *Client) invoke(ctx context.Context, method string, m map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
