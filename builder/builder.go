package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/graph"
	"github.com/zero-day-ai/kgraph/keyword"
	"github.com/zero-day-ai/kgraph/knowledge"
	"github.com/zero-day-ai/kgraph/store"
)

// Result reports a successful build.
type Result struct {
	// Location is where the artifact was written.
	Location string `json:"location"`

	BuildID   string        `json:"build_id"`
	BuiltAt   time.Time     `json:"built_at"`
	NodeCount int           `json:"nodes"`
	EdgeCount int           `json:"edges"`
	Stats     graph.Stats   `json:"stats"`
	Duration  time.Duration `json:"duration"`
}

// Builder compiles knowledge bases into graph artifacts. Builds through one
// Builder are serialized; separate Builders writing to the same store must
// be serialized by the caller.
type Builder struct {
	opts  options
	store store.ArtifactStore

	mu    sync.Mutex
	graph *graph.Graph
	last  *Result
}

// New creates a builder persisting to st.
func New(st store.ArtifactStore, opts ...Option) *Builder {
	return &Builder{opts: newOptions(opts), store: st}
}

func newOptions(opts []Option) options {
	o := options{
		similarityThreshold: DefaultSimilarityThreshold,
		mentionStrength:     DefaultMentionStrength,
		logger:              slog.Default(),
		tracer:              tracer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Build constructs a graph from kb, writes it to the store and returns the
// build report. A knowledge base without policies fails with an error
// wrapping kgraph.ErrNoPolicies, and nothing is written: the previous
// artifact stays authoritative.
func (b *Builder) Build(ctx context.Context, kb *knowledge.Base) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	ctx, span := b.opts.tracer.Start(ctx, "builder.Build",
		trace.WithAttributes(attribute.String("kgraph.store", b.store.Location())))
	defer span.End()

	g, err := construct(ctx, kb, b.opts)
	if err != nil {
		return nil, b.fail(ctx, span, start, err)
	}

	res := &Result{
		Location:  b.store.Location(),
		BuildID:   uuid.NewString(),
		BuiltAt:   time.Now().UTC(),
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
		Stats:     g.Stats(),
	}

	data, err := graph.Marshal(g, graph.Header{BuildID: res.BuildID, BuiltAt: res.BuiltAt})
	if err != nil {
		return nil, b.fail(ctx, span, start, kgraph.NewInternalError("Builder.Build", err))
	}
	if err := b.store.Save(ctx, data); err != nil {
		return nil, b.fail(ctx, span, start, fmt.Errorf("failed to save graph artifact: %w", err))
	}

	res.Duration = time.Since(start)
	b.graph = g
	b.last = res

	span.SetAttributes(
		attribute.String("kgraph.build_id", res.BuildID),
		attribute.Int("kgraph.nodes", res.NodeCount),
		attribute.Int("kgraph.edges", res.EdgeCount),
	)
	recordBuild(ctx, res.Duration, res.NodeCount, res.EdgeCount, true)

	b.opts.logger.Info("knowledge graph built",
		"nodes", res.NodeCount,
		"edges", res.EdgeCount,
		"policy_nodes", res.Stats.PolicyNodes,
		"entity_nodes", res.Stats.EntityNodes,
		"build_id", res.BuildID,
		"location", res.Location,
		"duration", res.Duration)

	return res, nil
}

func (b *Builder) fail(ctx context.Context, span trace.Span, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	recordBuild(ctx, time.Since(start), 0, 0, false)
	b.opts.logger.Error("knowledge graph build failed", "error", err)
	return err
}

// Graph returns the graph of the last successful build, or nil.
func (b *Builder) Graph() *graph.Graph {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.graph
}

// Last returns the report of the last successful build.
func (b *Builder) Last() (*Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.last != nil
}

// Construct builds a frozen graph from kb without persisting it.
func Construct(ctx context.Context, kb *knowledge.Base, opts ...Option) (*graph.Graph, error) {
	return construct(ctx, kb, newOptions(opts))
}

func construct(ctx context.Context, kb *knowledge.Base, o options) (*graph.Graph, error) {
	if kb == nil || len(kb.Policies) == 0 {
		return nil, kgraph.NewBuildError("Builder.Build", kgraph.ErrNoPolicies)
	}

	span := trace.SpanFromContext(ctx)
	g := graph.New()
	log := o.logger

	for _, p := range kb.Policies {
		if _, added, err := g.AddNode(graph.NewPolicyNode(graph.Policy{
			Key:        p.Key,
			Title:      p.Title,
			Category:   p.Category,
			Content:    p.Content,
			MetadataID: p.MetadataID(),
		})); err != nil {
			return nil, kgraph.NewInternalError("Builder.Build", err)
		} else if !added {
			log.Debug("duplicate policy ignored", "policy", p.Key)
		}
	}
	for _, group := range kb.Entities {
		for _, name := range group.Names {
			if _, _, err := g.AddNode(graph.NewEntityNode(graph.Entity{Type: group.Type, Name: name})); err != nil {
				return nil, kgraph.NewInternalError("Builder.Build", err)
			}
		}
	}
	span.AddEvent("nodes materialized", trace.WithAttributes(attribute.Int("kgraph.nodes", g.NodeCount())))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addDeclaredEdges(g, kb, log)
	span.AddEvent("declared edges added", trace.WithAttributes(attribute.Int("kgraph.edges", g.EdgeCount())))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	policies := g.Nodes(graph.KindPolicy)
	keywords := make([]keyword.Set, len(policies))
	for i, idx := range policies {
		p := g.Node(idx).Policy
		keywords[i] = keyword.FromPolicy(p.Title, p.Content)
	}

	similar := addSimilarityEdges(g, policies, keywords, o.similarityThreshold)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mentions := addMentionEdges(g, policies, keywords, o.mentionStrength)
	span.AddEvent("derived edges added", trace.WithAttributes(
		attribute.Int("kgraph.content_similar", similar),
		attribute.Int("kgraph.mentioned_in", mentions),
	))

	g.Freeze()
	return g, nil
}

// addDeclaredEdges adds the knowledge base's declared connections. A
// connection whose endpoints are not both nodes is dropped.
func addDeclaredEdges(g *graph.Graph, kb *knowledge.Base, log *slog.Logger) {
	for _, c := range kb.Relationships.PolicyConnections {
		from, to := graph.PolicyNodeID(c.From), graph.PolicyNodeID(c.To)
		if !g.Has(from) || !g.Has(to) {
			log.Debug("dropping policy connection with unknown endpoint", "from", c.From, "to", c.To)
			continue
		}
		rel := graph.Relation(c.RelationOr(string(graph.RelationRelatedTo)))
		if err := g.AddEdge(from, to, rel, c.StrengthOr(DefaultPolicyConnectionStrength)); err != nil {
			log.Warn("dropping policy connection", "from", c.From, "to", c.To, "error", err)
		}
	}

	for _, c := range kb.Relationships.EntityConnections {
		entityType, ok := kb.ResolveEntity(c.From)
		to := graph.PolicyNodeID(c.To)
		if !ok || !g.Has(to) {
			log.Debug("dropping entity connection with unknown endpoint", "from", c.From, "to", c.To)
			continue
		}
		rel := graph.Relation(c.RelationOr(string(graph.RelationGovernedBy)))
		if err := g.AddEdge(graph.EntityNodeID(entityType, c.From), to, rel, c.StrengthOr(DefaultEntityConnectionStrength)); err != nil {
			log.Warn("dropping entity connection", "from", c.From, "to", c.To, "error", err)
		}
	}
}

// addSimilarityEdges links every policy pair whose keyword similarity
// strictly exceeds threshold, from the earlier-declared policy to the later.
func addSimilarityEdges(g *graph.Graph, policies []graph.NodeIndex, keywords []keyword.Set, threshold float64) int {
	added := 0
	for i := range policies {
		for j := i + 1; j < len(policies); j++ {
			sim := keyword.Jaccard(keywords[i], keywords[j])
			if sim <= threshold {
				continue
			}
			from, to := g.Node(policies[i]).ID, g.Node(policies[j]).ID
			if err := g.AddEdge(from, to, graph.RelationContentSimilar, sim); err == nil {
				added++
			}
		}
	}
	return added
}

// addMentionEdges links each entity to every policy whose keywords contain
// the entity's lowercased name, either as a keyword or inside one.
func addMentionEdges(g *graph.Graph, policies []graph.NodeIndex, keywords []keyword.Set, strength float64) int {
	added := 0
	for _, e := range g.Nodes(graph.KindEntity) {
		entity := g.Node(e)
		name := strings.ToLower(entity.Entity.Name)
		if name == "" {
			continue
		}
		for i, p := range policies {
			if !keywords[i].Mentions(name) {
				continue
			}
			if err := g.AddEdge(entity.ID, g.Node(p).ID, graph.RelationMentionedIn, strength); err == nil {
				added++
			}
		}
	}
	return added
}
