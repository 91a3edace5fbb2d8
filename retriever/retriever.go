package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/graph"
	"github.com/zero-day-ai/kgraph/keyword"
	"github.com/zero-day-ai/kgraph/store"
)

// Score multipliers and per-signal seed weights.
const (
	outgoingDecay = 0.8
	incomingDecay = 0.7

	policyWeight = 1.2
	entityWeight = 0.8

	titleMatchScore    = 2.0
	categoryMatchScore = 1.5
	entityMatchScore   = 1.0
	contentMatchScore  = 0.5
	entitySeedScore    = 1.0
)

// domainKeywords are treated as query entities whenever they occur in a query.
var domainKeywords = []string{
	"return", "refund", "shipping", "delivery", "payment", "order",
	"policy", "tracking", "cancel", "exchange", "warranty", "support",
}

// Retriever answers queries against one immutable graph. It is safe for
// concurrent use.
type Retriever struct {
	g      *graph.Graph
	header graph.Header
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	// Lowercased per-node text, indexed by graph.NodeIndex. Policy entries
	// are empty for entity nodes and vice versa.
	titles     []string
	categories []string
	names      []string
	keywords   []keyword.Set
}

// New loads the artifact from st. A missing or unreadable artifact is not an
// error: it is logged and the retriever starts with an empty graph, against
// which every query returns no documents. Only invalid options fail.
func New(ctx context.Context, st store.ArtifactStore, opts ...Option) (*Retriever, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	g, h, err := load(ctx, st)
	if err != nil {
		if errors.Is(err, kgraph.ErrArtifactNotFound) {
			o.logger.Warn("graph artifact not found, build the graph first",
				"location", st.Location())
		} else {
			o.logger.Error("failed to load graph artifact, serving an empty graph",
				"location", st.Location(),
				"error", err)
		}
		g, h = emptyGraph(), graph.Header{}
	}

	r := newRetriever(g, h, o)
	o.logger.Info("knowledge graph loaded",
		"location", st.Location(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"build_id", h.BuildID)
	return r, nil
}

// Open is the strict form of New: a missing or corrupt artifact is returned
// as an error instead of yielding an empty graph.
func Open(ctx context.Context, st store.ArtifactStore, opts ...Option) (*Retriever, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	g, h, err := load(ctx, st)
	if err != nil {
		return nil, err
	}
	return newRetriever(g, h, o), nil
}

// NewFromGraph serves an in-memory graph. The graph is frozen if it is not
// already; a nil graph is treated as empty.
func NewFromGraph(g *graph.Graph, opts ...Option) (*Retriever, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	if g == nil {
		g = emptyGraph()
	}
	g.Freeze()
	return newRetriever(g, graph.Header{}, o), nil
}

func load(ctx context.Context, st store.ArtifactStore) (*graph.Graph, graph.Header, error) {
	data, err := st.Load(ctx)
	if err != nil {
		return nil, graph.Header{}, err
	}
	g, h, err := graph.Unmarshal(data)
	if err != nil {
		return nil, graph.Header{}, kgraph.NewStorageError("retriever.Load", err).
			WithContext(map[string]any{"location": st.Location()})
	}
	return g, h, nil
}

func emptyGraph() *graph.Graph {
	g := graph.New()
	g.Freeze()
	return g
}

func newRetriever(g *graph.Graph, h graph.Header, o options) *Retriever {
	n := g.NodeCount()
	r := &Retriever{
		g:          g,
		header:     h,
		cfg:        o.cfg,
		logger:     o.logger,
		tracer:     o.tracer,
		titles:     make([]string, n),
		categories: make([]string, n),
		names:      make([]string, n),
		keywords:   make([]keyword.Set, n),
	}
	for i := 0; i < n; i++ {
		node := g.Node(graph.NodeIndex(i))
		switch node.Kind {
		case graph.KindPolicy:
			r.titles[i] = strings.ToLower(node.Policy.Title)
			r.categories[i] = strings.ToLower(node.Policy.Category)
			r.keywords[i] = keyword.FromContent(node.Policy.Content, keyword.Unlimited)
		case graph.KindEntity:
			r.names[i] = strings.ToLower(node.Entity.Name)
		}
	}
	return r
}

// Graph returns the served graph. It must not be modified.
func (r *Retriever) Graph() *graph.Graph { return r.g }

// Header returns the artifact header, zero when serving an in-memory or
// empty graph.
func (r *Retriever) Header() graph.Header { return r.header }

// Config returns the retrieval configuration.
func (r *Retriever) Config() Config { return r.cfg }

// Stats summarizes the served graph.
func (r *Retriever) Stats() graph.Stats { return r.g.Stats() }

// Ready reports whether the retriever has a non-empty graph.
func (r *Retriever) Ready() bool { return !r.g.Empty() }

// Retrieve returns up to k policy documents for query, best first. k <= 0
// selects the configured default. It never fails: an empty graph or a query
// matching nothing yields an empty, non-nil slice. Fewer than k documents
// may be returned when entities crowd policies out of the top 2k candidates.
//
// The context is used for tracing only; retrieval cost is bounded by the
// traversal depth, not by deadlines.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []Document {
	start := time.Now()
	if k <= 0 {
		k = r.cfg.TopK
	}

	ctx, span := r.tracer.Start(ctx, "retriever.Retrieve", trace.WithAttributes(
		attribute.Int("kgraph.k", k),
		attribute.Int("kgraph.query_length", len(query)),
	))
	defer span.End()

	if r.g.Empty() {
		recordRetrieve(ctx, time.Since(start), 0, true)
		return []Document{}
	}

	q := strings.ToLower(query)
	words := strings.Fields(q)
	entities := r.queryEntities(q)
	seeds := r.seeds(q, words, entities)
	reached := traverse(r.g, seeds, r.cfg.Depth)

	for i := range reached {
		switch r.g.Node(reached[i].node).Kind {
		case graph.KindPolicy:
			reached[i].score *= policyWeight
		case graph.KindEntity:
			reached[i].score *= entityWeight
		}
	}
	sort.SliceStable(reached, func(i, j int) bool {
		return reached[i].score > reached[j].score
	})

	docs := r.extract(reached, k)

	span.SetAttributes(
		attribute.Int("kgraph.query_entities", len(entities)),
		attribute.Int("kgraph.seeds", len(seeds)),
		attribute.Int("kgraph.reached", len(reached)),
		attribute.Int("kgraph.documents", len(docs)),
	)
	recordRetrieve(ctx, time.Since(start), len(docs), false)
	r.logger.Debug("graph retrieval complete",
		"query_entities", len(entities),
		"seeds", len(seeds),
		"reached", len(reached),
		"documents", len(docs))

	return docs
}

// queryEntities collects the entity names and domain keywords occurring in
// the lowercased query, without duplicates.
func (r *Retriever) queryEntities(q string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, name := range r.names {
		if name != "" && strings.Contains(q, name) {
			add(name)
		}
	}
	for _, kw := range domainKeywords {
		if strings.Contains(q, kw) {
			add(kw)
		}
	}
	return out
}

// seeds scores every node directly against the query. Policies come first,
// then entities, each in graph order.
func (r *Retriever) seeds(q string, words, entities []string) []scored {
	var out []scored

	for _, idx := range r.g.Nodes(graph.KindPolicy) {
		title, category := r.titles[idx], r.categories[idx]
		score := 0.0

		for _, w := range words {
			if strings.Contains(title, w) {
				score += titleMatchScore
				break
			}
		}
		if category != "" && strings.Contains(q, category) {
			score += categoryMatchScore
		}
		for _, e := range entities {
			if strings.Contains(title, e) || strings.Contains(category, e) {
				score += entityMatchScore
			}
		}
		for _, w := range words {
			if r.keywords[idx].Has(w) {
				score += contentMatchScore
			}
		}

		if score > 0 {
			out = append(out, scored{node: idx, score: score})
		}
	}

	for _, idx := range r.g.Nodes(graph.KindEntity) {
		name := r.names[idx]
		if name == "" {
			continue
		}
		if strings.Contains(q, name) || containsAny(name, entities) {
			out = append(out, scored{node: idx, score: entitySeedScore})
		}
	}

	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// extract turns the top 2k ranked nodes into policy documents and keeps the
// first k.
func (r *Retriever) extract(ranked []scored, k int) []Document {
	k = min(k, len(ranked))
	limit := min(2*k, len(ranked))

	docs := make([]Document, 0, k)
	for _, s := range ranked[:limit] {
		node := r.g.Node(s.node)
		if node.Kind != graph.KindPolicy {
			continue
		}
		p := node.Policy
		id := p.MetadataID
		if id == "" {
			id = node.ID
		}
		docs = append(docs, Document{
			ID:              id,
			Title:           p.Title,
			Category:        p.Category,
			Content:         p.Content,
			Score:           s.score,
			RetrievalMethod: RetrievalMethodGraphTraversal,
			NodeID:          node.ID,
		})
		if len(docs) == k {
			break
		}
	}
	return docs
}

// String describes the retriever for logs.
func (r *Retriever) String() string {
	return fmt.Sprintf("Retriever(nodes=%d, edges=%d, build=%s)", r.g.NodeCount(), r.g.EdgeCount(), r.header.BuildID)
}
