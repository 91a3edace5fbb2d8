package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/graph"
	"github.com/zero-day-ai/kgraph/knowledge"
	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/store"
)

func strength(v float64) *float64 { return &v }

// returnPolicyKB is the single-policy knowledge base used across the
// end-to-end scenarios.
func returnPolicyKB() *knowledge.Base {
	return &knowledge.Base{
		Policies: []knowledge.Policy{{
			Key:      "return_policy",
			ID:       "POL-001",
			Title:    "Return and Refund Policy",
			Category: "customer_service",
			Content:  map[string]any{"return_window": "30 days"},
		}},
		Entities: []knowledge.EntityGroup{{Type: "product_category", Names: []string{"Electronics"}}},
		Relationships: knowledge.Relationships{
			EntityConnections: []knowledge.Connection{{
				From: "Electronics", To: "return_policy", Relation: "governed_by", Strength: strength(0.9),
			}},
		},
	}
}

func nodeIDs(g *graph.Graph) []string {
	ids := make([]string, 0, g.NodeCount())
	for _, k := range []graph.Kind{graph.KindPolicy, graph.KindEntity} {
		for _, idx := range g.Nodes(k) {
			ids = append(ids, g.Node(idx).ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func edgesOf(g *graph.Graph, rel graph.Relation) []graph.Edge {
	var out []graph.Edge
	for _, e := range g.Edges() {
		if e.Relation == rel {
			out = append(out, e)
		}
	}
	return out
}

func TestConstructNodesAndDeclaredEdges(t *testing.T) {
	g, err := Construct(context.Background(), returnPolicyKB())
	require.NoError(t, err)

	assert.Equal(t, graph.StateReadOnly, g.State())
	assert.Equal(t, []string{
		"entity::product_category::Electronics",
		"policy::return_policy",
	}, nodeIDs(g))

	governed := edgesOf(g, graph.RelationGovernedBy)
	require.Len(t, governed, 1)
	assert.Equal(t, "entity::product_category::Electronics", g.Node(governed[0].From).ID)
	assert.Equal(t, "policy::return_policy", g.Node(governed[0].To).ID)
	assert.Equal(t, 0.9, governed[0].Strength)

	idx, _ := g.Lookup("policy::return_policy")
	assert.Equal(t, "POL-001", g.Node(idx).Policy.MetadataID)

	assert.Empty(t, edgesOf(g, graph.RelationMentionedIn), "electronics is not a keyword of the policy")
}

func TestConstructNoPolicies(t *testing.T) {
	for name, kb := range map[string]*knowledge.Base{
		"nil":         nil,
		"empty":       {},
		"only entity": {Entities: []knowledge.EntityGroup{{Type: "t", Names: []string{"x"}}}},
	} {
		t.Run(name, func(t *testing.T) {
			g, err := Construct(context.Background(), kb)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, kgraph.ErrNoPolicies)
			assert.ErrorIs(t, err, &kgraph.Error{Kind: kgraph.KindBuild})
		})
	}
}

func TestDeclaredEdgeDefaultsAndDanglingReferences(t *testing.T) {
	kb := &knowledge.Base{
		Policies: []knowledge.Policy{
			{Key: "a", Title: "Alpha"},
			{Key: "b", Title: "Beta"},
		},
		Entities: []knowledge.EntityGroup{
			{Type: "carrier", Names: []string{"UPS"}},
			{Type: "vendor", Names: []string{"UPS"}},
		},
		Relationships: knowledge.Relationships{
			PolicyConnections: []knowledge.Connection{
				{From: "a", To: "b"},
				{From: "a", To: "undefined_policy", Strength: strength(0.9)},
				{From: "ghost", To: "b"},
				{From: "a", To: "b", Relation: "supersedes", Strength: strength(1.7)},
			},
			EntityConnections: []knowledge.Connection{
				{From: "UPS", To: "b"},
				{From: "DHL", To: "b"},
				{From: "UPS", To: "undefined_policy"},
			},
		},
	}

	g, err := Construct(context.Background(), kb)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Stats().PolicyNodes, "node count equals the valid policies")
	assert.False(t, g.Has("policy::undefined_policy"), "no phantom node")
	for _, e := range g.Edges() {
		assert.NotContains(t, g.Node(e.To).ID, "undefined_policy")
		assert.NotContains(t, g.Node(e.From).ID, "ghost")
	}

	related := edgesOf(g, graph.RelationRelatedTo)
	require.Len(t, related, 1)
	assert.Equal(t, DefaultPolicyConnectionStrength, related[0].Strength)
	assert.Empty(t, edgesOf(g, "supersedes"), "out-of-range strength is dropped")

	governed := edgesOf(g, graph.RelationGovernedBy)
	require.Len(t, governed, 1)
	assert.Equal(t, "entity::carrier::UPS", g.Node(governed[0].From).ID, "first declared entity type wins")
	assert.Equal(t, DefaultEntityConnectionStrength, governed[0].Strength)
}

func TestContentSimilarEdges(t *testing.T) {
	t.Run("mutually reachable within one hop", func(t *testing.T) {
		// {return, refund, policy, window} vs {return, refund, policy, exchange, window, days}
		// gives 4 / 6 > 0.3; the third policy shares nothing.
		kb := &knowledge.Base{Policies: []knowledge.Policy{
			{Key: "returns", Title: "Return Refund Policy", Content: map[string]any{"w": "window"}},
			{Key: "exchanges", Title: "Return Refund Policy", Content: map[string]any{"w": "exchange window days"}},
			{Key: "privacy", Title: "Privacy", Content: map[string]any{"data": "cookies"}},
		}}
		g, err := Construct(context.Background(), kb)
		require.NoError(t, err)

		similar := edgesOf(g, graph.RelationContentSimilar)
		require.Len(t, similar, 1)
		assert.Equal(t, "policy::returns", g.Node(similar[0].From).ID, "earlier policy is the source")
		assert.Equal(t, "policy::exchanges", g.Node(similar[0].To).ID)
		assert.InDelta(t, 4.0/6.0, similar[0].Strength, 1e-12)

		returns, _ := g.Lookup("policy::returns")
		exchanges, _ := g.Lookup("policy::exchanges")
		var fromReturns, intoReturns []graph.NodeIndex
		g.Out(returns, func(e graph.Edge) { fromReturns = append(fromReturns, e.To) })
		g.In(exchanges, func(e graph.Edge) { intoReturns = append(intoReturns, e.From) })
		assert.Contains(t, fromReturns, exchanges)
		assert.Contains(t, intoReturns, returns)
	})

	t.Run("similarity of one half links and retrieves", func(t *testing.T) {
		// {return, refund, window} vs {return, refund, exchange}: 2 / 4
		kb := &knowledge.Base{Policies: []knowledge.Policy{
			{Key: "returns", Title: "Return Refund", Content: map[string]any{"w": "window"}},
			{Key: "exchanges", Title: "Return Refund", Content: map[string]any{"w": "exchange"}},
		}}
		g, err := Construct(context.Background(), kb)
		require.NoError(t, err)

		similar := edgesOf(g, graph.RelationContentSimilar)
		require.Len(t, similar, 1)
		assert.Equal(t, "policy::returns", g.Node(similar[0].From).ID)
		assert.Equal(t, "policy::exchanges", g.Node(similar[0].To).ID)
		assert.InDelta(t, 0.5, similar[0].Strength, 1e-12)

		r, err := retriever.NewFromGraph(g)
		require.NoError(t, err)

		// only "returns" carries the content keyword "window"
		docs := r.Retrieve(context.Background(), "window", 5)
		require.Len(t, docs, 2)
		assert.Equal(t, "policy::returns", docs[0].NodeID)
		assert.Equal(t, "policy::exchanges", docs[1].NodeID)
		assert.InDelta(t, 0.5*0.5*0.8*1.2, docs[1].Score, 1e-9)
	})

	words := func(from, to int) string {
		var b strings.Builder
		for i := from; i < to; i++ {
			fmt.Fprintf(&b, "w%d ", i)
		}
		return b.String()
	}

	tests := []struct {
		name     string
		a, b     string
		wantEdge bool
	}{
		// 3 shared of 10 distinct: exactly 0.3.
		{name: "exactly threshold", a: words(0, 6), b: words(0, 3) + words(6, 10), wantEdge: false},
		// 31 shared of 100 distinct: 0.31.
		{name: "just above threshold", a: words(0, 65), b: words(34, 100), wantEdge: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := &knowledge.Base{Policies: []knowledge.Policy{
				{Key: "a", Content: map[string]any{"text": tt.a}},
				{Key: "b", Content: map[string]any{"text": tt.b}},
			}}
			g, err := Construct(context.Background(), kb)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEdge, len(edgesOf(g, graph.RelationContentSimilar)) == 1)
		})
	}

	t.Run("empty keyword sets never link", func(t *testing.T) {
		kb := &knowledge.Base{Policies: []knowledge.Policy{{Key: "a"}, {Key: "b"}}}
		g, err := Construct(context.Background(), kb)
		require.NoError(t, err)
		assert.Zero(t, g.EdgeCount())
	})
}

func TestMentionEdges(t *testing.T) {
	kb := &knowledge.Base{
		Policies: []knowledge.Policy{
			{Key: "warranty", Title: "Warranty Policy", Content: map[string]any{
				"coverage": []any{"Electronics: 1 year", "Furniture: 90 days"},
			}},
			{Key: "shipping", Title: "Shipping Policy", Content: map[string]any{
				"nested": map[string]any{"carriers": "UPS and FedEx"},
			}},
		},
		Entities: []knowledge.EntityGroup{
			{Type: "product_category", Names: []string{"Electronics", "Toys", ""}},
			{Type: "carrier", Names: []string{"UPS"}},
		},
	}
	g, err := Construct(context.Background(), kb, WithMentionStrength(0.6))
	require.NoError(t, err)

	mentions := edgesOf(g, graph.RelationMentionedIn)
	got := map[string]string{}
	for _, e := range mentions {
		got[g.Node(e.From).ID] = g.Node(e.To).ID
		assert.Equal(t, 0.6, e.Strength)
	}
	assert.Equal(t, map[string]string{
		"entity::product_category::Electronics": "policy::warranty",
		"entity::carrier::UPS":                  "policy::shipping",
	}, got, "substring of keyword matches; nested map followed one level; empty name never matches")
}

func TestIdempotentIdentifiers(t *testing.T) {
	first, err := Construct(context.Background(), returnPolicyKB())
	require.NoError(t, err)
	second, err := Construct(context.Background(), returnPolicyKB())
	require.NoError(t, err)
	assert.Equal(t, nodeIDs(first), nodeIDs(second))
	assert.Equal(t, first.Stats(), second.Stats())
}

func TestConstructCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Construct(ctx, returnPolicyKB())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPersistsArtifact(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	st := store.NewFileStore(filepath.Join(t.TempDir(), "graphs", "g.json"))
	b := New(st, WithTracer(tp.Tracer("test")))

	res, err := b.Build(context.Background(), returnPolicyKB())
	require.NoError(t, err)

	assert.Equal(t, st.Location(), res.Location)
	assert.Equal(t, 2, res.NodeCount)
	assert.Equal(t, 1, res.EdgeCount)
	assert.NotEmpty(t, res.BuildID)
	require.NotNil(t, b.Graph())
	assert.Equal(t, 2, b.Graph().NodeCount())
	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, res, last)

	data, err := st.Load(context.Background())
	require.NoError(t, err)
	g, h, err := graph.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, res.BuildID, h.BuildID)
	assert.Equal(t, res.Stats, g.Stats())

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "builder.Build", spans[0].Name())
	assert.Len(t, spans[0].Events(), 3)
}

func TestBuildWithoutPoliciesKeepsPreviousArtifact(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	st := store.NewFileStore(filepath.Join(t.TempDir(), "g.json"))
	b := New(st, WithTracer(tp.Tracer("test")))

	first, err := b.Build(context.Background(), returnPolicyKB())
	require.NoError(t, err)
	before, err := st.Load(context.Background())
	require.NoError(t, err)

	res, err := b.Build(context.Background(), &knowledge.Base{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, kgraph.ErrNoPolicies)

	after, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed build must not touch the artifact")

	last, _ := b.Last()
	assert.Equal(t, first.BuildID, last.BuildID)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestBuildWithoutPoliciesWritesNothing(t *testing.T) {
	st := store.NewFileStore(filepath.Join(t.TempDir(), "g.json"))
	_, err := New(st).Build(context.Background(), &knowledge.Base{})
	require.Error(t, err)

	_, err = st.Load(context.Background())
	assert.ErrorIs(t, err, kgraph.ErrArtifactNotFound)
	_, ok := New(st).Last()
	assert.False(t, ok)
}
