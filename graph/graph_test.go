package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/kgraph"
)

func sampleGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	_, _, err := g.AddNode(NewPolicyNode(Policy{
		Key:        "returns",
		Title:      "Return and Refund Policy",
		Category:   "customer_service",
		Content:    map[string]any{"return_window": "30 days"},
		MetadataID: "POL-001",
	}))
	require.NoError(t, err)
	_, _, err = g.AddNode(NewPolicyNode(Policy{Key: "shipping", Title: "Shipping Policy", Category: "shipping"}))
	require.NoError(t, err)
	_, _, err = g.AddNode(NewEntityNode(Entity{Type: "product_category", Name: "Electronics"}))
	require.NoError(t, err)

	require.NoError(t, g.AddEdge("entity::product_category::Electronics", "policy::returns", RelationGovernedBy, 0.9))
	require.NoError(t, g.AddEdge("policy::returns", "policy::shipping", RelationRelatedTo, 0.5))
	require.NoError(t, g.AddEdge("policy::returns", "policy::shipping", RelationContentSimilar, 0.4))
	return g
}

func TestNodeIDs(t *testing.T) {
	assert.Equal(t, "policy::returns", PolicyNodeID("returns"))
	assert.Equal(t, "entity::product_category::Electronics", EntityNodeID("product_category", "Electronics"))
	assert.Equal(t, "policy::returns", NewPolicyNode(Policy{Key: "returns"}).ID)
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindPolicy, KindEntity} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("guardrail")
	assert.Error(t, err)
}

func TestNodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		wantErr bool
	}{
		{name: "policy", node: NewPolicyNode(Policy{Key: "a"})},
		{name: "entity", node: NewEntityNode(Entity{Type: "t", Name: "n"})},
		{name: "missing id", node: Node{Kind: KindPolicy, Policy: &Policy{}}, wantErr: true},
		{name: "missing payload", node: Node{ID: "policy::x", Kind: KindPolicy}, wantErr: true},
		{name: "both payloads", node: Node{ID: "x", Kind: KindEntity, Entity: &Entity{}, Policy: &Policy{}}, wantErr: true},
		{name: "unknown kind", node: Node{ID: "x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.node.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddNodeIdempotent(t *testing.T) {
	g := New()
	first, added, err := g.AddNode(NewPolicyNode(Policy{Key: "returns", Title: "first"}))
	require.NoError(t, err)
	assert.True(t, added)

	second, added, err := g.AddNode(NewPolicyNode(Policy{Key: "returns", Title: "second"}))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, "first", g.Node(first).Policy.Title, "existing node is kept")
}

func TestAddEdgeGuards(t *testing.T) {
	g := sampleGraph(t)

	err := g.AddEdge("policy::returns", "policy::missing", RelationRelatedTo, 0.5)
	assert.True(t, errors.Is(err, kgraph.ErrNodeNotFound))

	for _, s := range []float64{-0.1, 1.1, math.NaN()} {
		err = g.AddEdge("policy::returns", "policy::shipping", RelationRelatedTo, s)
		assert.True(t, errors.Is(err, kgraph.ErrInvalidStrength), "strength %v", s)
	}
	assert.Equal(t, 3, g.EdgeCount())
}

func TestFreeze(t *testing.T) {
	g := sampleGraph(t)
	assert.Equal(t, StateBuilding, g.State())
	g.Freeze()
	assert.Equal(t, StateReadOnly, g.State())

	_, _, err := g.AddNode(NewPolicyNode(Policy{Key: "new"}))
	assert.ErrorIs(t, err, kgraph.ErrGraphFrozen)
	assert.ErrorIs(t, g.AddEdge("policy::returns", "policy::shipping", RelationRelatedTo, 0.1), kgraph.ErrGraphFrozen)
}

func TestAdjacency(t *testing.T) {
	g := sampleGraph(t)
	returns, ok := g.Lookup("policy::returns")
	require.True(t, ok)

	var out, in []Relation
	g.Out(returns, func(e Edge) { out = append(out, e.Relation) })
	g.In(returns, func(e Edge) { in = append(in, e.Relation) })

	assert.Equal(t, []Relation{RelationRelatedTo, RelationContentSimilar}, out, "parallel edges kept in order")
	assert.Equal(t, []Relation{RelationGovernedBy}, in)
	assert.Len(t, g.Nodes(KindPolicy), 2)
	assert.Len(t, g.Nodes(KindEntity), 1)
}

func TestStats(t *testing.T) {
	s := sampleGraph(t).Stats()
	assert.Equal(t, 3, s.Nodes)
	assert.Equal(t, 3, s.Edges)
	assert.Equal(t, 2, s.PolicyNodes)
	assert.Equal(t, 1, s.EntityNodes)
	assert.Equal(t, 1, s.Relations[RelationGovernedBy])

	var nilGraph *Graph
	assert.Equal(t, Stats{}, nilGraph.Stats())
	assert.True(t, nilGraph.Empty())
	assert.True(t, New().Empty())
}
