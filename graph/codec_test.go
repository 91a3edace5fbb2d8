package graph

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/kgraph"
)

func TestMarshalRoundTrip(t *testing.T) {
	g := sampleGraph(t)
	buildID := uuid.NewString()
	builtAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := Marshal(g, Header{BuildID: buildID, BuiltAt: builtAt})
	require.NoError(t, err)

	loaded, h, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, h.FormatVersion)
	assert.Equal(t, buildID, h.BuildID)
	assert.True(t, builtAt.Equal(h.BuiltAt))
	assert.Equal(t, 3, h.NodeCount)
	assert.Equal(t, 3, h.EdgeCount)

	assert.Equal(t, StateReadOnly, loaded.State())
	assert.Equal(t, g.Stats(), loaded.Stats())

	idx, ok := loaded.Lookup("policy::returns")
	require.True(t, ok)
	p := loaded.Node(idx).Policy
	assert.Equal(t, "Return and Refund Policy", p.Title)
	assert.Equal(t, "POL-001", p.MetadataID)
	assert.Equal(t, "30 days", p.Content["return_window"])

	for i, e := range g.Edges() {
		le := loaded.Edges()[i]
		assert.Equal(t, g.Node(e.From).ID, loaded.Node(le.From).ID)
		assert.Equal(t, g.Node(e.To).ID, loaded.Node(le.To).ID)
		assert.Equal(t, e.Relation, le.Relation)
		assert.Equal(t, e.Strength, le.Strength)
	}
}

func TestUnmarshalRejectsCorruptArtifacts(t *testing.T) {
	valid, err := Marshal(sampleGraph(t), Header{BuildID: "b"})
	require.NoError(t, err)

	mutate := func(fn func(m map[string]any)) []byte {
		var m map[string]any
		require.NoError(t, json.Unmarshal(valid, &m))
		fn(m)
		out, err := json.Marshal(m)
		require.NoError(t, err)
		return out
	}
	edges := func(m map[string]any) []any { return m["edges"].([]any) }
	nodes := func(m map[string]any) []any { return m["nodes"].([]any) }

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("\x80\x04pickle")},
		{name: "empty", data: []byte{}},
		{name: "wrong version", data: mutate(func(m map[string]any) { m["format_version"] = 99 })},
		{name: "dangling edge", data: mutate(func(m map[string]any) {
			edges(m)[0].(map[string]any)["to"] = "policy::ghost"
		})},
		{name: "strength out of range", data: mutate(func(m map[string]any) {
			edges(m)[0].(map[string]any)["strength"] = 3.5
		})},
		{name: "unknown kind", data: mutate(func(m map[string]any) {
			nodes(m)[0].(map[string]any)["kind"] = "guardrail"
		})},
		{name: "duplicate node", data: mutate(func(m map[string]any) {
			m["nodes"] = append(nodes(m), nodes(m)[0])
			m["node_count"] = 4
		})},
		{name: "id mismatch", data: mutate(func(m map[string]any) {
			nodes(m)[0].(map[string]any)["id"] = "policy::other"
		})},
		{name: "count mismatch", data: mutate(func(m map[string]any) { m["edge_count"] = 7 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, err := Unmarshal(tt.data)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, kgraph.ErrCorruptArtifact)
		})
	}
}

func TestMarshalEmptyGraph(t *testing.T) {
	data, err := Marshal(New(), Header{})
	require.NoError(t, err)

	g, h, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, g.Empty())
	assert.Equal(t, 0, h.NodeCount)
}
