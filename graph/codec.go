package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zero-day-ai/kgraph"
)

// FormatVersion is the artifact layout version written by Marshal.
const FormatVersion = 1

// Header describes a serialized graph.
type Header struct {
	FormatVersion int       `json:"format_version"`
	BuildID       string    `json:"build_id"`
	BuiltAt       time.Time `json:"built_at"`
	NodeCount     int       `json:"node_count"`
	EdgeCount     int       `json:"edge_count"`
}

type artifact struct {
	Header
	Nodes []artifactNode `json:"nodes"`
	Edges []artifactEdge `json:"edges"`
}

type artifactNode struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Policy *Policy `json:"policy,omitempty"`
	Entity *Entity `json:"entity,omitempty"`
}

type artifactEdge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Relation Relation `json:"relation"`
	Strength float64  `json:"strength"`
}

// Marshal serializes g. The counts and format version in h are filled in
// from the graph; BuildID and BuiltAt are taken as given.
func Marshal(g *Graph, h Header) ([]byte, error) {
	a := artifact{
		Header: h,
		Nodes:  make([]artifactNode, 0, len(g.nodes)),
		Edges:  make([]artifactEdge, 0, len(g.edges)),
	}
	a.FormatVersion = FormatVersion
	a.NodeCount = len(g.nodes)
	a.EdgeCount = len(g.edges)

	for _, n := range g.nodes {
		a.Nodes = append(a.Nodes, artifactNode{
			ID:     n.ID,
			Kind:   n.Kind.String(),
			Policy: n.Policy,
			Entity: n.Entity,
		})
	}
	for _, e := range g.edges {
		a.Edges = append(a.Edges, artifactEdge{
			From:     g.nodes[e.From].ID,
			To:       g.nodes[e.To].ID,
			Relation: e.Relation,
			Strength: e.Strength,
		})
	}

	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph artifact: %w", err)
	}
	return data, nil
}

// Unmarshal decodes an artifact written by Marshal into a read-only graph.
// Any structural problem (unknown version or kind, duplicate node, dangling
// edge, strength out of range, count mismatch) is reported as
// kgraph.ErrCorruptArtifact.
func Unmarshal(data []byte) (*Graph, Header, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, Header{}, corrupt("decode: %v", err)
	}
	if a.FormatVersion != FormatVersion {
		return nil, a.Header, corrupt("unsupported format version %d", a.FormatVersion)
	}

	g := New()
	for i, an := range a.Nodes {
		kind, err := ParseKind(an.Kind)
		if err != nil {
			return nil, a.Header, corrupt("node %d: %v", i, err)
		}
		n := Node{ID: an.ID, Kind: kind, Policy: an.Policy, Entity: an.Entity}
		if _, added, err := g.AddNode(n); err != nil {
			return nil, a.Header, corrupt("node %d: %v", i, err)
		} else if !added {
			return nil, a.Header, corrupt("duplicate node %s", an.ID)
		}
		if want := expectedID(n); want != n.ID {
			return nil, a.Header, corrupt("node %s: id does not match payload (%s)", n.ID, want)
		}
	}
	for i, ae := range a.Edges {
		if err := g.AddEdge(ae.From, ae.To, ae.Relation, ae.Strength); err != nil {
			return nil, a.Header, corrupt("edge %d: %v", i, err)
		}
	}
	if a.NodeCount != g.NodeCount() || a.EdgeCount != g.EdgeCount() {
		return nil, a.Header, corrupt("header counts %d/%d do not match body %d/%d",
			a.NodeCount, a.EdgeCount, g.NodeCount(), g.EdgeCount())
	}

	g.Freeze()
	return g, a.Header, nil
}

func expectedID(n Node) string {
	if n.Kind == KindPolicy {
		return PolicyNodeID(n.Policy.Key)
	}
	return EntityNodeID(n.Entity.Type, n.Entity.Name)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", kgraph.ErrCorruptArtifact, fmt.Sprintf(format, args...))
}
