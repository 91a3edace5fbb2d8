package graph

import (
	"fmt"

	"github.com/zero-day-ai/kgraph"
)

// State is the lifecycle state of a Graph.
type State uint8

const (
	// StateBuilding accepts node and edge additions.
	StateBuilding State = iota

	// StateReadOnly rejects every mutation. Graphs loaded from an artifact
	// are always read-only.
	StateReadOnly
)

// String returns a readable state name.
func (s State) String() string {
	if s == StateReadOnly {
		return "read_only"
	}
	return "building"
}

// Graph is a directed multigraph of policy and entity nodes.
//
// Nodes live in an arena addressed by NodeIndex; edges refer to nodes only
// through those handles. Insertion order of nodes and edges is preserved and
// is observable: it fixes the direction of derived similarity edges and breaks
// ties between equally scored retrieval results.
//
// A Graph is not safe for concurrent mutation. Once frozen it is immutable
// and may be shared by any number of readers without locking.
type Graph struct {
	nodes []Node
	index map[string]NodeIndex
	edges []Edge
	out   [][]int
	in    [][]int
	state State
}

// New returns an empty graph in the building state.
func New() *Graph {
	return &Graph{index: make(map[string]NodeIndex)}
}

// AddNode inserts n unless a node with the same identifier already exists.
// It returns the handle of the (new or existing) node and whether it was
// inserted.
func (g *Graph) AddNode(n Node) (NodeIndex, bool, error) {
	if g.state == StateReadOnly {
		return 0, false, kgraph.ErrGraphFrozen
	}
	if err := n.Validate(); err != nil {
		return 0, false, err
	}
	if idx, ok := g.index[n.ID]; ok {
		return idx, false, nil
	}
	idx := NodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.index[n.ID] = idx
	return idx, true, nil
}

// AddEdge links two existing nodes, identified by their ids.
// Parallel edges are allowed.
func (g *Graph) AddEdge(fromID, toID string, rel Relation, strength float64) error {
	if g.state == StateReadOnly {
		return kgraph.ErrGraphFrozen
	}
	from, ok := g.index[fromID]
	if !ok {
		return fmt.Errorf("%w: %s", kgraph.ErrNodeNotFound, fromID)
	}
	to, ok := g.index[toID]
	if !ok {
		return fmt.Errorf("%w: %s", kgraph.ErrNodeNotFound, toID)
	}
	return g.addEdge(from, to, rel, strength)
}

func (g *Graph) addEdge(from, to NodeIndex, rel Relation, strength float64) error {
	if err := ValidateStrength(strength); err != nil {
		return err
	}
	e := len(g.edges)
	g.edges = append(g.edges, Edge{From: from, To: to, Relation: rel, Strength: strength})
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	return nil
}

// Freeze moves the graph to the read-only state. It is idempotent.
func (g *Graph) Freeze() { g.state = StateReadOnly }

// State returns the lifecycle state.
func (g *Graph) State() State { return g.state }

// Lookup returns the handle of the node with the given id.
func (g *Graph) Lookup(id string) (NodeIndex, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// Has reports whether a node with the given id exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node returns the node at idx. It panics if idx is out of range.
func (g *Graph) Node(idx NodeIndex) Node { return g.nodes[idx] }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, counting parallel edges separately.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Empty reports whether the graph has no nodes.
func (g *Graph) Empty() bool { return g == nil || len(g.nodes) == 0 }

// Nodes returns the handles of every node of kind k in insertion order.
func (g *Graph) Nodes(k Kind) []NodeIndex {
	var out []NodeIndex
	for i, n := range g.nodes {
		if n.Kind == k {
			out = append(out, NodeIndex(i))
		}
	}
	return out
}

// Edges returns every edge in insertion order. The slice must not be modified.
func (g *Graph) Edges() []Edge { return g.edges }

// Out calls fn for every edge leaving idx, in insertion order.
func (g *Graph) Out(idx NodeIndex, fn func(Edge)) {
	for _, e := range g.out[idx] {
		fn(g.edges[e])
	}
}

// In calls fn for every edge entering idx, in insertion order.
func (g *Graph) In(idx NodeIndex, fn func(Edge)) {
	for _, e := range g.in[idx] {
		fn(g.edges[e])
	}
}
