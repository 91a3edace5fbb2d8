package graph

// Stats summarizes a graph for build reports and health endpoints.
type Stats struct {
	Nodes       int              `json:"nodes"`
	Edges       int              `json:"edges"`
	PolicyNodes int              `json:"policy_nodes"`
	EntityNodes int              `json:"entity_nodes"`
	Relations   map[Relation]int `json:"relations,omitempty"`
}

// Stats counts nodes by kind and edges by relation. A nil graph has zero stats.
func (g *Graph) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	s := Stats{
		Nodes: len(g.nodes),
		Edges: len(g.edges),
	}
	for _, n := range g.nodes {
		switch n.Kind {
		case KindPolicy:
			s.PolicyNodes++
		case KindEntity:
			s.EntityNodes++
		}
	}
	if len(g.edges) > 0 {
		s.Relations = make(map[Relation]int)
		for _, e := range g.edges {
			s.Relations[e.Relation]++
		}
	}
	return s
}
