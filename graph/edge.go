package graph

import (
	"fmt"
	"math"

	"github.com/zero-day-ai/kgraph"
)

// Relation labels an edge. Declared relationships may carry any label;
// the constants below are the ones the builder produces or defaults to.
type Relation string

const (
	// RelationRelatedTo is the default label of declared policy connections.
	RelationRelatedTo Relation = "related_to"

	// RelationGovernedBy is the default label of declared entity connections.
	RelationGovernedBy Relation = "governed_by"

	// RelationContentSimilar links two policies whose keyword sets overlap.
	RelationContentSimilar Relation = "content_similar"

	// RelationMentionedIn links an entity to a policy whose keywords mention it.
	RelationMentionedIn Relation = "mentioned_in"
)

// String returns the label.
func (r Relation) String() string { return string(r) }

// NodeIndex is a stable handle into a graph's node arena.
type NodeIndex int

// Edge is a directed, labelled, weighted link between two nodes. Endpoints
// are arena handles, never embedded node records.
type Edge struct {
	From     NodeIndex
	To       NodeIndex
	Relation Relation
	Strength float64
}

// ValidateStrength rejects strengths outside [0,1] and NaN.
func ValidateStrength(s float64) error {
	if math.IsNaN(s) || s < 0 || s > 1 {
		return fmt.Errorf("%w: %v", kgraph.ErrInvalidStrength, s)
	}
	return nil
}
