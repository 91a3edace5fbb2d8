package graph

import (
	"errors"
	"fmt"
)

// Kind distinguishes the two node variants.
type Kind uint8

const (
	// KindPolicy marks a policy node. Policies are the only nodes that
	// surface as retrieved documents.
	KindPolicy Kind = iota + 1

	// KindEntity marks a domain entity node (a product category, a carrier,
	// a payment method). Entities only propagate traversal score.
	KindEntity
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPolicy:
		return "policy"
	case KindEntity:
		return "entity"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "policy":
		return KindPolicy, nil
	case "entity":
		return KindEntity, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}

// PolicyNodeID returns the identifier of the policy keyed policyID.
func PolicyNodeID(policyID string) string {
	return "policy::" + policyID
}

// EntityNodeID returns the identifier of the entity named name under entityType.
func EntityNodeID(entityType, name string) string {
	return "entity::" + entityType + "::" + name
}

// Policy is the payload of a policy node.
type Policy struct {
	// Key is the policy's key in the knowledge base.
	Key string `json:"key"`

	// Title is the human-readable policy title.
	Title string `json:"title"`

	// Category groups related policies (e.g., "shipping", "customer_service").
	Category string `json:"category"`

	// Content is the free-form structured body: a nested mapping of string
	// keys to scalars, lists and further mappings.
	Content map[string]any `json:"content,omitempty"`

	// MetadataID is the external identifier surfaced on retrieved documents.
	// Empty when the knowledge base carried none.
	MetadataID string `json:"metadata_id,omitempty"`
}

// Entity is the payload of an entity node.
type Entity struct {
	// Type is the entity-type tag (e.g., "product_category").
	Type string `json:"type"`

	// Name is the display name as declared in the knowledge base.
	Name string `json:"name"`
}

// Node is one vertex of the graph. Exactly one of Policy and Entity is set,
// matching Kind.
type Node struct {
	ID     string
	Kind   Kind
	Policy *Policy
	Entity *Entity
}

// NewPolicyNode creates a policy node with its deterministic identifier.
func NewPolicyNode(p Policy) Node {
	return Node{ID: PolicyNodeID(p.Key), Kind: KindPolicy, Policy: &p}
}

// NewEntityNode creates an entity node with its deterministic identifier.
func NewEntityNode(e Entity) Node {
	return Node{ID: EntityNodeID(e.Type, e.Name), Kind: KindEntity, Entity: &e}
}

// IsPolicy reports whether n is a policy node.
func (n Node) IsPolicy() bool { return n.Kind == KindPolicy }

// IsEntity reports whether n is an entity node.
func (n Node) IsEntity() bool { return n.Kind == KindEntity }

// Validate checks that the payload matches the kind.
func (n Node) Validate() error {
	if n.ID == "" {
		return errors.New("node id is required")
	}
	switch n.Kind {
	case KindPolicy:
		if n.Policy == nil || n.Entity != nil {
			return fmt.Errorf("node %s: policy kind requires a policy payload only", n.ID)
		}
	case KindEntity:
		if n.Entity == nil || n.Policy != nil {
			return fmt.Errorf("node %s: entity kind requires an entity payload only", n.ID)
		}
	default:
		return fmt.Errorf("node %s: unknown kind %d", n.ID, n.Kind)
	}
	return nil
}
