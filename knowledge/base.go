package knowledge

// Section names. Each per-section file wraps its content under the key of
// the same name, and a single-file knowledge base carries all four at the
// top level.
const (
	SectionPolicies      = "policies"
	SectionEntities      = "entities"
	SectionRelationships = "relationships"
	SectionGuardrails    = "guardrails"
)

// Base is a normalized knowledge base snapshot. Slices preserve the order in
// which records were declared.
type Base struct {
	Policies      []Policy
	Entities      []EntityGroup
	Relationships Relationships

	// Guardrails are carried for downstream consumers only; they are never
	// represented in the graph.
	Guardrails map[string]any
}

// Policy is one entry of the policies section.
type Policy struct {
	// Key is the policy's key within the section. It becomes the node identifier.
	Key string `json:"-" yaml:"-"`

	ID       string         `json:"id" yaml:"id"`
	Title    string         `json:"title" yaml:"title"`
	Category string         `json:"category" yaml:"category"`
	Content  map[string]any `json:"content" yaml:"content"`
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
}

// MetadataID returns the external identifier of the policy: its id field,
// or metadata.id when the former is empty.
func (p Policy) MetadataID() string {
	if p.ID != "" {
		return p.ID
	}
	if id, ok := p.Metadata["id"].(string); ok {
		return id
	}
	return ""
}

// EntityGroup lists the entity names declared under one entity type.
type EntityGroup struct {
	Type  string
	Names []string
}

// Relationships holds declared connections.
type Relationships struct {
	PolicyConnections []Connection
	EntityConnections []Connection
}

// Connection is one declared edge. For policy connections both ends are
// policy keys; for entity connections From is an entity name and To a
// policy key. Relation and Strength are optional.
type Connection struct {
	From     string   `json:"from" yaml:"from"`
	To       string   `json:"to" yaml:"to"`
	Relation string   `json:"relation" yaml:"relation"`
	Strength *float64 `json:"strength" yaml:"strength"`
}

// RelationOr returns the declared relation, or def when none was declared.
func (c Connection) RelationOr(def string) string {
	if c.Relation == "" {
		return def
	}
	return c.Relation
}

// StrengthOr returns the declared strength, or def when none was declared.
func (c Connection) StrengthOr(def float64) float64 {
	if c.Strength == nil {
		return def
	}
	return *c.Strength
}

// ResolveEntity returns the type of the first entity group, in declaration
// order, that lists name. Names are matched exactly.
func (b *Base) ResolveEntity(name string) (string, bool) {
	for _, g := range b.Entities {
		for _, n := range g.Names {
			if n == name {
				return g.Type, true
			}
		}
	}
	return "", false
}

// Summary counts the records of each section.
type Summary struct {
	Policies          int `json:"policies"`
	EntityTypes       int `json:"entity_types"`
	Entities          int `json:"entities"`
	PolicyConnections int `json:"policy_connections"`
	EntityConnections int `json:"entity_connections"`
	Guardrails        int `json:"guardrails"`
}

// Summary reports per-section counts.
func (b *Base) Summary() Summary {
	s := Summary{
		Policies:          len(b.Policies),
		EntityTypes:       len(b.Entities),
		PolicyConnections: len(b.Relationships.PolicyConnections),
		EntityConnections: len(b.Relationships.EntityConnections),
		Guardrails:        len(b.Guardrails),
	}
	for _, g := range b.Entities {
		s.Entities += len(g.Names)
	}
	return s
}
