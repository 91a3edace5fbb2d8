// Package knowledge loads a structured knowledge base: policies, entities,
// declared relationships and guardrails.
//
// Two layouts are read. LoadDir reads one file per section from a data
// directory; each file wraps its section in a key of the same name:
//
//	{"policies": {"return_policy": {"id": "POL-001", "title": "Return and Refund Policy", ...}}}
//	{"entities": {"product_category": ["Electronics", "Clothing"]}}
//	{"relationships": {"policy_connections": [...], "entity_connections": [...]}}
//	{"guardrails": {...}}
//
// LoadFile reads a single document holding all four sections at the top level.
// Either layout may be JSON or YAML.
//
// Declaration order of policies and entity types is preserved because it is
// observable downstream: it decides which entity type a relationship resolves
// to when a name is listed under several types.
package knowledge
