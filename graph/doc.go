// Package graph holds the typed knowledge graph: policy and entity nodes in
// an arena, directed labelled edges between arena handles, and the versioned
// JSON artifact a built graph is persisted as.
//
// Node identifiers are deterministic. A policy keyed "returns" is always
// "policy::returns"; the entity "Electronics" of type "product_category" is
// always "entity::product_category::Electronics". Rebuilding from an unchanged
// knowledge base therefore yields the same identifier set.
//
// Graphs move through two states. While building, nodes and edges may be
// added. After Freeze, or after Unmarshal, every mutation fails with
// kgraph.ErrGraphFrozen and the graph can be read concurrently.
package graph
