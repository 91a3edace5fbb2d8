// Package builder compiles a knowledge base into a graph artifact.
//
// A build materializes one node per policy and per declared entity, adds the
// declared policy and entity connections whose endpoints exist, and derives
// two kinds of edges from lexical overlap:
//
//   - content_similar: between two policies whose keyword sets have a Jaccard
//     similarity strictly above the threshold (0.3 by default), with the
//     similarity as strength
//   - mentioned_in: from an entity to each policy whose keywords contain the
//     entity's lowercased name, at a fixed strength (0.6 by default)
//
// The finished graph is frozen, serialized and saved to an ArtifactStore,
// replacing the previous artifact. A knowledge base without policies is the
// only fatal condition.
package builder
