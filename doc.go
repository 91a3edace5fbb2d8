// Package kgraph is a structured knowledge graph index and retriever.
//
// A knowledge base of policies, domain entities and declared relationships is
// compiled once into a heterogeneous graph, persisted as an artifact, and then
// queried many times through multi-hop traversal with score decay. Retrieval is
// lexical and structural only: there is no embedding search and no fallback to
// one.
//
// # Packages
//
//   - knowledge: loads the policies, entities, relationships and guardrails sections
//   - keyword: tokenizing, keyword sets and Jaccard similarity
//   - graph: the typed node/edge arena and the versioned artifact codec
//   - builder: turns a knowledge base into a graph and persists it
//   - retriever: answers Retrieve(query, k) against a loaded graph
//   - store: artifact backends (file, Redis, etcd, Badger)
//   - config: YAML plus environment configuration
//   - filter: CEL post-filters over retrieved documents
//   - health: health checks for the artifact and loaded graph
//   - watch: reloads a retriever when the artifact changes
//   - registry: etcd-backed announcement of running servers
//   - serve: the gRPC GraphRetriever service
//
// The kgraph command in cmd/kgraph wires these together.
//
// # Getting Started
//
//	loader := knowledge.NewLoader(knowledge.WithLogger(logger))
//	kb := loader.LoadDir("data")
//
//	st := store.NewFileStore("data/graphs/ecommerce_minirag_graph.json")
//	result, err := builder.New(st).Build(ctx, kb)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	r, err := retriever.New(ctx, st)
//	if err != nil {
//		log.Fatal(err)
//	}
//	docs := r.Retrieve(ctx, "what is your return policy", 5)
//
// # Error Handling
//
// Build and storage failures are returned as *Error values carrying the
// operation and a Kind. They wrap the sentinel errors declared in this package,
// so errors.Is(err, ErrNoPolicies) works through any amount of wrapping.
// Retrieval never returns an error: a missing or corrupt artifact yields an
// empty graph and every query against it returns no documents.
package kgraph
