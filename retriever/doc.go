// Package retriever answers natural-language queries against a built
// knowledge graph.
//
// A query is lowercased and matched against node text to seed scores on
// policies and entities. Seed scores then spread along edges in both
// directions for a bounded number of hops, decaying with edge strength and
// direction. Reached nodes are weighted by type and ranked, and only policy
// nodes are returned as documents. Entities exist to carry score between
// policies.
//
// Retrieval is read-only and safe for concurrent use. Use Handle to swap in
// a rebuilt graph without interrupting readers.
//
//	r, err := retriever.New(ctx, store.NewFileStore(""))
//	if err != nil {
//		return err
//	}
//	for _, doc := range r.Retrieve(ctx, "what is your return policy", 5) {
//		fmt.Println(doc.Title, doc.Score)
//	}
package retriever
