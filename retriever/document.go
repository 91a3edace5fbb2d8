package retriever

// RetrievalMethodGraphTraversal tags every document this package returns.
const RetrievalMethodGraphTraversal = "graph_traversal"

// Document is a policy surfaced by Retrieve.
type Document struct {
	// ID is the policy's external metadata id, or NodeID when it has none.
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Content  map[string]any `json:"content"`

	// Score is the traversal score after type weighting.
	Score float64 `json:"score"`

	RetrievalMethod string `json:"retrieval_method"`

	// NodeID is the internal graph identifier, for traceability.
	NodeID string `json:"node_id"`
}
