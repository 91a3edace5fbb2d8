package serve

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zero-day-ai/kgraph/graph"
	"github.com/zero-day-ai/kgraph/retriever"
)

func documentsToStruct(docs []retriever.Document) (*structpb.Struct, error) {
	list := make([]any, 0, len(docs))
	for _, d := range docs {
		list = append(list, documentToMap(d))
	}
	return structpb.NewStruct(map[string]any{
		"documents": list,
		"count":     len(docs),
	})
}

func documentToMap(d retriever.Document) map[string]any {
	content := map[string]any{}
	for k, v := range d.Content {
		content[k] = normalize(v)
	}
	return map[string]any{
		"id":               d.ID,
		"title":            d.Title,
		"category":         d.Category,
		"content":          content,
		"score":            d.Score,
		"retrieval_method": d.RetrievalMethod,
		"node_id":          d.NodeID,
	}
}

func documentFromStruct(s *structpb.Struct) retriever.Document {
	f := s.GetFields()
	d := retriever.Document{
		ID:              f["id"].GetStringValue(),
		Title:           f["title"].GetStringValue(),
		Category:        f["category"].GetStringValue(),
		Score:           f["score"].GetNumberValue(),
		RetrievalMethod: f["retrieval_method"].GetStringValue(),
		NodeID:          f["node_id"].GetStringValue(),
	}
	if c := f["content"].GetStructValue(); c != nil {
		d.Content = c.AsMap()
	} else {
		d.Content = map[string]any{}
	}
	return d
}

// normalize rewrites content values into the shapes structpb.NewValue
// accepts. Knowledge base content decoded from YAML or JSON is already
// map[string]any and []any; typed slices and maps come from callers that
// build graphs in code.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64, float32, int, int32, int64, uint, uint32, uint64:
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	default:
		return fmt.Sprint(t)
	}
}

func statsToMap(s graph.Stats) map[string]any {
	relations := make(map[string]any, len(s.Relations))
	names := make([]string, 0, len(s.Relations))
	for r := range s.Relations {
		names = append(names, string(r))
	}
	sort.Strings(names)
	for _, n := range names {
		relations[n] = s.Relations[graph.Relation(n)]
	}
	return map[string]any{
		"nodes":        s.Nodes,
		"edges":        s.Edges,
		"policy_nodes": s.PolicyNodes,
		"entity_nodes": s.EntityNodes,
		"relations":    relations,
	}
}
