// Package filter narrows retrieved documents with CEL expressions.
//
// An expression sees one document at a time through the variables id,
// title, category, score, node_id and content, and must evaluate to a
// bool:
//
//	category == "shipping" && score > 0.5
//	has(content.return_window) && title.contains("Refund")
//
// Filtering runs after retrieval and never changes ranking or scores.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/kgraph"
	"github.com/zero-day-ai/kgraph/retriever"
)

// costLimit bounds the evaluation cost of a single expression run.
const costLimit = 100_000

var env = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("node_id", cel.StringType),
		cel.Variable("content", cel.MapType(cel.StringType, cel.DynType)),
	)
})

// Filter is a compiled expression. The zero value and a nil *Filter
// match every document. A Filter is safe for concurrent use.
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile parses and type-checks expr. A blank expression yields a filter
// that matches everything.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Filter{}, nil
	}

	e, err := env()
	if err != nil {
		return nil, kgraph.NewInternalError("filter.Compile", fmt.Errorf("failed to create CEL environment: %w", err))
	}

	ast, iss := e.Compile(expr)
	if iss.Err() != nil {
		return nil, kgraph.NewValidationError("filter.Compile", iss.Err()).
			WithContext(map[string]any{"expression": expr})
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, kgraph.NewValidationError("filter.Compile",
			fmt.Errorf("expression must evaluate to bool, got %s", out)).
			WithContext(map[string]any{"expression": expr})
	}

	prg, err := e.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, kgraph.NewValidationError("filter.Compile", err).
			WithContext(map[string]any{"expression": expr})
	}

	return &Filter{expr: expr, prg: prg}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Filter {
	f, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Empty reports whether the filter matches everything.
func (f *Filter) Empty() bool { return f == nil || f.prg == nil }

// Match evaluates the filter against doc. Runtime errors, such as reading
// a content key the document does not have, are returned; guard optional
// keys with has().
func (f *Filter) Match(doc retriever.Document) (bool, error) {
	if f.Empty() {
		return true, nil
	}

	content := doc.Content
	if content == nil {
		content = map[string]any{}
	}

	out, _, err := f.prg.Eval(map[string]any{
		"id":       doc.ID,
		"title":    doc.Title,
		"category": doc.Category,
		"score":    doc.Score,
		"node_id":  doc.NodeID,
		"content":  content,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter on %s: %w", doc.NodeID, err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter on %s returned %s, not bool", doc.NodeID, out.Type().TypeName())
	}
	return b, nil
}

// Apply keeps the documents that match, in order. Evaluation errors do not
// stop the pass: failing documents are dropped and the errors returned
// joined alongside the kept documents.
func (f *Filter) Apply(docs []retriever.Document) ([]retriever.Document, error) {
	if f.Empty() {
		return docs, nil
	}

	kept := make([]retriever.Document, 0, len(docs))
	var errs []error
	for _, d := range docs {
		ok, err := f.Match(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			kept = append(kept, d)
		}
	}
	return kept, errors.Join(errs...)
}
