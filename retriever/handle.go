package retriever

import (
	"context"
	"sync/atomic"

	"github.com/zero-day-ai/kgraph/store"
)

// Handle publishes the current Retriever to concurrent readers. A reload
// replaces the whole retriever in one atomic store, so in-flight queries
// keep the graph they started with and new queries see the new one.
type Handle struct {
	cur atomic.Pointer[Retriever]
}

// NewHandle returns a handle serving r.
func NewHandle(r *Retriever) *Handle {
	h := &Handle{}
	h.cur.Store(r)
	return h
}

// Load returns the current retriever.
func (h *Handle) Load() *Retriever { return h.cur.Load() }

// Store swaps in r.
func (h *Handle) Store(r *Retriever) { h.cur.Store(r) }

// Retrieve queries the current retriever. With no retriever installed it
// returns an empty slice.
func (h *Handle) Retrieve(ctx context.Context, query string, k int) []Document {
	r := h.cur.Load()
	if r == nil {
		return []Document{}
	}
	return r.Retrieve(ctx, query, k)
}

// Reload opens a fresh retriever from st and installs it. On error the
// current retriever is kept.
func (h *Handle) Reload(ctx context.Context, st store.ArtifactStore, opts ...Option) (*Retriever, error) {
	r, err := Open(ctx, st, opts...)
	if err != nil {
		return nil, err
	}
	h.cur.Store(r)
	return r, nil
}
