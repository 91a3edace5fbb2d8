package retriever

import (
	"container/heap"

	"github.com/zero-day-ai/kgraph/graph"
)

// scored is a node with its propagated score.
type scored struct {
	node  graph.NodeIndex
	score float64
}

type candidate struct {
	node  graph.NodeIndex
	score float64
	hop   int
	seq   int
}

// frontier is a max-heap of candidates by score. Equal scores pop in push
// order so traversal is deterministic.
type frontier []candidate

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].score != f[j].score {
		return f[i].score > f[j].score
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(candidate)) }
func (f *frontier) Pop() any {
	old := *f
	c := old[len(old)-1]
	*f = old[:len(old)-1]
	return c
}

// traverse expands the seeds along outgoing and incoming edges for at most
// depth hops. Crossing an edge multiplies the score by its strength and by
// the direction's decay. A node is reported with the best score of any path
// of at most depth hops. Arrivals are tracked per hop count, so a node
// reached again in fewer hops is queued even when its score is lower. The
// result lists every reached node in discovery order.
func traverse(g *graph.Graph, seeds []scored, depth int) []scored {
	if depth < 0 {
		depth = 0
	}
	best := make(map[graph.NodeIndex]float64, len(seeds))
	// reach[n][h] is the best score queued for n at exactly h hops.
	reach := make(map[graph.NodeIndex][]float64, len(seeds))
	order := make([]graph.NodeIndex, 0, len(seeds))
	pq := &frontier{}
	seq := 0

	relax := func(n graph.NodeIndex, score float64, hop int) {
		hops, seen := reach[n]
		if !seen {
			hops = make([]float64, depth+1)
			for i := range hops {
				hops[i] = -1
			}
			reach[n] = hops
			order = append(order, n)
			best[n] = score
		}
		if dominated(hops, score, hop+1) {
			return
		}
		hops[hop] = score
		if score > best[n] {
			best[n] = score
		}
		heap.Push(pq, candidate{node: n, score: score, hop: hop, seq: seq})
		seq++
	}

	for _, s := range seeds {
		relax(s.node, s.score, 0)
	}

	for pq.Len() > 0 {
		c := heap.Pop(pq).(candidate)
		hops := reach[c.node]
		if c.hop >= depth || c.score < hops[c.hop] || dominated(hops, c.score, c.hop) {
			continue
		}

		g.Out(c.node, func(e graph.Edge) {
			relax(e.To, c.score*e.Strength*outgoingDecay, c.hop+1)
		})
		g.In(c.node, func(e graph.Edge) {
			relax(e.From, c.score*e.Strength*incomingDecay, c.hop+1)
		})
	}

	out := make([]scored, len(order))
	for i, n := range order {
		out[i] = scored{node: n, score: best[n]}
	}
	return out
}

// dominated reports whether an arrival in fewer than limit hops scored at
// least score.
func dominated(hops []float64, score float64, limit int) bool {
	for h := 0; h < limit; h++ {
		if hops[h] >= score {
			return true
		}
	}
	return false
}
