// Package merger combines ranked partial results from multiple partitions
// into a single global top-k list using a bounded min-heap.
package merger

import (
	"container/heap"

	"github.com/studykit/qadex/internal/search/ranker"
)

// TopK merges any number of ranked partial result slices and returns the k
// best entries globally, ordered by score descending with ties broken by the
// entry's original document order. k <= 0 returns all merged entries.
func TopK(k int, partials ...[]ranker.ScoredEntry) []ranker.ScoredEntry {
	total := 0
	for _, p := range partials {
		total += len(p)
	}
	if k <= 0 || k > total {
		k = total
	}
	if k == 0 {
		return []ranker.ScoredEntry{}
	}

	h := &minHeap{}
	heap.Init(h)
	for _, partial := range partials {
		for _, se := range partial {
			if h.Len() < k {
				heap.Push(h, se)
				continue
			}
			if better(se, (*h)[0]) {
				(*h)[0] = se
				heap.Fix(h, 0)
			}
		}
	}

	// Pop yields worst-first; fill the result back to front.
	out := make([]ranker.ScoredEntry, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ranker.ScoredEntry)
	}
	return out
}

// better reports whether a outranks b.
func better(a, b ranker.ScoredEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Seq < b.Seq
}

// minHeap keeps the current worst candidate at the root so it can be
// evicted cheaply when a better entry arrives.
type minHeap []ranker.ScoredEntry

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(ranker.ScoredEntry)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
