package index

import (
	"container/heap"

	"github.com/RobAntunes/lingodb/internal/format"
)

// maxDistHeap is a bounded max-heap of the best k candidates found so
// far during a k-nearest search: the worst (largest-distance)
// candidate sits at the root, so it can be evicted in O(log k) when a
// better one arrives.
type maxDistHeap []distanceResult

func (h maxDistHeap) Len() int            { return len(h) }
func (h maxDistHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h maxDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x interface{}) { *h = append(*h, x.(distanceResult)) }
func (h *maxDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// worst returns the current worst (largest) candidate distance.
// Callers must not call this on an empty heap.
func (h maxDistHeap) worst() float64 {
	return h[0].Distance
}

// drain returns every candidate currently held, in no particular
// order; the caller sorts afterward.
func (h maxDistHeap) drain() []distanceResult {
	out := make([]distanceResult, len(h))
	copy(out, h)
	return out
}

// pushCandidate adds cand to h if h has fewer than k entries, or if
// cand beats the current worst candidate, evicting that worst entry.
func pushCandidate(h *maxDistHeap, cand distanceResult, k int) {
	if h.Len() < k {
		heap.Push(h, cand)
		return
	}
	if cand.Distance < h.worst() {
		heap.Pop(h)
		heap.Push(h, cand)
	}
}

// subtreeEntry is an unexplored octree subtree queued for visiting,
// ordered by the minimum possible distance from the query centre to
// any point the subtree's bounds contain.
type subtreeEntry struct {
	node    format.OctreeNode
	minDist float64
}

// minSubtreeHeap is a min-heap of subtreeEntry ordered by minDist,
// giving the best-first traversal order for k-nearest search.
type minSubtreeHeap []subtreeEntry

func (h minSubtreeHeap) Len() int            { return len(h) }
func (h minSubtreeHeap) Less(i, j int) bool  { return h[i].minDist < h[j].minDist }
func (h minSubtreeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minSubtreeHeap) Push(x interface{}) { *h = append(*h, x.(subtreeEntry)) }
func (h *minSubtreeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
