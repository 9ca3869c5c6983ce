package neighbor

import (
	"container/heap"
	"slices"
)

var _ heap.Interface = (*candidateHeap)(nil)

// candidate is a point index with its squared distance to the query.
type candidate struct {
	index int
	d2    float64
}

// worse reports whether a ranks after b: farther, or equally far with a
// higher index.
func worse(a, b candidate) bool {
	if a.d2 != b.d2 {
		return a.d2 > b.d2
	}
	return a.index > b.index
}

// candidateHeap is a bounded max-heap keyed on worse, so the root is the
// current k-th best candidate.
type candidateHeap struct {
	items    []candidate
	capacity int
}

func newCandidateHeap(capacity int) *candidateHeap {
	return &candidateHeap{items: make([]candidate, 0, capacity), capacity: capacity}
}

func (h *candidateHeap) Len() int           { return len(h.items) }
func (h *candidateHeap) Less(i, j int) bool { return worse(h.items[i], h.items[j]) }
func (h *candidateHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x any) {
	h.items = append(h.items, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *candidateHeap) full() bool {
	return len(h.items) >= h.capacity
}

// top returns the worst retained candidate.
func (h *candidateHeap) top() candidate {
	return h.items[0]
}

// offer inserts c if the heap has room or c beats the worst candidate.
func (h *candidateHeap) offer(c candidate) {
	if !h.full() {
		heap.Push(h, c)
		return
	}
	if worse(h.top(), c) {
		h.items[0] = c
		heap.Fix(h, 0)
	}
}

// sorted returns the retained indices best first.
func (h *candidateHeap) sorted() []int {
	items := slices.Clone(h.items)
	slices.SortFunc(items, func(a, b candidate) int {
		switch {
		case worse(b, a):
			return -1
		case worse(a, b):
			return 1
		default:
			return 0
		}
	})
	out := make([]int, len(items))
	for i, c := range items {
		out[i] = c.index
	}
	return out
}
