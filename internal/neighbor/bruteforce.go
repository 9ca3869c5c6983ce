package neighbor

import (
	"github.com/golang/geo/r3"
)

// BruteForce answers queries by scanning every point.
type BruteForce struct {
	points []r3.Vector
}

// NewBruteForce indexes points. The slice is retained, not copied.
func NewBruteForce(points []r3.Vector) *BruteForce {
	return &BruteForce{points: points}
}

func (b *BruteForce) Len() int { return len(b.points) }

func (b *BruteForce) Point(i int) r3.Vector { return b.points[i] }

func (b *BruteForce) Radius(i int, r float64) []int {
	if r <= 0 {
		return nil
	}
	q := b.points[i]
	r2 := r * r
	var out []int
	for j, p := range b.points {
		d2 := dist2(q, p)
		if d2 > 0 && d2 <= r2 {
			out = append(out, j)
		}
	}
	return out
}

func (b *BruteForce) KNearest(i, k int) []int {
	if k <= 0 {
		return nil
	}
	q := b.points[i]
	h := newCandidateHeap(k)
	for j, p := range b.points {
		if j == i {
			continue
		}
		h.offer(candidate{index: j, d2: dist2(q, p)})
	}
	return h.sorted()
}
