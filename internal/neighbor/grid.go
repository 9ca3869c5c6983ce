package neighbor

import (
	"math"
	"slices"

	"github.com/golang/geo/r3"
)

// shellScanFactor bounds k-NN shell expansion: once the block of cells
// visited would exceed this multiple of the occupied cell count, the query
// falls back to a full scan.
const shellScanFactor = 4

// cellKey identifies one grid cell.
type cellKey struct {
	X, Y, Z int64
}

// Grid is a uniform spatial index. Each point is bucketed by
// floor(coord/cellSize) on every axis; queries visit only the cells that can
// contain a match.
type Grid struct {
	points   []r3.Vector
	cellSize float64
	cells    map[cellKey][]int
	lo, hi   cellKey
}

// NewGrid indexes points into cells of the given edge, which must be
// positive. The points slice is retained, not copied.
func NewGrid(points []r3.Vector, cellSize float64) *Grid {
	g := &Grid{
		points:   points,
		cellSize: cellSize,
		cells:    make(map[cellKey][]int, len(points)/DefaultPointsPerCell+1),
	}
	for i, p := range points {
		k := g.keyFor(p)
		g.cells[k] = append(g.cells[k], i)
		if i == 0 {
			g.lo, g.hi = k, k
			continue
		}
		g.lo = cellKey{min(g.lo.X, k.X), min(g.lo.Y, k.Y), min(g.lo.Z, k.Z)}
		g.hi = cellKey{max(g.hi.X, k.X), max(g.hi.Y, k.Y), max(g.hi.Z, k.Z)}
	}
	return g
}

func (g *Grid) Len() int { return len(g.points) }

func (g *Grid) Point(i int) r3.Vector { return g.points[i] }

// CellSize returns the grid edge.
func (g *Grid) CellSize() float64 { return g.cellSize }

// OccupiedCells returns the number of non-empty cells.
func (g *Grid) OccupiedCells() int { return len(g.cells) }

func (g *Grid) keyFor(p r3.Vector) cellKey {
	return cellKey{
		X: int64(math.Floor(p.X / g.cellSize)),
		Y: int64(math.Floor(p.Y / g.cellSize)),
		Z: int64(math.Floor(p.Z / g.cellSize)),
	}
}

func (g *Grid) Radius(i int, r float64) []int {
	if r <= 0 {
		return nil
	}
	q := g.points[i]
	r2 := r * r
	lo := g.keyFor(q.Sub(r3.Vector{X: r, Y: r, Z: r}))
	hi := g.keyFor(q.Add(r3.Vector{X: r, Y: r, Z: r}))
	lo = cellKey{max(lo.X, g.lo.X), max(lo.Y, g.lo.Y), max(lo.Z, g.lo.Z)}
	hi = cellKey{min(hi.X, g.hi.X), min(hi.Y, g.hi.Y), min(hi.Z, g.hi.Z)}

	var out []int
	collect := func(bucket []int) {
		for _, j := range bucket {
			d2 := dist2(q, g.points[j])
			if d2 > 0 && d2 <= r2 {
				out = append(out, j)
			}
		}
	}

	span := float64(hi.X-lo.X+1) * float64(hi.Y-lo.Y+1) * float64(hi.Z-lo.Z+1)
	if span > float64(len(g.cells)) {
		// Sparse relative to the query box: walk the occupied cells instead.
		for k, bucket := range g.cells {
			if k.X >= lo.X && k.X <= hi.X && k.Y >= lo.Y && k.Y <= hi.Y && k.Z >= lo.Z && k.Z <= hi.Z {
				collect(bucket)
			}
		}
	} else {
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				for z := lo.Z; z <= hi.Z; z++ {
					collect(g.cells[cellKey{x, y, z}])
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

// KNearest expands cubic shells of cells around the query cell until the
// k-th best distance is strictly closer than anything an unvisited shell
// could hold.
func (g *Grid) KNearest(i, k int) []int {
	if k <= 0 {
		return nil
	}
	q := g.points[i]
	c := g.keyFor(q)
	h := newCandidateHeap(k)

	visit := func(key cellKey) {
		for _, j := range g.cells[key] {
			if j != i {
				h.offer(candidate{index: j, d2: dist2(q, g.points[j])})
			}
		}
	}

	for s := int64(0); ; s++ {
		side := float64(2*s + 1)
		if side*side*side > float64(shellScanFactor*len(g.cells)) && s > 1 {
			return g.scan(i, k)
		}
		g.visitShell(c, s, visit)

		if g.covers(c, s) {
			break
		}
		if h.full() {
			bound := g.shellBound(q, c, s)
			if h.top().d2 < bound*bound {
				break
			}
		}
	}
	return h.sorted()
}

// visitShell calls fn for every cell at Chebyshev distance exactly s from c.
func (g *Grid) visitShell(c cellKey, s int64, fn func(cellKey)) {
	if s == 0 {
		fn(c)
		return
	}
	for dx := -s; dx <= s; dx++ {
		for dy := -s; dy <= s; dy++ {
			onFace := dx == -s || dx == s || dy == -s || dy == s
			if onFace {
				for dz := -s; dz <= s; dz++ {
					fn(cellKey{c.X + dx, c.Y + dy, c.Z + dz})
				}
				continue
			}
			fn(cellKey{c.X + dx, c.Y + dy, c.Z - s})
			fn(cellKey{c.X + dx, c.Y + dy, c.Z + s})
		}
	}
}

// covers reports whether the block of shells 0..s around c spans every
// occupied cell.
func (g *Grid) covers(c cellKey, s int64) bool {
	return c.X-s <= g.lo.X && c.X+s >= g.hi.X &&
		c.Y-s <= g.lo.Y && c.Y+s >= g.hi.Y &&
		c.Z-s <= g.lo.Z && c.Z+s >= g.hi.Z
}

// shellBound is the smallest distance from q to any point outside the block
// of shells 0..s around c.
func (g *Grid) shellBound(q r3.Vector, c cellKey, s int64) float64 {
	cs := g.cellSize
	bound := math.Inf(1)
	for _, axis := range [][2]float64{
		{q.X, float64(c.X)},
		{q.Y, float64(c.Y)},
		{q.Z, float64(c.Z)},
	} {
		p, cell := axis[0], axis[1]
		lower := p - (cell-float64(s))*cs
		upper := (cell+float64(s)+1)*cs - p
		bound = math.Min(bound, math.Min(lower, upper))
	}
	return math.Max(bound, 0)
}

func (g *Grid) scan(i, k int) []int {
	q := g.points[i]
	h := newCandidateHeap(k)
	for j, p := range g.points {
		if j != i {
			h.offer(candidate{index: j, d2: dist2(q, p)})
		}
	}
	return h.sorted()
}
