// Package neighbor provides radius and k-nearest-neighbour queries over a
// fixed set of points.
//
// Two backends implement Finder: BruteForce scans every point (O(n) per
// query) and Grid buckets points into a uniform 3D spatial index. Both
// return identical results; Grid is the one to use once triangulation issues
// a query per vertex over thousands of points.
//
// All comparisons use squared Euclidean distance.
package neighbor

import (
	"math"

	"github.com/golang/geo/r3"
)

// DefaultPointsPerCell is the occupancy AutoCellSize aims for.
const DefaultPointsPerCell = 8

// Finder answers neighbourhood queries for the point at index i.
// Implementations are read-only after construction and safe for concurrent
// queries.
type Finder interface {
	// Len returns the number of indexed points.
	Len() int
	// Point returns the position of point i.
	Point(i int) r3.Vector
	// Radius returns, in ascending index order, every point whose squared
	// distance to point i is in (0, r²]. Points coincident with i
	// (including i itself) are excluded. r <= 0 yields nil.
	Radius(i int, r float64) []int
	// KNearest returns up to k indices closest to point i, excluding i,
	// ordered by distance with ties broken by lower index. k <= 0 yields nil.
	KNearest(i, k int) []int
}

// New returns a Grid with the given cell size, or a BruteForce finder when
// cellSize is not positive.
func New(points []r3.Vector, cellSize float64) Finder {
	if cellSize > 0 && !math.IsInf(cellSize, 0) && !math.IsNaN(cellSize) {
		return NewGrid(points, cellSize)
	}
	return NewBruteForce(points)
}

// AutoCellSize estimates a grid cell edge so that occupied cells hold about
// perCell points, using only the axes along which the points actually
// extend. It returns 0 when the points have no extent.
func AutoCellSize(points []r3.Vector, perCell int) float64 {
	if len(points) == 0 {
		return 0
	}
	if perCell <= 0 {
		perCell = DefaultPointsPerCell
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo.X, lo.Y, lo.Z = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y), math.Min(lo.Z, p.Z)
		hi.X, hi.Y, hi.Z = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y), math.Max(hi.Z, p.Z)
	}
	ext := hi.Sub(lo)
	product, dims := 1.0, 0
	for _, e := range []float64{ext.X, ext.Y, ext.Z} {
		if e > 0 {
			product *= e
			dims++
		}
	}
	if dims == 0 {
		return 0
	}
	cells := float64(len(points)) / float64(perCell)
	if cells < 1 {
		cells = 1
	}
	return math.Pow(product/cells, 1/float64(dims))
}

func dist2(a, b r3.Vector) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}
