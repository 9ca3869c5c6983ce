// Package triangulate connects vertices into triangles using one of several
// interchangeable strategies that trade quality for speed.
//
// The pairing strategies (radius and k-NN) emit candidate triangles from
// each vertex's neighbourhood and keep only those passing Validity; radius
// pairing swaps MaxEdge for the neighbourhood diameter 2r. When a
// pairing strategy produces too few triangles, consecutive-index triangles
// are appended as a last-resort fill. Grid stitching assumes the vertices
// came from a square sampling lattice and ignores geometry altogether.
package triangulate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pointmesh/internal/mesh"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/neighbor"
)

// Triangle caps per strategy: min(limit, factor × vertex count).
const (
	radiusCapLimit     = 100000
	radiusCapFactor    = 2
	knnCapLimit        = 150000
	knnCapFactor       = 3
	sequentialCapLimit = 100000
	sequentialFactor   = 2

	// fallbackDivisor: pairing output below n/fallbackDivisor triangles
	// triggers the sequential fill.
	fallbackDivisor = 10
)

// ErrInvalidConfig is returned for options a strategy cannot run with.
var ErrInvalidConfig = errors.New("triangulate: invalid configuration")

// Strategy selects a triangulation scheme.
type Strategy int

const (
	// RadiusPairing pairs every two radius neighbours of each vertex.
	RadiusPairing Strategy = iota
	// KNNPairing pairs the k nearest neighbours, anchored at the lowest index.
	KNNPairing
	// GridStitching stitches a square lattice by index.
	GridStitching
	// Sequential emits (i, i+1, i+2).
	Sequential
)

var strategyNames = map[Strategy]string{
	RadiusPairing: "radius-pairing",
	KNNPairing:    "knn-pairing",
	GridStitching: "grid-stitching",
	Sequential:    "sequential-fallback",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy maps a strategy name to its Strategy value.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, name)
}

// Options configures Triangulate.
type Options struct {
	Strategy Strategy
	Radius   float64 // RadiusPairing neighbourhood
	K        int     // KNNPairing neighbourhood
	Validity Validity
}

// DefaultOptions returns k-NN pairing with k=8 and default validity bounds.
func DefaultOptions() Options {
	return Options{
		Strategy: KNNPairing,
		Radius:   0.1,
		K:        8,
		Validity: DefaultValidity(),
	}
}

// Validate checks the options relevant to the selected strategy.
func (o Options) Validate() error {
	switch o.Strategy {
	case RadiusPairing:
		if o.Radius <= 0 {
			return fmt.Errorf("%w: radius-pairing needs a positive radius, got %g", ErrInvalidConfig, o.Radius)
		}
		return o.Validity.Validate()
	case KNNPairing:
		if o.K <= 0 {
			return fmt.Errorf("%w: knn-pairing needs a positive k, got %d", ErrInvalidConfig, o.K)
		}
		return o.Validity.Validate()
	case GridStitching:
		return nil
	case Sequential:
		if o.Validity.MinArea < 0 {
			return fmt.Errorf("%w: min area %g is negative", ErrInvalidConfig, o.Validity.MinArea)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown strategy %v", ErrInvalidConfig, o.Strategy)
	}
}

// Result is the output of Triangulate.
type Result struct {
	Triangles []mesh.Triangle
	// FellBack is set when sequential triangles were appended to a sparse
	// pairing result.
	FellBack bool
	// Rejected counts pairing candidates that failed Validity.
	Rejected int
	// Capped is set when the strategy stopped at its triangle limit.
	Capped bool
}

// Triangulate builds triangles over points. The finder must index the same
// points; a nil finder is replaced by a Grid sized from the points. ctx is
// checked once per vertex.
func Triangulate(ctx context.Context, points []r3.Vector, finder neighbor.Finder, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	n := len(points)
	if n < 3 {
		return Result{}, nil
	}
	if finder == nil && (opts.Strategy == RadiusPairing || opts.Strategy == KNNPairing) {
		finder = neighbor.New(points, neighbor.AutoCellSize(points, neighbor.DefaultPointsPerCell))
	}
	if finder != nil && finder.Len() != n {
		return Result{}, fmt.Errorf("%w: finder indexes %d points, have %d", ErrInvalidConfig, finder.Len(), n)
	}

	start := time.Now()
	var (
		res   Result
		err   error
		limit int
	)
	switch opts.Strategy {
	case RadiusPairing:
		limit = capFor(n, radiusCapLimit, radiusCapFactor)
		res, err = radiusPairing(ctx, points, finder, opts, limit)
	case KNNPairing:
		limit = capFor(n, knnCapLimit, knnCapFactor)
		res, err = knnPairing(ctx, points, finder, opts, limit)
	case GridStitching:
		res, err = gridStitching(ctx, n)
	case Sequential:
		limit = capFor(n, sequentialCapLimit, sequentialFactor)
		res.Triangles, err = sequential(ctx, points, res.Triangles, opts.Validity.MinArea, limit)
	}
	if err != nil {
		return Result{}, fmt.Errorf("triangulate %s: %w", opts.Strategy, err)
	}

	if (opts.Strategy == RadiusPairing || opts.Strategy == KNNPairing) && len(res.Triangles) < n/fallbackDivisor {
		before := len(res.Triangles)
		res.Triangles, err = sequential(ctx, points, res.Triangles, opts.Validity.MinArea, limit)
		if err != nil {
			return Result{}, fmt.Errorf("triangulate %s fallback: %w", opts.Strategy, err)
		}
		res.FellBack = true
		monitoring.Opsf("triangulate: %s produced %d triangles for %d vertices, appended %d sequential triangles",
			opts.Strategy, before, n, len(res.Triangles)-before)
	}

	monitoring.Diagf("triangulate: strategy=%s vertices=%d triangles=%d rejected=%d capped=%t fallback=%t in %s",
		opts.Strategy, n, len(res.Triangles), res.Rejected, res.Capped, res.FellBack, time.Since(start))
	return res, nil
}

func capFor(n, limit, factor int) int {
	return min(limit, factor*n)
}

// radiusPairing bounds edges by the neighbourhood diameter 2r rather than
// Validity.MaxEdge; the other validity checks apply unchanged.
func radiusPairing(ctx context.Context, points []r3.Vector, f neighbor.Finder, opts Options, limit int) (Result, error) {
	v := opts.Validity
	v.MaxEdge = 2 * opts.Radius
	var res Result
	for i := range points {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if len(res.Triangles) >= limit {
			res.Capped = true
			break
		}
		nbrs := f.Radius(i, opts.Radius)
		emitPairs(points, i, nbrs, v, limit, &res, func(j, k int) bool { return true })
	}
	return res, nil
}

func knnPairing(ctx context.Context, points []r3.Vector, f neighbor.Finder, opts Options, limit int) (Result, error) {
	var res Result
	for i := range points {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if len(res.Triangles) >= limit {
			res.Capped = true
			break
		}
		nbrs := f.KNearest(i, opts.K)
		// Anchor each triple at its lowest index so it is emitted once.
		emitPairs(points, i, nbrs, opts.Validity, limit, &res, func(j, k int) bool { return i < j && i < k })
	}
	return res, nil
}

// emitPairs appends (i, j, k) for every unordered pair of nbrs that keep
// admits and v accepts, stopping at limit.
func emitPairs(points []r3.Vector, i int, nbrs []int, v Validity, limit int, res *Result, keep func(j, k int) bool) {
	for a := 0; a < len(nbrs); a++ {
		for b := a + 1; b < len(nbrs); b++ {
			if len(res.Triangles) >= limit {
				res.Capped = true
				return
			}
			j, k := nbrs[a], nbrs[b]
			if !keep(j, k) || j == k {
				continue
			}
			if !v.Accept(points[i], points[j], points[k]) {
				res.Rejected++
				continue
			}
			res.Triangles = append(res.Triangles, mesh.Triangle{i, j, k})
		}
	}
}

// gridStitching treats vertex i*g+j as lattice node (i, j) of a g×g grid,
// g = floor(sqrt(n)), and emits two triangles per cell.
func gridStitching(ctx context.Context, n int) (Result, error) {
	g := isqrt(n)
	if g < 2 {
		return Result{}, nil
	}
	idx := func(i, j int) int { return i*g + j }
	tris := make([]mesh.Triangle, 0, 2*(g-1)*(g-1))
	for i := 0; i < g-1; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		for j := 0; j < g-1; j++ {
			if idx(i+1, j+1) >= n {
				continue
			}
			tris = append(tris,
				mesh.Triangle{idx(i, j), idx(i, j+1), idx(i+1, j)},
				mesh.Triangle{idx(i, j+1), idx(i+1, j+1), idx(i+1, j)},
			)
		}
	}
	return Result{Triangles: tris}, nil
}

// sequential appends (i, i+1, i+2) for consecutive i until limit, skipping
// triangles whose area does not exceed minArea.
func sequential(ctx context.Context, points []r3.Vector, tris []mesh.Triangle, minArea float64, limit int) ([]mesh.Triangle, error) {
	for i := 0; i+2 < len(points) && len(tris) < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if Area(points[i], points[i+1], points[i+2]) <= minArea {
			continue
		}
		tris = append(tris, mesh.Triangle{i, i + 1, i + 2})
	}
	return tris, nil
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int) int {
	g := int(math.Sqrt(float64(n)))
	for g*g > n {
		g--
	}
	for (g+1)*(g+1) <= n {
		g++
	}
	return g
}
