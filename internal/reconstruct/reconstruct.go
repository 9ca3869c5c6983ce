// Package reconstruct turns a point cloud into a triangle mesh in one call:
// voxel downsampling to a point budget, normal estimation, triangulation and
// mesh assembly.
//
// Reconstruct is a pure function of its inputs. The caller owns the cloud
// and must not normalise it concurrently.
package reconstruct

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pointmesh/internal/cloud"
	"github.com/banshee-data/pointmesh/internal/mesh"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/neighbor"
	"github.com/banshee-data/pointmesh/internal/normal"
	"github.com/banshee-data/pointmesh/internal/triangulate"
	"github.com/banshee-data/pointmesh/internal/voxel"
)

// Auto-budget thresholds.
const (
	hugeCloud   = 1_000_000
	largeCloud  = 100_000
	mediumCloud = 10_000

	hugeBudget   = 5000
	largeBudget  = 3000
	mediumBudget = 1000
)

// AutoBudget picks a target point count from the input size. Clouds of at
// most 10,000 points keep every point.
func AutoBudget(n int) int {
	switch {
	case n > hugeCloud:
		return hugeBudget
	case n > largeCloud:
		return largeBudget
	case n > mediumCloud:
		return mediumBudget
	default:
		return n
	}
}

// Result is a reconstructed mesh with the statistics of the run.
type Result struct {
	Mesh  *mesh.Mesh
	Stats Stats
}

// Stats describes one reconstruction.
type Stats struct {
	InputPoints   int
	Budget        int
	SampledPoints int
	Strategy      triangulate.Strategy
	Triangles     int
	Rejected      int
	FellBack      bool

	Downsample  time.Duration
	Normals     time.Duration
	Triangulate time.Duration
	Assemble    time.Duration
	Total       time.Duration
}

// Reconstruct runs the full pipeline over c. The configuration is validated
// before any stage runs; an empty or nil cloud yields an empty mesh.
func Reconstruct(ctx context.Context, c *cloud.Cloud, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	stats := Stats{InputPoints: c.Len(), Strategy: cfg.Strategy}
	if c.Len() == 0 {
		monitoring.Opsf("reconstruct: empty cloud, returning empty mesh")
		return &Result{Mesh: mesh.Empty(), Stats: stats}, nil
	}

	stats.Budget = cfg.TargetPoints
	if stats.Budget == 0 {
		stats.Budget = AutoBudget(c.Len())
	}

	t := time.Now()
	sampled, err := cfg.downsampler().Downsample(c, stats.Budget)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: downsample: %w", err)
	}
	stats.SampledPoints = sampled.Len()
	stats.Downsample = time.Since(t)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}

	points := sampled.Positions()
	finder := neighbor.New(points, cfg.cellSize(points))

	t = time.Now()
	est := cfg.estimator(finder)
	normals, err := est.EstimateAll(ctx, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: normals: %w", err)
	}
	stats.Normals = time.Since(t)

	t = time.Now()
	tri, err := triangulate.Triangulate(ctx, points, finder, cfg.triangulateOptions())
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	stats.Triangles = len(tri.Triangles)
	stats.Rejected = tri.Rejected
	stats.FellBack = tri.FellBack
	stats.Triangulate = time.Since(t)

	t = time.Now()
	m, err := mesh.Assemble(points, normals, tri.Triangles)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: assemble: %w", err)
	}
	stats.Assemble = time.Since(t)
	stats.Total = time.Since(start)

	monitoring.Diagf("reconstruct: in=%d budget=%d sampled=%d strategy=%s normals=%s triangles=%d fallback=%t "+
		"(downsample %s, normals %s, triangulate %s, assemble %s, total %s)",
		stats.InputPoints, stats.Budget, stats.SampledPoints, stats.Strategy, cfg.NormalMode, stats.Triangles,
		stats.FellBack, stats.Downsample, stats.Normals, stats.Triangulate, stats.Assemble, stats.Total)
	return &Result{Mesh: m, Stats: stats}, nil
}

func (cfg Config) downsampler() *voxel.Downsampler {
	d := voxel.NewDownsampler(cfg.Sampling)
	d.LowRatio = cfg.LowRatio
	d.HighRatio = cfg.HighRatio
	if cfg.Seed != 0 {
		d.Rand = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	return d
}

// cellSize picks the neighbour index edge: an explicit IndexCellSize wins
// (negative forces brute force), radius pairing uses the search radius, and
// everything else sizes cells from the point density.
func (cfg Config) cellSize(points []r3.Vector) float64 {
	switch {
	case cfg.IndexCellSize != 0:
		return cfg.IndexCellSize
	case cfg.Strategy == triangulate.RadiusPairing:
		return cfg.Radius
	default:
		return neighbor.AutoCellSize(points, neighbor.DefaultPointsPerCell)
	}
}

// estimator uses the radius neighbourhood for radius pairing and the k-NN
// neighbourhood otherwise, falling back to whichever is configured.
func (cfg Config) estimator(f neighbor.Finder) *normal.Estimator {
	e := &normal.Estimator{Finder: f, Mode: cfg.NormalMode}
	switch {
	case cfg.Strategy == triangulate.RadiusPairing && cfg.Radius > 0:
		e.Radius = cfg.Radius
	case cfg.K > 0:
		e.K = cfg.K
	default:
		e.Radius = cfg.Radius
	}
	return e
}

func (cfg Config) triangulateOptions() triangulate.Options {
	return triangulate.Options{
		Strategy: cfg.Strategy,
		Radius:   cfg.Radius,
		K:        cfg.K,
		Validity: cfg.Validity,
	}
}
