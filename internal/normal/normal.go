// Package normal estimates per-point surface normals from local
// neighbourhoods.
//
// The default mode fits a plane to each neighbourhood: the normal is the
// eigenvector of the neighbourhood covariance with the smallest eigenvalue,
// i.e. the direction of least variance. CentroidDirection and Constant are
// cheaper, lower-fidelity substitutes that must be selected explicitly.
package normal

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointmesh/internal/neighbor"
)

// minNeighbors is the smallest neighbourhood a normal is fitted to.
const minNeighbors = 3

// minCentroidOffset is the shortest query-to-centroid vector CentroidDirection
// will normalise.
const minCentroidOffset = 1e-3

// Up is the default normal for points whose neighbourhood is too sparse.
var Up = r3.Vector{X: 0, Y: 1, Z: 0}

// ErrInvalidConfig is returned by Validate for unusable estimator settings.
var ErrInvalidConfig = errors.New("normal: invalid configuration")

// Mode selects how a normal is derived from a neighbourhood.
type Mode int

const (
	// PCA uses the smallest-eigenvalue eigenvector of the covariance.
	PCA Mode = iota
	// CentroidDirection points from the query towards the neighbourhood
	// centroid. Only meaningful on curved patches.
	CentroidDirection
	// Constant returns Up for every point.
	Constant
)

func (m Mode) String() string {
	switch m {
	case PCA:
		return "pca"
	case CentroidDirection:
		return "centroid"
	case Constant:
		return "constant"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a mode name to its Mode value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "pca", "":
		return PCA, nil
	case "centroid", "centroid-direction":
		return CentroidDirection, nil
	case "constant", "up":
		return Constant, nil
	default:
		return 0, fmt.Errorf("%w: unknown normal mode %q", ErrInvalidConfig, s)
	}
}

// Estimator computes normals for the points indexed by Finder. The
// neighbourhood is a radius search when Radius > 0, otherwise the K nearest
// points.
type Estimator struct {
	Finder neighbor.Finder
	Mode   Mode
	Radius float64
	K      int
}

// Validate checks that the estimator can produce a neighbourhood.
func (e *Estimator) Validate() error {
	switch e.Mode {
	case Constant:
		return nil
	case PCA, CentroidDirection:
	default:
		return fmt.Errorf("%w: unknown mode %v", ErrInvalidConfig, e.Mode)
	}
	if e.Finder == nil {
		return fmt.Errorf("%w: no neighbour finder", ErrInvalidConfig)
	}
	if e.Radius <= 0 && e.K <= 0 {
		return fmt.Errorf("%w: need a positive radius or k (radius=%g k=%d)", ErrInvalidConfig, e.Radius, e.K)
	}
	return nil
}

// Estimate returns the unit normal for point i.
func (e *Estimator) Estimate(i int) r3.Vector {
	if e.Mode == Constant {
		return Up
	}
	var nbrs []int
	if e.Radius > 0 {
		nbrs = e.Finder.Radius(i, e.Radius)
	} else {
		nbrs = e.Finder.KNearest(i, e.K)
	}
	if len(nbrs) < minNeighbors {
		return Up
	}

	centroid := r3.Vector{}
	for _, j := range nbrs {
		centroid = centroid.Add(e.Finder.Point(j))
	}
	centroid = centroid.Mul(1 / float64(len(nbrs)))

	if e.Mode == CentroidDirection {
		d := centroid.Sub(e.Finder.Point(i))
		if d.Norm() < minCentroidOffset {
			return Up
		}
		return orient(d.Normalize())
	}
	return orient(pcaNormal(e.Finder, nbrs, centroid))
}

// EstimateAll computes a normal for every indexed point, sharding the index
// range across workers goroutines. It stops early when ctx is cancelled.
func (e *Estimator) EstimateAll(ctx context.Context, workers int) ([]r3.Vector, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var n int
	if e.Finder != nil {
		n = e.Finder.Len()
	}
	out := make([]r3.Vector, n)
	if e.Mode == Constant {
		for i := range out {
			out[i] = Up
		}
		return out, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = max(n, 1)
	}
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = e.Estimate(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normal: estimate %d points: %w", n, err)
	}
	return out, nil
}

// pcaNormal returns the eigenvector of the smallest eigenvalue of the
// neighbourhood covariance, or Up when the factorisation fails.
func pcaNormal(f neighbor.Finder, nbrs []int, centroid r3.Vector) r3.Vector {
	var cxx, cxy, cxz, cyy, cyz, czz float64
	for _, j := range nbrs {
		d := f.Point(j).Sub(centroid)
		cxx += d.X * d.X
		cxy += d.X * d.Y
		cxz += d.X * d.Z
		cyy += d.Y * d.Y
		cyz += d.Y * d.Z
		czz += d.Z * d.Z
	}
	inv := 1 / float64(len(nbrs))
	cov := mat.NewSymDense(3, []float64{
		cxx * inv, cxy * inv, cxz * inv,
		cxy * inv, cyy * inv, cyz * inv,
		cxz * inv, cyz * inv, czz * inv,
	})

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return Up
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues ascend, so column 0 is the least-variance direction.
	n := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	if n.Norm() == 0 {
		return Up
	}
	return n.Normalize()
}

// orient flips n into the hemisphere of Up.
func orient(n r3.Vector) r3.Vector {
	if n.Dot(Up) < 0 {
		return n.Mul(-1)
	}
	return n
}
