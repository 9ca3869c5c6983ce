package normal

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointmesh/internal/neighbor"
)

// lattice returns an n×n grid with spacing 0.1, mapped through f.
func lattice(n int, f func(a, b float64) r3.Vector) []r3.Vector {
	pts := make([]r3.Vector, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, f(float64(i)*0.1, float64(j)*0.1))
		}
	}
	return pts
}

func assertUnit(t *testing.T, v r3.Vector) {
	t.Helper()
	assert.InDelta(t, 1.0, v.Norm(), 1e-9)
}

func TestEstimate_PCA(t *testing.T) {
	diag := math.Sqrt2 / 2
	cases := []struct {
		name string
		pts  []r3.Vector
		want r3.Vector
	}{
		{"horizontal", lattice(10, func(a, b float64) r3.Vector { return r3.Vector{X: a, Z: b} }), r3.Vector{Y: 1}},
		{"tilted", lattice(10, func(a, b float64) r3.Vector { return r3.Vector{X: a, Y: a, Z: b} }), r3.Vector{X: -diag, Y: diag}},
		{"vertical-x", lattice(10, func(a, b float64) r3.Vector { return r3.Vector{Y: a, Z: b + 5} }), r3.Vector{X: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, f := range []neighbor.Finder{neighbor.NewBruteForce(tc.pts), neighbor.NewGrid(tc.pts, 0.25)} {
				e := &Estimator{Finder: f, Mode: PCA, K: 8}
				require.NoError(t, e.Validate())
				for _, i := range []int{0, 11, 55, 99} {
					n := e.Estimate(i)
					assertUnit(t, n)
					// Sign is only pinned by orientation when n has a Y component.
					assert.InDelta(t, 1.0, math.Abs(n.Dot(tc.want)), 1e-9, "point %d normal %v", i, n)
					assert.GreaterOrEqual(t, n.Dot(Up), 0.0)
				}
			}
		})
	}
}

func TestEstimate_SparseNeighbourhoodIsUp(t *testing.T) {
	pts := []r3.Vector{{}, {X: 0.1}, {X: 5}, {X: 5, Y: 5}}
	e := &Estimator{Finder: neighbor.NewBruteForce(pts), Mode: PCA, Radius: 0.5}
	assert.Equal(t, Up, e.Estimate(0))

	e.Mode = CentroidDirection
	assert.Equal(t, Up, e.Estimate(0))
}

func TestEstimate_CentroidDirection(t *testing.T) {
	pts := []r3.Vector{{}, {X: 1, Y: 1}, {X: -1, Y: 1}, {Y: 1, Z: 1}, {Y: 1, Z: -1}}
	e := &Estimator{Finder: neighbor.NewBruteForce(pts), Mode: CentroidDirection, Radius: 2}
	n := e.Estimate(0)
	assert.InDelta(t, 0, n.X, 1e-12)
	assert.InDelta(t, 1, n.Y, 1e-12)
	assert.InDelta(t, 0, n.Z, 1e-12)

	// Query sits on its neighbours' centroid: too short to normalise.
	flat := []r3.Vector{{}, {X: 1}, {X: -1}, {Z: 1}, {Z: -1}}
	e.Finder = neighbor.NewBruteForce(flat)
	assert.Equal(t, Up, e.Estimate(0))
}

func TestEstimate_Constant(t *testing.T) {
	e := &Estimator{Mode: Constant}
	require.NoError(t, e.Validate())
	assert.Equal(t, Up, e.Estimate(3))
}

func TestEstimateAll_WorkersAgree(t *testing.T) {
	pts := lattice(20, func(a, b float64) r3.Vector {
		return r3.Vector{X: a, Y: 0.3 * math.Sin(3*a) * math.Cos(2*b), Z: b}
	})
	e := &Estimator{Finder: neighbor.NewGrid(pts, 0.2), Mode: PCA, K: 10}

	serial, err := e.EstimateAll(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, serial, len(pts))
	for _, w := range []int{0, 3, 8, 1000} {
		parallel, err := e.EstimateAll(context.Background(), w)
		require.NoError(t, err)
		assert.Equal(t, serial, parallel, "workers=%d", w)
	}
	for _, n := range serial {
		assertUnit(t, n)
	}
}

func TestEstimateAll_Empty(t *testing.T) {
	e := &Estimator{Finder: neighbor.NewBruteForce(nil), K: 6}
	out, err := e.EstimateAll(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEstimateAll_Cancelled(t *testing.T) {
	pts := lattice(10, func(a, b float64) r3.Vector { return r3.Vector{X: a, Z: b} })
	e := &Estimator{Finder: neighbor.NewBruteForce(pts), K: 6}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.EstimateAll(ctx, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEstimateAll_ConstantFillsUp(t *testing.T) {
	e := &Estimator{Finder: neighbor.NewBruteForce(make([]r3.Vector, 5)), Mode: Constant}
	out, err := e.EstimateAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []r3.Vector{Up, Up, Up, Up, Up}, out)
}

func TestValidate(t *testing.T) {
	f := neighbor.NewBruteForce(nil)
	cases := []struct {
		name string
		e    Estimator
		ok   bool
	}{
		{"radius", Estimator{Finder: f, Radius: 0.1}, true},
		{"k", Estimator{Finder: f, K: 4}, true},
		{"neither", Estimator{Finder: f}, false},
		{"no finder", Estimator{K: 4}, false},
		{"unknown mode", Estimator{Finder: f, K: 4, Mode: Mode(9)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.e.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": PCA, "pca": PCA, "centroid": CentroidDirection, "constant": Constant} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("jet")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "centroid", CentroidDirection.String())
}
