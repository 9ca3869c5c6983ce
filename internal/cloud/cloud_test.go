package cloud

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare() *Cloud {
	c := New(4)
	c.AddPoint(r3.Vector{X: 0, Y: 0, Z: 0})
	c.AddPoint(r3.Vector{X: 1, Y: 0, Z: 0})
	c.AddPoint(r3.Vector{X: 0, Y: 1, Z: 0})
	c.AddPoint(r3.Vector{X: 1, Y: 1, Z: 0})
	return c
}

func TestNew_EmptyBounds(t *testing.T) {
	c := New(0)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.BoundingBox().IsEmpty())
	assert.Equal(t, "bounds: empty", c.BoundingBox().String())
}

func TestNilCloud(t *testing.T) {
	var c *Cloud
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Points())
	assert.True(t, c.BoundingBox().IsEmpty())
}

func TestAddPoint_UpdatesBounds(t *testing.T) {
	c := New(0)
	c.AddPoint(r3.Vector{X: 1, Y: -2, Z: 3})
	b := c.BoundingBox()
	require.False(t, b.IsEmpty())
	assert.Equal(t, r3.Vector{X: 1, Y: -2, Z: 3}, b.Min)
	assert.Equal(t, r3.Vector{X: 1, Y: -2, Z: 3}, b.Max)

	c.AddPoint(r3.Vector{X: -1, Y: 4, Z: 0})
	b = c.BoundingBox()
	assert.Equal(t, r3.Vector{X: -1, Y: -2, Z: 0}, b.Min)
	assert.Equal(t, r3.Vector{X: 1, Y: 4, Z: 3}, b.Max)
	assert.Equal(t, 2, len(c.Points()))
}

func TestAddPoint_HeightGradient(t *testing.T) {
	c := New(0)
	c.AddPoint(r3.Vector{Y: 0})
	c.AddPoint(r3.Vector{Y: 10})
	c.AddPoint(r3.Vector{Y: 5})

	first := c.At(0).Color
	// A single point has a flat box: normalised height is zero.
	assert.InDelta(t, 0, first.R, 1e-6)
	assert.InDelta(t, 1, first.B, 1e-6)

	top := c.At(1).Color
	assert.InDelta(t, 10/10.001, top.R, 1e-5)
	assert.InDelta(t, 0.5, top.G, 1e-6)
	assert.InDelta(t, 1-10/10.001, top.B, 1e-5)
	assert.Equal(t, float32(1), top.A)

	mid := c.At(2).Color
	assert.InDelta(t, 5/10.001, mid.R, 1e-5)
}

func TestAddPointColor_KeepsColor(t *testing.T) {
	c := New(1)
	col := Color{R: 0.1, G: 0.2, B: 0.3, A: 1}
	c.AddPointColor(r3.Vector{X: 2}, col)
	assert.Equal(t, col, c.At(0).Color)
	assert.Equal(t, r3.Vector{X: 2}, c.Position(0))
}

func TestNormalize_IntoCanonicalCube(t *testing.T) {
	c := New(0)
	c.AddPoint(r3.Vector{X: 10, Y: 20, Z: 30})
	c.AddPoint(r3.Vector{X: 14, Y: 21, Z: 30})
	c.Normalize()

	assert.Equal(t, CanonicalBoundingBox(), c.BoundingBox())
	// Centre (12, 20.5, 30), half extent 2.
	assert.InDelta(t, -1, c.Position(0).X, 1e-12)
	assert.InDelta(t, -0.25, c.Position(0).Y, 1e-12)
	assert.InDelta(t, 0, c.Position(0).Z, 1e-12)
	assert.InDelta(t, 1, c.Position(1).X, 1e-12)
	assert.InDelta(t, 0.25, c.Position(1).Y, 1e-12)
	for _, p := range c.Points() {
		assert.True(t, c.BoundingBox().Contains(p.Position))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	c := unitSquare()
	c.Normalize()
	before := c.Positions()

	c.Normalize()
	after := c.Positions()
	require.Len(t, after, len(before))
	for i := range before {
		assert.InDelta(t, before[i].X, after[i].X, 1e-12)
		assert.InDelta(t, before[i].Y, after[i].Y, 1e-12)
		assert.InDelta(t, before[i].Z, after[i].Z, 1e-12)
	}
	assert.Equal(t, CanonicalBoundingBox(), c.BoundingBox())
}

func TestNormalize_TinyCloudNotBlownUp(t *testing.T) {
	c := New(0)
	c.AddPoint(r3.Vector{X: 5, Y: 5, Z: 5})
	c.AddPoint(r3.Vector{X: 5.0001, Y: 5, Z: 5})
	c.Normalize()
	// Scale below 1e-3 is treated as 1: only re-centred.
	assert.InDelta(t, -0.00005, c.Position(0).X, 1e-9)
	assert.InDelta(t, 0.00005, c.Position(1).X, 1e-9)
}

func TestNormalize_EmptyNoop(t *testing.T) {
	c := New(0)
	c.Normalize()
	assert.True(t, c.BoundingBox().IsEmpty())
}

func TestClone_Independent(t *testing.T) {
	c := unitSquare()
	snap := c.Clone()
	c.Normalize()
	assert.Equal(t, r3.Vector{}, snap.Position(0))
	assert.Equal(t, r3.Vector{X: -1, Y: -1}, c.Position(0))
	assert.Equal(t, 4, snap.Len())
}

func TestFromPoints(t *testing.T) {
	pts := []Point{
		{Position: r3.Vector{X: 1}, Color: Color{R: 1, A: 1}},
		{Position: r3.Vector{X: -1}, Color: Color{B: 1, A: 1}},
	}
	c := FromPoints(pts)
	pts[0].Position.X = 100
	assert.Equal(t, 1.0, c.Position(0).X)
	assert.Equal(t, -1.0, c.BoundingBox().Min.X)
}

func TestFlattenedArrays(t *testing.T) {
	c := New(0)
	c.AddPointColor(r3.Vector{X: 1, Y: 2, Z: 3}, Color{R: 0.25, G: 0.5, B: 0.75, A: 1})
	assert.Equal(t, []float32{1, 2, 3}, c.PositionsArray())
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 1}, c.ColorsArray())
}

func TestBoundingBox_Metrics(t *testing.T) {
	b := EmptyBoundingBox()
	assert.Equal(t, 0.0, b.Volume())
	assert.Equal(t, r3.Vector{}, b.Center())

	b.Extend(r3.Vector{X: 0, Y: 0, Z: 0})
	b.Extend(r3.Vector{X: 2, Y: 4, Z: 8})
	assert.Equal(t, 64.0, b.Volume())
	assert.Equal(t, 2.0, b.MinExtent())
	assert.Equal(t, 8.0, b.MaxExtent())
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 4}, b.Center())
	assert.False(t, b.Contains(r3.Vector{X: 3}))
	assert.False(t, math.IsInf(b.Min.X, 0))
	assert.Equal(t, "bounds: X[0.00, 2.00] Y[0.00, 4.00] Z[0.00, 8.00]", b.String())
}
