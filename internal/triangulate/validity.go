package triangulate

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Validity defaults, tuned for clouds normalised into the ±1 cube.
const (
	DefaultMaxEdge   = 0.3
	DefaultMinEdge   = 0.01
	DefaultMaxAspect = 10.0
	DefaultMinArea   = 1e-4
)

// Validity bounds the shape of triangles emitted by the pairing strategies.
type Validity struct {
	MaxEdge   float64 // longest allowed edge; radius pairing uses 2r instead
	MinEdge   float64 // shortest allowed edge
	MaxAspect float64 // longest/shortest edge ratio
	MinArea   float64 // area must be strictly greater
}

// DefaultValidity returns the default bounds.
func DefaultValidity() Validity {
	return Validity{
		MaxEdge:   DefaultMaxEdge,
		MinEdge:   DefaultMinEdge,
		MaxAspect: DefaultMaxAspect,
		MinArea:   DefaultMinArea,
	}
}

// Validate checks that the bounds admit at least some triangles.
func (v Validity) Validate() error {
	if v.MaxEdge <= 0 {
		return fmt.Errorf("%w: max edge %g must be positive", ErrInvalidConfig, v.MaxEdge)
	}
	if v.MinEdge < 0 || v.MinEdge > v.MaxEdge {
		return fmt.Errorf("%w: min edge %g outside [0, %g]", ErrInvalidConfig, v.MinEdge, v.MaxEdge)
	}
	if v.MaxAspect < 1 {
		return fmt.Errorf("%w: max aspect %g below 1", ErrInvalidConfig, v.MaxAspect)
	}
	if v.MinArea < 0 {
		return fmt.Errorf("%w: min area %g is negative", ErrInvalidConfig, v.MinArea)
	}
	return nil
}

// Accept reports whether triangle (a, b, c) passes the edge-length, aspect
// and area checks.
func (v Validity) Accept(a, b, c r3.Vector) bool {
	d1 := a.Distance(b)
	d2 := b.Distance(c)
	d3 := c.Distance(a)
	longest := math.Max(d1, math.Max(d2, d3))
	shortest := math.Min(d1, math.Min(d2, d3))
	if longest > v.MaxEdge || shortest < v.MinEdge || shortest == 0 {
		return false
	}
	if longest/shortest > v.MaxAspect {
		return false
	}
	return Area(a, b, c) > v.MinArea
}

// Area returns half the magnitude of the cross product of two edges.
func Area(a, b, c r3.Vector) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Norm() / 2
}
