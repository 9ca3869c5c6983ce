package cloud

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// BoundingBox is an axis-aligned box. The empty box has Min at +Inf and Max
// at -Inf so that the first Extend yields a point-sized box.
type BoundingBox struct {
	Min, Max r3.Vector
}

// EmptyBoundingBox returns the sentinel box used by empty clouds.
func EmptyBoundingBox() BoundingBox {
	inf := math.Inf(1)
	return BoundingBox{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// CanonicalBoundingBox returns the ±1 cube produced by Normalize.
func CanonicalBoundingBox() BoundingBox {
	return BoundingBox{
		Min: r3.Vector{X: -1, Y: -1, Z: -1},
		Max: r3.Vector{X: 1, Y: 1, Z: 1},
	}
}

// IsEmpty reports whether the box has never been extended.
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend grows the box to include p.
func (b *BoundingBox) Extend(p r3.Vector) {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Min.Z = math.Min(b.Min.Z, p.Z)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	b.Max.Z = math.Max(b.Max.Z, p.Z)
}

// Size returns the extent along each axis (zero for an empty box).
func (b BoundingBox) Size() r3.Vector {
	if b.IsEmpty() {
		return r3.Vector{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box (origin for an empty box).
func (b BoundingBox) Center() r3.Vector {
	if b.IsEmpty() {
		return r3.Vector{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// Volume returns the product of the three extents.
func (b BoundingBox) Volume() float64 {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// MinExtent returns the smallest axis extent.
func (b BoundingBox) MinExtent() float64 {
	s := b.Size()
	return math.Min(s.X, math.Min(s.Y, s.Z))
}

// MaxExtent returns the largest axis extent.
func (b BoundingBox) MaxExtent() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// Contains reports whether p lies inside the box (inclusive).
func (b BoundingBox) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b BoundingBox) String() string {
	if b.IsEmpty() {
		return "bounds: empty"
	}
	return fmt.Sprintf("bounds: X[%.2f, %.2f] Y[%.2f, %.2f] Z[%.2f, %.2f]",
		b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z)
}
