// Package cloud owns the point-cloud data model: points with RGBA colour,
// append-ordered storage and a running axis-aligned bounding box.
//
// A Cloud is populated once (usually by a decoder) and then read by the
// downsampling, neighbour-search and triangulation stages. Normalize is the
// only mutating operation after population and must not run concurrently
// with readers of the same Cloud.
package cloud

import (
	"github.com/golang/geo/r3"
)

// normalizeMinScale is the smallest half-extent Normalize will divide by.
// Smaller clouds are re-centred without rescaling.
const normalizeMinScale = 1e-3

// heightGradientEpsilon keeps the height gradient finite while the running
// bounds are still flat on the Y axis.
const heightGradientEpsilon = 0.001

// Color is a normalised RGBA colour (components in [0, 1]).
type Color struct {
	R, G, B, A float32
}

// Point is a single sample of the cloud.
type Point struct {
	Position r3.Vector
	Color    Color
}

// Cloud is an ordered sequence of points plus a running bounding box.
// Index order is append order and carries no spatial meaning.
type Cloud struct {
	points []Point
	bounds BoundingBox
}

// New returns an empty cloud with room for capacity points.
func New(capacity int) *Cloud {
	if capacity < 0 {
		capacity = 0
	}
	return &Cloud{
		points: make([]Point, 0, capacity),
		bounds: EmptyBoundingBox(),
	}
}

// FromPoints builds a cloud from already-coloured points. The slice is copied.
func FromPoints(points []Point) *Cloud {
	c := New(len(points))
	for _, p := range points {
		c.AddPointColor(p.Position, p.Color)
	}
	return c
}

// AddPoint appends a point whose colour is synthesised from its height
// relative to the current running bounds (red at the top, blue at the
// bottom, alpha fixed at 1).
func (c *Cloud) AddPoint(pos r3.Vector) {
	c.bounds.Extend(pos)
	ny := float32((pos.Y - c.bounds.Min.Y) / (c.bounds.Max.Y - c.bounds.Min.Y + heightGradientEpsilon))
	c.points = append(c.points, Point{
		Position: pos,
		Color:    Color{R: ny, G: 0.5, B: 1 - ny, A: 1},
	})
}

// AddPointColor appends a point with an explicit colour.
func (c *Cloud) AddPointColor(pos r3.Vector, col Color) {
	c.bounds.Extend(pos)
	c.points = append(c.points, Point{Position: pos, Color: col})
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.points)
}

// At returns the i-th point.
func (c *Cloud) At(i int) Point {
	return c.points[i]
}

// Position returns the position of the i-th point.
func (c *Cloud) Position(i int) r3.Vector {
	return c.points[i].Position
}

// Points returns the backing slice. Callers must treat it as read-only.
func (c *Cloud) Points() []Point {
	if c == nil {
		return nil
	}
	return c.points
}

// Positions returns a copy of every point position in index order.
func (c *Cloud) Positions() []r3.Vector {
	out := make([]r3.Vector, c.Len())
	for i, p := range c.Points() {
		out[i] = p.Position
	}
	return out
}

// BoundingBox returns the current running bounds.
func (c *Cloud) BoundingBox() BoundingBox {
	if c == nil {
		return EmptyBoundingBox()
	}
	return c.bounds
}

// Clone returns a deep copy, useful as a snapshot before Normalize.
func (c *Cloud) Clone() *Cloud {
	out := &Cloud{
		points: make([]Point, len(c.points)),
		bounds: c.bounds,
	}
	copy(out.points, c.points)
	return out
}

// Normalize re-centres every position on the bounding-box centre and scales
// by half of the largest axis extent so the cloud fits the canonical ±1
// cube. The bounds are reset to that cube. Positions are mutated in place;
// take a Clone first if the raw cloud is still needed. An empty cloud is
// left untouched.
func (c *Cloud) Normalize() {
	if len(c.points) == 0 {
		return
	}
	center := c.bounds.Center()
	scale := c.bounds.MaxExtent() / 2
	if scale < normalizeMinScale {
		scale = 1
	}
	for i := range c.points {
		c.points[i].Position = c.points[i].Position.Sub(center).Mul(1 / scale)
	}
	c.bounds = CanonicalBoundingBox()
}

// PositionsArray flattens positions as x,y,z triples for GPU upload.
func (c *Cloud) PositionsArray() []float32 {
	out := make([]float32, 0, c.Len()*3)
	for _, p := range c.Points() {
		out = append(out, float32(p.Position.X), float32(p.Position.Y), float32(p.Position.Z))
	}
	return out
}

// ColorsArray flattens colours as r,g,b,a quadruples for GPU upload.
func (c *Cloud) ColorsArray() []float32 {
	out := make([]float32, 0, c.Len()*4)
	for _, p := range c.Points() {
		out = append(out, p.Color.R, p.Color.G, p.Color.B, p.Color.A)
	}
	return out
}
