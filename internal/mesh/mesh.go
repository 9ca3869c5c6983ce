// Package mesh holds the renderable output of reconstruction: vertex
// positions, per-vertex normals and texture coordinates, and a triangle
// index list.
//
// A Mesh owns copies of its buffers and keeps no reference to the cloud it
// was built from. Consumers treat it as read-only.
package mesh

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/pointmesh/internal/cloud"
)

// ErrInvalidMesh is returned when buffers disagree in length or a triangle
// references a missing or repeated vertex.
var ErrInvalidMesh = errors.New("mesh: invalid mesh")

// DefaultNormal is assigned to every vertex when no normals are supplied.
var DefaultNormal = r3.Vector{X: 0, Y: 1, Z: 0}

// Triangle is three vertex indices.
type Triangle [3]int

// Distinct reports whether the three indices differ pairwise.
func (t Triangle) Distinct() bool {
	return t[0] != t[1] && t[1] != t[2] && t[0] != t[2]
}

// InRange reports whether every index lies in [0, n).
func (t Triangle) InRange(n int) bool {
	for _, v := range t {
		if v < 0 || v >= n {
			return false
		}
	}
	return true
}

// Mesh is an immutable triangle mesh.
type Mesh struct {
	vertices  []r3.Vector
	normals   []r3.Vector
	texCoords []r2.Point
	triangles []Triangle
}

// Assemble copies vertices, normals and triangles into a new Mesh and
// synthesises planar texture coordinates u=(x+1)/2, v=(y+1)/2. A nil normals
// slice assigns DefaultNormal to every vertex.
func Assemble(vertices, normals []r3.Vector, triangles []Triangle) (*Mesh, error) {
	if normals != nil && len(normals) != len(vertices) {
		return nil, fmt.Errorf("%w: %d normals for %d vertices", ErrInvalidMesh, len(normals), len(vertices))
	}

	m := &Mesh{
		vertices:  append([]r3.Vector(nil), vertices...),
		normals:   make([]r3.Vector, len(vertices)),
		texCoords: make([]r2.Point, len(vertices)),
		triangles: append([]Triangle(nil), triangles...),
	}
	if normals != nil {
		copy(m.normals, normals)
	} else {
		for i := range m.normals {
			m.normals[i] = DefaultNormal
		}
	}
	for i, v := range m.vertices {
		m.texCoords[i] = r2.Point{X: (v.X + 1) / 2, Y: (v.Y + 1) / 2}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Empty returns a mesh with no vertices and no triangles.
func Empty() *Mesh {
	return &Mesh{}
}

// Validate checks buffer lengths and triangle indices.
func (m *Mesh) Validate() error {
	n := len(m.vertices)
	if len(m.normals) != n || len(m.texCoords) != n {
		return fmt.Errorf("%w: %d vertices, %d normals, %d texcoords",
			ErrInvalidMesh, n, len(m.normals), len(m.texCoords))
	}
	for i, t := range m.triangles {
		if !t.InRange(n) {
			return fmt.Errorf("%w: triangle %d %v out of range [0,%d)", ErrInvalidMesh, i, t, n)
		}
		if !t.Distinct() {
			return fmt.Errorf("%w: triangle %d %v repeats a vertex", ErrInvalidMesh, i, t)
		}
	}
	return nil
}

func (m *Mesh) VertexCount() int   { return len(m.vertices) }
func (m *Mesh) TriangleCount() int { return len(m.triangles) }

// Vertices, Normals, TexCoords and Triangles expose the underlying buffers.
// Callers must not modify them.
func (m *Mesh) Vertices() []r3.Vector { return m.vertices }
func (m *Mesh) Normals() []r3.Vector  { return m.normals }
func (m *Mesh) TexCoords() []r2.Point { return m.texCoords }
func (m *Mesh) Triangles() []Triangle { return m.triangles }

// Bounds returns the axis-aligned box of the vertices.
func (m *Mesh) Bounds() cloud.BoundingBox {
	b := cloud.EmptyBoundingBox()
	for _, v := range m.vertices {
		b.Extend(v)
	}
	return b
}

// PositionsArray flattens vertex positions to x,y,z float32 triples for GPU
// upload.
func (m *Mesh) PositionsArray() []float32 {
	return flatten3(m.vertices)
}

// NormalsArray flattens normals to x,y,z float32 triples.
func (m *Mesh) NormalsArray() []float32 {
	return flatten3(m.normals)
}

// TexCoordsArray flattens texture coordinates to u,v float32 pairs.
func (m *Mesh) TexCoordsArray() []float32 {
	out := make([]float32, 0, 2*len(m.texCoords))
	for _, p := range m.texCoords {
		out = append(out, float32(p.X), float32(p.Y))
	}
	return out
}

// Indices flattens the triangle list for an indexed draw call.
func (m *Mesh) Indices() []uint32 {
	out := make([]uint32, 0, 3*len(m.triangles))
	for _, t := range m.triangles {
		out = append(out, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}
	return out
}

func flatten3(vs []r3.Vector) []float32 {
	out := make([]float32, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, float32(v.X), float32(v.Y), float32(v.Z))
	}
	return out
}
