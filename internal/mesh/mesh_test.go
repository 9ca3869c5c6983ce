package mesh

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() []r3.Vector {
	return []r3.Vector{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1}}
}

func TestAssemble_TexCoords(t *testing.T) {
	m, err := Assemble(square(), nil, []Triangle{{0, 1, 2}, {1, 3, 2}})
	require.NoError(t, err)

	want := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	if diff := cmp.Diff(want, m.TexCoords()); diff != "" {
		t.Errorf("texcoords mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float32{0, 0, 1, 0, 0, 1, 1, 1}, m.TexCoordsArray())
}

func TestAssemble_TexCoordsUnclamped(t *testing.T) {
	m, err := Assemble([]r3.Vector{{X: 3, Y: -2}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, r2.Point{X: 2, Y: -0.5}, m.TexCoords()[0])
}

func TestAssemble_TexCoordsInUnitSquare(t *testing.T) {
	var verts []r3.Vector
	for x := -1.0; x <= 1.0; x += 0.25 {
		for y := -1.0; y <= 1.0; y += 0.25 {
			verts = append(verts, r3.Vector{X: x, Y: y, Z: x * y})
		}
	}
	m, err := Assemble(verts, nil, nil)
	require.NoError(t, err)
	require.Len(t, m.TexCoords(), m.VertexCount())
	for _, uv := range m.TexCoords() {
		assert.True(t, uv.X >= 0 && uv.X <= 1 && uv.Y >= 0 && uv.Y <= 1, "uv %v", uv)
	}
}

func TestAssemble_DefaultNormals(t *testing.T) {
	m, err := Assemble(square(), nil, nil)
	require.NoError(t, err)
	for _, n := range m.Normals() {
		assert.Equal(t, DefaultNormal, n)
	}
	assert.Equal(t, []float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0}, m.NormalsArray())
}

func TestAssemble_CopiesBuffers(t *testing.T) {
	verts := square()
	normals := []r3.Vector{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}}
	tris := []Triangle{{0, 1, 2}}
	m, err := Assemble(verts, normals, tris)
	require.NoError(t, err)

	verts[0] = r3.Vector{X: 9}
	normals[0] = r3.Vector{X: 9}
	tris[0] = Triangle{3, 2, 1}

	assert.Equal(t, r3.Vector{X: -1, Y: -1}, m.Vertices()[0])
	assert.Equal(t, r3.Vector{Z: 1}, m.Normals()[0])
	assert.Equal(t, Triangle{0, 1, 2}, m.Triangles()[0])
}

func TestAssemble_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		normals []r3.Vector
		tris    []Triangle
	}{
		{"normal count", []r3.Vector{{Y: 1}}, nil},
		{"index out of range", nil, []Triangle{{0, 1, 4}}},
		{"negative index", nil, []Triangle{{-1, 1, 2}}},
		{"repeated vertex", nil, []Triangle{{0, 2, 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Assemble(square(), tc.normals, tc.tris)
			assert.ErrorIs(t, err, ErrInvalidMesh)
		})
	}
}

func TestMesh_FlatArrays(t *testing.T) {
	m, err := Assemble(square(), nil, []Triangle{{0, 1, 2}, {1, 3, 2}})
	require.NoError(t, err)
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, 2, m.TriangleCount())
	assert.Len(t, m.PositionsArray(), 12)
	assert.Equal(t, []float32{-1, -1, 0}, m.PositionsArray()[:3])
	assert.Equal(t, []uint32{0, 1, 2, 1, 3, 2}, m.Indices())
}

func TestMesh_Bounds(t *testing.T) {
	m, err := Assemble(square(), nil, nil)
	require.NoError(t, err)
	b := m.Bounds()
	assert.Equal(t, r3.Vector{X: -1, Y: -1}, b.Min)
	assert.Equal(t, r3.Vector{X: 1, Y: 1}, b.Max)

	assert.True(t, Empty().Bounds().IsEmpty())
}

func TestEmpty(t *testing.T) {
	m := Empty()
	assert.NoError(t, m.Validate())
	assert.Zero(t, m.VertexCount())
	assert.Empty(t, m.Indices())
	assert.Empty(t, m.PositionsArray())
}
