package preview

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/mesh"
)

func gridMesh(t *testing.T, g int) *mesh.Mesh {
	t.Helper()
	var verts []r3.Vector
	for i := range g {
		for j := range g {
			x := float64(i)/float64(g-1)*2 - 1
			z := float64(j)/float64(g-1)*2 - 1
			verts = append(verts, r3.Vector{X: x, Y: 0.1 * x, Z: z})
		}
	}
	var tris []mesh.Triangle
	for i := 0; i < g-1; i++ {
		for j := 0; j < g-1; j++ {
			a := i*g + j
			tris = append(tris, mesh.Triangle{a, a + g, a + 1}, mesh.Triangle{a + g, a + g + 1, a + 1})
		}
	}
	m, err := mesh.Assemble(verts, nil, tris)
	require.NoError(t, err)
	return m
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	o := DefaultPNGOptions()
	o.Width, o.Height = 3*vg.Inch, 2*vg.Inch
	require.NoError(t, WritePNG(&buf, gridMesh(t, 6), o))

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, cfg.Height)
}

func TestWritePNG_EmptyMesh(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, mesh.Empty(), DefaultPNGOptions()))
	_, err := png.DecodeConfig(&buf)
	assert.NoError(t, err)
}

func TestNewEdgeSet_DedupesSharedEdges(t *testing.T) {
	m := gridMesh(t, 3)
	// A 3x3 lattice has 12 axis edges and 4 diagonals.
	assert.Len(t, newEdgeSet(m, 0).segments, 16)
	assert.Len(t, newEdgeSet(m, 5).segments, 5)

	e := newEdgeSet(m, 0)
	xmin, xmax, ymin, ymax := e.DataRange()
	assert.Equal(t, []float64{-1, 1, -1, 1}, []float64{xmin, xmax, ymin, ymax})
}

func TestHeightColor(t *testing.T) {
	low := heightColor(0).(color.RGBA)
	high := heightColor(1).(color.RGBA)
	assert.Greater(t, low.B, low.R, "low is blue")
	assert.Greater(t, high.R, high.B, "high is red")
	assert.Equal(t, heightColor(1), heightColor(7), "clamped")
}

func TestSavePNG(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, SavePNG(fsys, "out/top.png", gridMesh(t, 4), DefaultPNGOptions()))
	data, ok := fsys.Bytes("out/top.png")
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, gridMesh(t, 5), HTMLOptions{Title: "room scan"}))
	page := buf.String()
	assert.Contains(t, page, "room scan")
	assert.Contains(t, page, "scatter3D")
	assert.Contains(t, page, "25 vertices, 32 triangles, stride 1")
}

func TestWriteHTML_Strides(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, gridMesh(t, 10), HTMLOptions{MaxPoints: 30}))
	assert.True(t, strings.Contains(buf.String(), "stride 4"))
}

func TestSaveHTML(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, SaveHTML(fsys, "out/view.html", mesh.Empty(), HTMLOptions{}))
	data, ok := fsys.Bytes("out/view.html")
	require.True(t, ok)
	assert.Contains(t, string(data), "<html")
}
