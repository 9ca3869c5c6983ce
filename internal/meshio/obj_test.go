package meshio

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/mesh"
)

func unitSquare(t *testing.T) *mesh.Mesh {
	t.Helper()
	m, err := mesh.Assemble(
		[]r3.Vector{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}},
		nil,
		[]mesh.Triangle{{0, 1, 2}, {1, 3, 2}},
	)
	require.NoError(t, err)
	return m
}

const unitSquareOBJ = `# pointmesh
# vertices 4
# triangles 2
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
vt 0.5 0.5
vt 1 0.5
vt 0.5 1
vt 1 1
vn 0 1 0
vn 0 1 0
vn 0 1 0
vn 0 1 0
f 1/1/1 2/2/2 3/3/3
f 2/2/2 4/4/4 3/3/3
`

func TestWriteOBJ(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOBJ(&buf, unitSquare(t)))
	if diff := cmp.Diff(unitSquareOBJ, buf.String()); diff != "" {
		t.Errorf("obj mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteOBJ_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOBJ(&buf, mesh.Empty()))
	assert.Equal(t, "# pointmesh\n# vertices 0\n# triangles 0\n", buf.String())
}

func TestSave_Plain(t *testing.T) {
	m := fsutil.NewMemoryFileSystem()
	require.NoError(t, Save(m, "out/square.obj", unitSquare(t)))

	data, ok := m.Bytes("out/square.obj")
	require.True(t, ok)
	assert.Equal(t, unitSquareOBJ, string(data))
}

func TestSave_CompressedRoundTrip(t *testing.T) {
	m := fsutil.NewMemoryFileSystem()
	require.NoError(t, Save(m, "out/square.obj.zst", unitSquare(t)))

	raw, ok := m.Bytes("out/square.obj.zst")
	require.True(t, ok)
	assert.False(t, strings.HasPrefix(string(raw), "# pointmesh"), "payload is compressed")

	r, err := Open(m, "out/square.obj.zst")
	require.NoError(t, err)
	defer r.Close()
	text, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, unitSquareOBJ, string(text))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(fsutil.NewMemoryFileSystem(), "nope.obj")
	assert.ErrorContains(t, err, "open mesh file")
}
