// Package meshio exports reconstructed meshes as Wavefront OBJ text,
// optionally zstd-compressed.
package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/mesh"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// CompressedSuffix selects zstd compression in Save.
const CompressedSuffix = ".zst"

// WriteOBJ writes m as OBJ. Every vertex carries a position, a texture
// coordinate and a normal at the same index, so faces use the a/a/a form
// with 1-based indices.
func WriteOBJ(w io.Writer, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# pointmesh\n# vertices %d\n# triangles %d\n", m.VertexCount(), m.TriangleCount())

	for _, v := range m.Vertices() {
		writeTuple(bw, "v", v.X, v.Y, v.Z)
	}
	for _, t := range m.TexCoords() {
		writeTuple(bw, "vt", t.X, t.Y)
	}
	for _, n := range m.Normals() {
		writeTuple(bw, "vn", n.X, n.Y, n.Z)
	}
	for _, tri := range m.Triangles() {
		a, b, c := tri[0]+1, tri[1]+1, tri[2]+1
		fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
	}
	return bw.Flush()
}

func writeTuple(w *bufio.Writer, tag string, vals ...float64) {
	w.WriteString(tag)
	for _, v := range vals {
		w.WriteByte(' ')
		w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	w.WriteByte('\n')
}

// Save writes m to path on fsys, creating parent directories. Paths ending
// in CompressedSuffix are zstd-compressed.
func Save(fsys fsutil.FileSystem, path string, m *mesh.Mesh) (err error) {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("create mesh file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close mesh file: %w", cerr)
		}
	}()

	if !strings.HasSuffix(path, CompressedSuffix) {
		if err := WriteOBJ(f, m); err != nil {
			return fmt.Errorf("write obj: %w", err)
		}
		monitoring.Diagf("meshio: wrote %s (%d vertices, %d triangles)", path, m.VertexCount(), m.TriangleCount())
		return nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	if err := WriteOBJ(enc, m); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write compressed obj: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush compressor: %w", err)
	}
	monitoring.Diagf("meshio: wrote %s compressed (%d vertices, %d triangles)", path, m.VertexCount(), m.TriangleCount())
	return nil
}

// Open returns a reader over the OBJ text at path, transparently
// decompressing CompressedSuffix files. The caller must close it.
func Open(fsys fsutil.FileSystem, path string) (io.ReadCloser, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh file: %w", err)
	}
	if !strings.HasSuffix(path, CompressedSuffix) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create decompressor: %w", err)
	}
	return &zstdReadCloser{Decoder: dec, file: f}, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	file io.Closer
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}
