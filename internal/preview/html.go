package preview

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/mesh"
)

// DefaultMaxPoints caps the vertices embedded in an HTML preview.
const DefaultMaxPoints = 20_000

// viridis is the colour ramp used for the height visual map.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// HTMLOptions configures the interactive scatter page.
type HTMLOptions struct {
	Title string
	// MaxPoints limits the payload; vertices are strided down to fit.
	MaxPoints int
	// AssetsHost overrides where the echarts scripts are loaded from.
	AssetsHost string
}

// WriteHTML renders the mesh vertices as a rotatable 3D scatter coloured by
// height.
func WriteHTML(w io.Writer, m *mesh.Mesh, o HTMLOptions) error {
	verts := m.Vertices()
	maxPoints := o.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	stride := 1
	if len(verts) > maxPoints {
		stride = int(math.Ceil(float64(len(verts)) / float64(maxPoints)))
	}

	data := make([]opts.Chart3DData, 0, len(verts)/stride+1)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < len(verts); i += stride {
		v := verts[i]
		lo, hi = math.Min(lo, v.Y), math.Max(hi, v.Y)
		data = append(data, opts.Chart3DData{Value: []interface{}{v.X, v.Y, v.Z}})
	}
	if len(data) == 0 {
		lo, hi = 0, 1
	}

	title := o.Title
	if title == "" {
		title = "pointmesh"
	}
	initOpts := opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d vertices, %d triangles, stride %d", m.VertexCount(), m.TriangleCount(), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Z"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "1",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("vertices", data)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SaveHTML writes the page to path on fsys.
func SaveHTML(fsys fsutil.FileSystem, path string, m *mesh.Mesh, o HTMLOptions) (err error) {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("create html: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteHTML(f, m, o)
}
