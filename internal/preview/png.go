// Package preview renders quick-look images of a reconstructed mesh: a
// top-down PNG with gonum/plot and an interactive 3D scatter page with
// go-echarts.
package preview

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/mesh"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// PNGOptions sizes the top-down render.
type PNGOptions struct {
	Width, Height vg.Length
	// MaxEdges bounds how many distinct triangle edges are drawn.
	MaxEdges int
	Title    string
}

// DefaultPNGOptions returns an 8x8 inch render with up to 50k edges.
func DefaultPNGOptions() PNGOptions {
	return PNGOptions{Width: 8 * vg.Inch, Height: 8 * vg.Inch, MaxEdges: 50_000, Title: "pointmesh"}
}

// WritePNG renders the mesh looking down the Y axis: X runs right, Z runs
// up the page and vertices are coloured by height.
func WritePNG(w io.Writer, m *mesh.Mesh, o PNGOptions) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %d vertices, %d triangles", o.Title, m.VertexCount(), m.TriangleCount())
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Z"

	verts := m.Vertices()
	if len(verts) > 0 {
		edges := newEdgeSet(m, o.MaxEdges)
		p.Add(edges)

		xys := make(plotter.XYs, len(verts))
		lo, hi := math.Inf(1), math.Inf(-1)
		for i, v := range verts {
			xys[i] = plotter.XY{X: v.X, Y: v.Z}
			lo, hi = math.Min(lo, v.Y), math.Max(hi, v.Y)
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("vertex scatter: %w", err)
		}
		span := hi - lo
		sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			t := 0.5
			if span > 0 {
				t = (verts[i].Y - lo) / span
			}
			return draw.GlyphStyle{Color: heightColor(t), Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}}
		}
		p.Add(sc)
		monitoring.Diagf("preview: png with %d vertices and %d edges", len(verts), len(edges.segments))
	}

	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SavePNG writes the render to path on fsys.
func SavePNG(fsys fsutil.FileSystem, path string, m *mesh.Mesh, o PNGOptions) (err error) {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WritePNG(f, m, o)
}

// edgeSet draws each unique triangle edge once.
type edgeSet struct {
	segments [][2]plotter.XY
	style    draw.LineStyle
	xmin     float64
	xmax     float64
	ymin     float64
	ymax     float64
}

func newEdgeSet(m *mesh.Mesh, limit int) *edgeSet {
	e := &edgeSet{
		style: draw.LineStyle{Color: color.Gray{Y: 160}, Width: vg.Points(0.3)},
		xmin:  math.Inf(1),
		xmax:  math.Inf(-1),
		ymin:  math.Inf(1),
		ymax:  math.Inf(-1),
	}
	verts := m.Vertices()
	for _, v := range verts {
		e.xmin, e.xmax = math.Min(e.xmin, v.X), math.Max(e.xmax, v.X)
		e.ymin, e.ymax = math.Min(e.ymin, v.Z), math.Max(e.ymax, v.Z)
	}

	seen := make(map[[2]int]bool)
	for _, t := range m.Triangles() {
		for k := range 3 {
			a, b := t[k], t[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if seen[key] {
				continue
			}
			if limit > 0 && len(e.segments) >= limit {
				return e
			}
			seen[key] = true
			e.segments = append(e.segments, [2]plotter.XY{
				{X: verts[a].X, Y: verts[a].Z},
				{X: verts[b].X, Y: verts[b].Z},
			})
		}
	}
	return e
}

// Plot implements plot.Plotter.
func (e *edgeSet) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for _, s := range e.segments {
		line := []vg.Point{
			{X: trX(s[0].X), Y: trY(s[0].Y)},
			{X: trX(s[1].X), Y: trY(s[1].Y)},
		}
		c.StrokeLines(e.style, c.ClipLinesXY(line)...)
	}
}

// DataRange implements plot.DataRanger.
func (e *edgeSet) DataRange() (xmin, xmax, ymin, ymax float64) {
	return e.xmin, e.xmax, e.ymin, e.ymax
}

// heightColor maps t in [0,1] from blue (low) to red (high) along the hue
// wheel.
func heightColor(t float64) color.Color {
	t = math.Max(0, math.Min(1, t))
	r, g, b := hslToRGB((1-t)*2.0/3.0, 0.7, 0.5)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
