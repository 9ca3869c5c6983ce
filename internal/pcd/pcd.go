// Package pcd decodes ASCII Point Cloud Data files into a cloud.Cloud.
//
// Only the header keys the pipeline needs are interpreted: FIELDS (to find
// the x, y, z and rgb columns), POINTS (the declared sample count) and DATA,
// which must be "ascii". Everything else in the header is ignored.
package pcd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pointmesh/internal/cloud"
	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// ProgressInterval is how many decoded points separate Trace progress lines.
const ProgressInterval = 100_000

var (
	// ErrUnsupportedData is returned for binary and compressed payloads.
	ErrUnsupportedData = errors.New("pcd: unsupported DATA encoding")
	// ErrMalformed is returned when the header or a data row cannot be parsed.
	ErrMalformed = errors.New("pcd: malformed file")
)

// Header holds the header keys the decoder understands.
type Header struct {
	Fields []string
	// Points is the declared sample count. Zero means read until EOF.
	Points int
	Data   string
}

// HasRGB reports whether a packed colour column is present.
func (h Header) HasRGB() bool { return h.column("rgb", "rgba") >= 0 }

func (h Header) column(names ...string) int {
	for i, f := range h.Fields {
		for _, n := range names {
			if strings.EqualFold(f, n) {
				return i
			}
		}
	}
	return -1
}

// axes returns the x, y, z column indices, defaulting to the first three.
func (h Header) axes() [3]int {
	ax := [3]int{0, 1, 2}
	for i, name := range []string{"x", "y", "z"} {
		if c := h.column(name); c >= 0 {
			ax[i] = c
		}
	}
	return ax
}

// Load opens path on fsys and decodes it.
func Load(fsys fsutil.FileSystem, path string) (*cloud.Cloud, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open point cloud: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return c, nil
}

// Decode reads an ASCII PCD stream. Rows with fewer than three values are
// skipped. Reading stops once the declared POINTS count has been decoded.
// Points without an rgb column receive the cloud's height gradient colour.
func Decode(r io.Reader) (*cloud.Cloud, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	h, line, err := readHeader(sc)
	if err != nil {
		return nil, err
	}
	monitoring.Diagf("pcd: fields=%v points=%d rgb=%v", h.Fields, h.Points, h.HasRGB())

	ax := h.axes()
	rgbCol := h.column("rgb", "rgba")
	c := cloud.New(min(h.Points, 1<<24))

	for sc.Scan() {
		line++
		values := strings.Fields(sc.Text())
		if len(values) < 3 {
			continue
		}
		var pos [3]float64
		for i, col := range ax {
			if col >= len(values) {
				return nil, fmt.Errorf("%w: line %d: missing column %d", ErrMalformed, line, col)
			}
			pos[i], err = strconv.ParseFloat(values[col], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
			}
		}
		p := r3.Vector{X: pos[0], Y: pos[1], Z: pos[2]}

		if rgbCol >= 0 && rgbCol < len(values) {
			packed, err := parsePacked(values[rgbCol])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: rgb: %w", ErrMalformed, line, err)
			}
			c.AddPointColor(p, UnpackRGB(packed))
		} else {
			c.AddPoint(p)
		}

		if n := c.Len(); n%ProgressInterval == 0 && monitoring.Enabled(monitoring.Trace) {
			monitoring.Tracef("pcd: parsed %d points", n)
		}
		if h.Points > 0 && c.Len() >= h.Points {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read pcd data: %w", err)
	}

	if h.Points > 0 && c.Len() < h.Points {
		monitoring.Opsf("pcd: header declared %d points but only %d were decoded", h.Points, c.Len())
	}
	monitoring.Diagf("pcd: decoded %d points, bounds %s", c.Len(), c.BoundingBox())
	return c, nil
}

// readHeader consumes lines up to and including DATA and returns the number
// of lines read.
func readHeader(sc *bufio.Scanner) (Header, int, error) {
	var h Header
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Fields(text)
		switch strings.ToUpper(parts[0]) {
		case "FIELDS":
			h.Fields = parts[1:]
		case "POINTS":
			if len(parts) < 2 {
				return h, line, fmt.Errorf("%w: line %d: POINTS without a count", ErrMalformed, line)
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil || n < 0 {
				return h, line, fmt.Errorf("%w: line %d: bad POINTS %q", ErrMalformed, line, parts[1])
			}
			h.Points = n
		case "DATA":
			if len(parts) < 2 {
				return h, line, fmt.Errorf("%w: line %d: DATA without an encoding", ErrMalformed, line)
			}
			h.Data = strings.ToLower(parts[1])
			if h.Data != "ascii" {
				return h, line, fmt.Errorf("%w: %s", ErrUnsupportedData, parts[1])
			}
			return h, line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return h, line, fmt.Errorf("read pcd header: %w", err)
	}
	return h, line, fmt.Errorf("%w: no DATA line", ErrMalformed)
}

// parsePacked accepts the two encodings seen in the wild: an integer, or a
// float32 whose bit pattern is the packed value. Signed integers come from
// TYPE I rgba columns with alpha 0xFF and keep their low 32 bits.
func parsePacked(s string) (uint32, error) {
	if !strings.ContainsAny(s, ".eE") {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return math.Float32bits(float32(f)), nil
}

// UnpackRGB splits a 0x00RRGGBB value into normalised components with alpha 1.
func UnpackRGB(packed uint32) cloud.Color {
	return cloud.Color{
		R: float32((packed>>16)&0xFF) / 255,
		G: float32((packed>>8)&0xFF) / 255,
		B: float32(packed&0xFF) / 255,
		A: 1,
	}
}
