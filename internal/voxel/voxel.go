// Package voxel reduces a point cloud to a target point budget by binning
// points into a uniform grid and keeping one representative per occupied
// cell.
//
// The voxel edge is estimated from the bounding-box volume and the target,
// then refined over successive passes until the output falls inside the
// configured band. Undershoot is corrected by drawing extra samples from the
// input cloud rather than re-binning.
package voxel

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pointmesh/internal/cloud"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// Band defaults: the output count should land in [0.8T, 1.2T].
const (
	DefaultLowRatio  = 0.8
	DefaultHighRatio = 1.2
)

const (
	// minGrowth is the smallest factor by which the voxel edge grows between
	// refinement passes, so refinement always terminates.
	minGrowth = 1.1
	// stallRatio marks a pass that removed less than 10% of its input.
	stallRatio = 0.9
	// maxPasses bounds refinement even for adversarial inputs.
	maxPasses = 64
)

// ErrInvalidTarget is returned for a non-positive target point count.
var ErrInvalidTarget = errors.New("voxel: target point count must be positive")

// ErrInvalidBand is returned when the band ratios do not bracket 1.
var ErrInvalidBand = errors.New("voxel: band ratios must satisfy 0 < low <= 1 <= high")

// Policy selects the representative kept for each occupied voxel.
type Policy int

const (
	// Centroid averages the position and colour of every point in the cell.
	Centroid Policy = iota
	// FirstSeen keeps the first point assigned to the cell.
	FirstSeen
	// Stride skips binning and keeps evenly spaced input points in scan
	// order, so lattice scans keep their row structure for grid stitching.
	Stride
)

func (p Policy) String() string {
	switch p {
	case Centroid:
		return "centroid"
	case FirstSeen:
		return "first-seen"
	case Stride:
		return "stride"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name to its Policy value.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "centroid", "":
		return Centroid, nil
	case "first-seen", "first":
		return FirstSeen, nil
	case "stride":
		return Stride, nil
	default:
		return 0, fmt.Errorf("voxel: unknown sampling policy %q", s)
	}
}

// Downsampler performs voxel-grid downsampling towards a target count.
type Downsampler struct {
	Policy    Policy
	LowRatio  float64
	HighRatio float64

	// Rand drives random supplementation. A nil Rand uses the global source.
	Rand *rand.Rand
}

// NewDownsampler returns a Downsampler with the default band.
func NewDownsampler(policy Policy) *Downsampler {
	return &Downsampler{
		Policy:    policy,
		LowRatio:  DefaultLowRatio,
		HighRatio: DefaultHighRatio,
	}
}

// Validate checks the band configuration.
func (d *Downsampler) Validate() error {
	if d.LowRatio <= 0 || d.LowRatio > 1 || d.HighRatio < 1 {
		return fmt.Errorf("%w: low=%g high=%g", ErrInvalidBand, d.LowRatio, d.HighRatio)
	}
	if d.Policy != Centroid && d.Policy != FirstSeen && d.Policy != Stride {
		return fmt.Errorf("voxel: unknown policy %v", d.Policy)
	}
	return nil
}

// Downsample returns a cloud of roughly target points. Clouds that already
// fit the budget are returned as-is (same pointer). The Stride policy
// returns exactly target points.
func (d *Downsampler) Downsample(c *cloud.Cloud, target int) (*cloud.Cloud, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTarget, target)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	n := c.Len()
	if n <= target {
		return c, nil
	}
	if d.Policy == Stride {
		return strideSample(c, target), nil
	}

	start := time.Now()
	high := int(math.Floor(float64(target) * d.HighRatio))
	low := int(math.Ceil(float64(target) * d.LowRatio))

	size := VoxelSize(c.BoundingBox(), target)
	current := c
	var src []int // FirstSeen only: index into c for each point of current
	for pass := 1; ; pass++ {
		next, nextSrc := d.filter(current, src, size)
		monitoring.Tracef("voxel pass=%d size=%.6g in=%d out=%d target=%d", pass, size, current.Len(), next.Len(), target)

		stalled := float64(next.Len()) > stallRatio*float64(current.Len())
		current, src = next, nextSrc
		if current.Len() <= high || pass >= maxPasses {
			break
		}
		if stalled {
			size *= 2
		} else {
			size = math.Max(VoxelSize(current.BoundingBox(), target), size*minGrowth)
		}
	}

	sampled := current.Len()
	if sampled < low {
		if c.BoundingBox().MaxExtent() == 0 {
			// Every input point coincides; extra copies add no coverage.
			monitoring.Opsf("voxel: all %d points coincide, keeping a single representative", n)
		} else {
			current = d.supplement(c, current, src, target)
		}
	}

	monitoring.Diagf("voxel: policy=%s in=%d target=%d binned=%d out=%d voxel_size=%.6g in %s",
		d.Policy, n, target, sampled, current.Len(), size, time.Since(start))
	return current, nil
}

// VoxelSize estimates the voxel edge for a box and target count:
// cbrt(volume/target), clamped to [minExtent/1000, minExtent/10]. When the
// box is flat on one or more axes the clamp collapses, so the edge is
// re-estimated from the non-zero extents only; a box with no extent at all
// yields 1.
func VoxelSize(b cloud.BoundingBox, target int) float64 {
	if target <= 0 {
		target = 1
	}
	t := float64(target)
	s := math.Cbrt(b.Volume() / t)
	minExt := b.MinExtent()
	s = math.Max(s, minExt/1000)
	s = math.Min(s, minExt/10)
	if s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s) {
		return s
	}

	size := b.Size()
	product, dims := 1.0, 0
	for _, e := range []float64{size.X, size.Y, size.Z} {
		if e > 0 {
			product *= e
			dims++
		}
	}
	if dims == 0 {
		return 1
	}
	return math.Pow(product/t, 1/float64(dims))
}

type voxelKey struct {
	X, Y, Z int64
}

func keyFor(p r3.Vector, size float64) voxelKey {
	return voxelKey{
		X: int64(math.Floor(p.X / size)),
		Y: int64(math.Floor(p.Y / size)),
		Z: int64(math.Floor(p.Z / size)),
	}
}

// voxel accumulates the points falling in one cell.
type voxel struct {
	sum        r3.Vector
	r, g, b, a float64
	count      int
	first      int
}

func (v *voxel) add(p cloud.Point) {
	v.sum = v.sum.Add(p.Position)
	v.r += float64(p.Color.R)
	v.g += float64(p.Color.G)
	v.b += float64(p.Color.B)
	v.a += float64(p.Color.A)
	v.count++
}

func (v *voxel) centroid() r3.Vector {
	return v.sum.Mul(1 / float64(v.count))
}

func (v *voxel) averageColor() cloud.Color {
	n := float64(v.count)
	return cloud.Color{
		R: float32(v.r / n),
		G: float32(v.g / n),
		B: float32(v.b / n),
		A: float32(v.a / n),
	}
}

// filter bins c with the given edge and emits one point per occupied cell in
// first-seen cell order. For FirstSeen it also returns, per output point,
// the index into the top-level input (translated through src).
func (d *Downsampler) filter(c *cloud.Cloud, src []int, size float64) (*cloud.Cloud, []int) {
	index := make(map[voxelKey]int, c.Len()/4+1)
	cells := make([]voxel, 0, c.Len()/4+1)
	for i, p := range c.Points() {
		k := keyFor(p.Position, size)
		vi, ok := index[k]
		if !ok {
			vi = len(cells)
			index[k] = vi
			cells = append(cells, voxel{first: i})
		}
		cells[vi].add(p)
	}

	out := cloud.New(len(cells))
	if d.Policy == FirstSeen {
		outSrc := make([]int, len(cells))
		for i := range cells {
			first := cells[i].first
			p := c.At(first)
			out.AddPointColor(p.Position, p.Color)
			if src != nil {
				outSrc[i] = src[first]
			} else {
				outSrc[i] = first
			}
		}
		return out, outSrc
	}

	for i := range cells {
		out.AddPointColor(cells[i].centroid(), cells[i].averageColor())
	}
	return out, nil
}

func (d *Downsampler) intN(n int) int {
	if d.Rand != nil {
		return d.Rand.IntN(n)
	}
	return rand.IntN(n)
}
