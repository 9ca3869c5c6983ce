package voxel

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/banshee-data/pointmesh/internal/cloud"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// supplement tops sampled up to target with points drawn uniformly without
// replacement from orig, skipping indices already represented in sampled.
// sampled is owned by the caller's pipeline and is appended to in place.
func (d *Downsampler) supplement(orig, sampled *cloud.Cloud, represented []int, target int) *cloud.Cloud {
	used := roaring.New()
	for _, i := range represented {
		used.Add(uint32(i))
	}

	n := orig.Len()
	free := n - int(used.GetCardinality())
	need := target - sampled.Len()
	if need > free {
		need = free
	}
	if need <= 0 {
		return sampled
	}

	var drawn []int
	if 2*need <= free {
		drawn = d.drawRejecting(used, n, need)
	} else {
		drawn = d.drawShuffled(used, n, need)
	}
	for _, i := range drawn {
		p := orig.At(i)
		sampled.AddPointColor(p.Position, p.Color)
	}

	monitoring.Tracef("voxel: supplemented %d random points (free=%d)", len(drawn), free)
	return sampled
}

// drawRejecting samples by rejection against the used set; efficient while
// at most half of the free indices are needed.
func (d *Downsampler) drawRejecting(used *roaring.Bitmap, n, need int) []int {
	out := make([]int, 0, need)
	for len(out) < need {
		i := d.intN(n)
		if used.CheckedAdd(uint32(i)) {
			out = append(out, i)
		}
	}
	return out
}

// drawShuffled enumerates the free indices and takes a partial
// Fisher-Yates prefix.
func (d *Downsampler) drawShuffled(used *roaring.Bitmap, n, need int) []int {
	free := make([]int, 0, n-int(used.GetCardinality()))
	for i := 0; i < n; i++ {
		if !used.Contains(uint32(i)) {
			free = append(free, i)
		}
	}
	for i := 0; i < need; i++ {
		j := i + d.intN(len(free)-i)
		free[i], free[j] = free[j], free[i]
	}
	for _, i := range free[:need] {
		used.Add(uint32(i))
	}
	return free[:need]
}
