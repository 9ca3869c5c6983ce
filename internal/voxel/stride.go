package voxel

import (
	"github.com/banshee-data/pointmesh/internal/cloud"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// strideSample keeps exactly target points of c at evenly spaced indices
// floor(i*n/target), preserving input order. Callers guarantee
// 0 < target < c.Len().
func strideSample(c *cloud.Cloud, target int) *cloud.Cloud {
	n := c.Len()
	out := cloud.New(target)
	for i := range target {
		p := c.At(i * n / target)
		out.AddPointColor(p.Position, p.Color)
	}
	monitoring.Diagf("voxel: policy=stride in=%d out=%d step=%.3g", n, out.Len(), float64(n)/float64(target))
	return out
}
