package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointmesh/internal/normal"
	"github.com/banshee-data/pointmesh/internal/reconstruct"
	"github.com/banshee-data/pointmesh/internal/triangulate"
	"github.com/banshee-data/pointmesh/internal/voxel"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestMustLoadDefaultConfig_MatchesPackageDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	require.NoError(t, cfg.Validate())

	rc, err := cfg.ToReconstruct()
	require.NoError(t, err)

	want := reconstruct.DefaultConfig()
	assert.Equal(t, want, rc)
	assert.True(t, cfg.GetNormalize())
	assert.Equal(t, 30*time.Second, cfg.GetTimeout())
}

func TestEmptyConfig_Defaults(t *testing.T) {
	cfg := EmptyReconstructionConfig()
	assert.Equal(t, 0, cfg.GetTargetPoints())
	assert.Equal(t, "centroid", cfg.GetSampling())
	assert.Equal(t, "knn-pairing", cfg.GetStrategy())
	assert.Equal(t, "pca", cfg.GetNormalMode())
	assert.Equal(t, 0.1, cfg.GetRadius())
	assert.Equal(t, 8, cfg.GetK())
	assert.Equal(t, 1, cfg.GetWorkers())
	assert.Equal(t, triangulate.DefaultValidity(), cfg.GetValidity())
	assert.Zero(t, cfg.GetTimeout())
	assert.Zero(t, cfg.GetSeed())

	rc, err := cfg.ToReconstruct()
	require.NoError(t, err)
	assert.Equal(t, reconstruct.DefaultConfig(), rc)
}

func TestLoadReconstructionConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "target_points": 2500,
  "sampling": "first-seen",
  "strategy": "radius-pairing",
  "radius": 0.05,
  "max_edge": 0.2,
  "normal_mode": "centroid",
  "seed": 42,
  "timeout": "2m"
}`)
	cfg, err := LoadReconstructionConfig(path)
	require.NoError(t, err)

	rc, err := cfg.ToReconstruct()
	require.NoError(t, err)
	assert.Equal(t, 2500, rc.TargetPoints)
	assert.Equal(t, voxel.FirstSeen, rc.Sampling)
	assert.Equal(t, triangulate.RadiusPairing, rc.Strategy)
	assert.Equal(t, 0.05, rc.Radius)
	assert.Equal(t, 8, rc.K, "omitted fields keep defaults")
	assert.Equal(t, 0.2, rc.Validity.MaxEdge)
	assert.Equal(t, triangulate.DefaultMinEdge, rc.Validity.MinEdge)
	assert.Equal(t, normal.CentroidDirection, rc.NormalMode)
	assert.Equal(t, uint64(42), rc.Seed)
	assert.Equal(t, 2*time.Minute, cfg.GetTimeout())
	assert.NoError(t, rc.Validate())
}

func TestLoadReconstructionConfig_Errors(t *testing.T) {
	cases := []struct {
		name, file, body, want string
	}{
		{"extension", "cfg.yaml", `{}`, ".json extension"},
		{"syntax", "bad.json", `{"k": `, "parse config JSON"},
		{"negative target", "t.json", `{"target_points": -1}`, "target_points"},
		{"band", "b.json", `{"low_ratio": 1.5}`, "low_ratio"},
		{"high band", "h.json", `{"high_ratio": 0.5}`, "high_ratio"},
		{"strategy", "s.json", `{"strategy": "delaunay"}`, "strategy"},
		{"sampling", "p.json", `{"sampling": "median"}`, "sampling"},
		{"normal mode", "n.json", `{"normal_mode": "jet"}`, "normal_mode"},
		{"timeout", "d.json", `{"timeout": "soon"}`, "timeout"},
		{"workers", "w.json", `{"workers": -3}`, "workers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadReconstructionConfig(writeConfig(t, tc.file, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := LoadReconstructionConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "stat config file")
}

func TestLoadReconstructionConfig_TooLarge(t *testing.T) {
	body := `{"strategy": "knn-pairing", "pad": "` + strings.Repeat("x", maxFileSize) + `"}`
	_, err := LoadReconstructionConfig(writeConfig(t, "big.json", body))
	assert.ErrorContains(t, err, "too large")
}

func TestSet_Overrides(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	require.NoError(t, cfg.Set("strategy", "grid-stitching"))
	require.NoError(t, cfg.Set("k", "12"))
	require.NoError(t, cfg.Set("radius", "0.25"))
	require.NoError(t, cfg.Set("seed", "7"))
	require.NoError(t, cfg.Set("normalize", "false"))
	require.NoError(t, cfg.Set("min_area", "1e-6"))
	require.NoError(t, cfg.Set("workers", "4"))

	rc, err := cfg.ToReconstruct()
	require.NoError(t, err)
	assert.Equal(t, triangulate.GridStitching, rc.Strategy)
	assert.Equal(t, 12, rc.K)
	assert.Equal(t, 0.25, rc.Radius)
	assert.Equal(t, uint64(7), rc.Seed)
	assert.Equal(t, 1e-6, rc.Validity.MinArea)
	assert.Equal(t, 4, rc.Workers)
	assert.False(t, cfg.GetNormalize())
}

func TestSet_Errors(t *testing.T) {
	cfg := EmptyReconstructionConfig()
	assert.ErrorContains(t, cfg.Set("colour", "red"), "unknown config key")
	assert.Error(t, cfg.Set("k", "many"))
	assert.Nil(t, cfg.K, "failed parse leaves the field untouched")
	assert.Error(t, cfg.Set("seed", "-1"))
	assert.Nil(t, cfg.Seed)
	assert.Error(t, cfg.Set("strategy", "delaunay"))
}
