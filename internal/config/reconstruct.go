package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/pointmesh/internal/normal"
	"github.com/banshee-data/pointmesh/internal/reconstruct"
	"github.com/banshee-data/pointmesh/internal/triangulate"
	"github.com/banshee-data/pointmesh/internal/voxel"
)

// DefaultConfigPath is the path to the canonical reconstruction defaults
// file.
const DefaultConfigPath = "config/reconstruct.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// ReconstructionConfig is the on-disk form of a reconstruction run. Every
// field is optional; the Get* methods supply defaults for omitted fields, so
// partial files are safe.
type ReconstructionConfig struct {
	// Downsampling
	TargetPoints *int     `json:"target_points,omitempty"` // 0 = auto budget
	LowRatio     *float64 `json:"low_ratio,omitempty"`
	HighRatio    *float64 `json:"high_ratio,omitempty"`
	Sampling     *string  `json:"sampling,omitempty"` // "centroid", "first-seen" or "stride"
	Seed         *uint64  `json:"seed,omitempty"`

	// Triangulation
	Strategy  *string  `json:"strategy,omitempty"`
	Radius    *float64 `json:"radius,omitempty"`
	K         *int     `json:"k,omitempty"`
	MaxEdge   *float64 `json:"max_edge,omitempty"`
	MinEdge   *float64 `json:"min_edge,omitempty"`
	MaxAspect *float64 `json:"max_aspect,omitempty"`
	MinArea   *float64 `json:"min_area,omitempty"`

	// Normals and search
	NormalMode    *string  `json:"normal_mode,omitempty"`
	Workers       *int     `json:"workers,omitempty"`
	IndexCellSize *float64 `json:"index_cell_size,omitempty"`

	// Run
	Normalize *bool   `json:"normalize,omitempty"`
	Timeout   *string `json:"timeout,omitempty"` // duration string like "30s"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyReconstructionConfig returns a config with every field unset.
func EmptyReconstructionConfig() *ReconstructionConfig {
	return &ReconstructionConfig{}
}

// LoadReconstructionConfig loads a ReconstructionConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadReconstructionConfig(path string) (*ReconstructionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyReconstructionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *ReconstructionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/pointmesh/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadReconstructionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. Cross-field checks that depend
// on the selected strategy are left to reconstruct.Config.Validate.
func (c *ReconstructionConfig) Validate() error {
	if c.TargetPoints != nil && *c.TargetPoints < 0 {
		return fmt.Errorf("target_points must be non-negative, got %d", *c.TargetPoints)
	}
	if c.LowRatio != nil && (*c.LowRatio <= 0 || *c.LowRatio > 1) {
		return fmt.Errorf("low_ratio must be in (0, 1], got %f", *c.LowRatio)
	}
	if c.HighRatio != nil && *c.HighRatio < 1 {
		return fmt.Errorf("high_ratio must be at least 1, got %f", *c.HighRatio)
	}
	if c.Sampling != nil {
		if _, err := voxel.ParsePolicy(*c.Sampling); err != nil {
			return fmt.Errorf("invalid sampling: %w", err)
		}
	}
	if c.Strategy != nil {
		if _, err := triangulate.ParseStrategy(*c.Strategy); err != nil {
			return fmt.Errorf("invalid strategy: %w", err)
		}
	}
	if c.Radius != nil && *c.Radius < 0 {
		return fmt.Errorf("radius must be non-negative, got %f", *c.Radius)
	}
	if c.K != nil && *c.K < 0 {
		return fmt.Errorf("k must be non-negative, got %d", *c.K)
	}
	if c.NormalMode != nil {
		if _, err := normal.ParseMode(*c.NormalMode); err != nil {
			return fmt.Errorf("invalid normal_mode: %w", err)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Timeout != nil && *c.Timeout != "" {
		if _, err := time.ParseDuration(*c.Timeout); err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
	}
	return nil
}

// GetTargetPoints returns target_points or 0 (auto budget).
func (c *ReconstructionConfig) GetTargetPoints() int {
	if c.TargetPoints == nil {
		return 0
	}
	return *c.TargetPoints
}

// GetLowRatio returns the low_ratio value or the default.
func (c *ReconstructionConfig) GetLowRatio() float64 {
	if c.LowRatio == nil {
		return voxel.DefaultLowRatio
	}
	return *c.LowRatio
}

// GetHighRatio returns the high_ratio value or the default.
func (c *ReconstructionConfig) GetHighRatio() float64 {
	if c.HighRatio == nil {
		return voxel.DefaultHighRatio
	}
	return *c.HighRatio
}

// GetSampling returns the sampling policy name or "centroid".
func (c *ReconstructionConfig) GetSampling() string {
	if c.Sampling == nil || *c.Sampling == "" {
		return voxel.Centroid.String()
	}
	return *c.Sampling
}

// GetSeed returns the supplementation seed or 0 (unseeded).
func (c *ReconstructionConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetStrategy returns the strategy name or "knn-pairing".
func (c *ReconstructionConfig) GetStrategy() string {
	if c.Strategy == nil || *c.Strategy == "" {
		return triangulate.KNNPairing.String()
	}
	return *c.Strategy
}

// GetRadius returns the radius value or the default.
func (c *ReconstructionConfig) GetRadius() float64 {
	if c.Radius == nil {
		return 0.1
	}
	return *c.Radius
}

// GetK returns the k value or the default.
func (c *ReconstructionConfig) GetK() int {
	if c.K == nil {
		return 8
	}
	return *c.K
}

// GetValidity assembles the triangle bounds, defaulting each omitted field.
func (c *ReconstructionConfig) GetValidity() triangulate.Validity {
	v := triangulate.DefaultValidity()
	if c.MaxEdge != nil {
		v.MaxEdge = *c.MaxEdge
	}
	if c.MinEdge != nil {
		v.MinEdge = *c.MinEdge
	}
	if c.MaxAspect != nil {
		v.MaxAspect = *c.MaxAspect
	}
	if c.MinArea != nil {
		v.MinArea = *c.MinArea
	}
	return v
}

// GetNormalMode returns the normal mode name or "pca".
func (c *ReconstructionConfig) GetNormalMode() string {
	if c.NormalMode == nil || *c.NormalMode == "" {
		return normal.PCA.String()
	}
	return *c.NormalMode
}

// GetWorkers returns the workers value or 1.
func (c *ReconstructionConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetIndexCellSize returns index_cell_size or 0 (derived).
func (c *ReconstructionConfig) GetIndexCellSize() float64 {
	if c.IndexCellSize == nil {
		return 0
	}
	return *c.IndexCellSize
}

// GetNormalize returns the normalize value or the default.
func (c *ReconstructionConfig) GetNormalize() bool {
	if c.Normalize == nil {
		return true
	}
	return *c.Normalize
}

// GetTimeout parses and returns Timeout; 0 means no deadline.
func (c *ReconstructionConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ToReconstruct converts the file form into a reconstruct.Config.
func (c *ReconstructionConfig) ToReconstruct() (reconstruct.Config, error) {
	sampling, err := voxel.ParsePolicy(c.GetSampling())
	if err != nil {
		return reconstruct.Config{}, err
	}
	strategy, err := triangulate.ParseStrategy(c.GetStrategy())
	if err != nil {
		return reconstruct.Config{}, err
	}
	mode, err := normal.ParseMode(c.GetNormalMode())
	if err != nil {
		return reconstruct.Config{}, err
	}
	return reconstruct.Config{
		TargetPoints:  c.GetTargetPoints(),
		LowRatio:      c.GetLowRatio(),
		HighRatio:     c.GetHighRatio(),
		Sampling:      sampling,
		Seed:          c.GetSeed(),
		Strategy:      strategy,
		Radius:        c.GetRadius(),
		K:             c.GetK(),
		Validity:      c.GetValidity(),
		NormalMode:    mode,
		Workers:       c.GetWorkers(),
		IndexCellSize: c.GetIndexCellSize(),
	}, nil
}

// Set assigns one field from its string form, keyed by its JSON name. It is
// used to layer command-line overrides on top of a loaded file.
func (c *ReconstructionConfig) Set(key, value string) error {
	var err error
	switch key {
	case "target_points":
		err = setInt(&c.TargetPoints, value)
	case "low_ratio":
		err = setFloat(&c.LowRatio, value)
	case "high_ratio":
		err = setFloat(&c.HighRatio, value)
	case "sampling":
		c.Sampling = ptrString(value)
	case "seed":
		var v uint64
		if v, err = strconv.ParseUint(value, 10, 64); err == nil {
			c.Seed = ptrUint64(v)
		}
	case "strategy":
		c.Strategy = ptrString(value)
	case "radius":
		err = setFloat(&c.Radius, value)
	case "k":
		err = setInt(&c.K, value)
	case "max_edge":
		err = setFloat(&c.MaxEdge, value)
	case "min_edge":
		err = setFloat(&c.MinEdge, value)
	case "max_aspect":
		err = setFloat(&c.MaxAspect, value)
	case "min_area":
		err = setFloat(&c.MinArea, value)
	case "normal_mode":
		c.NormalMode = ptrString(value)
	case "workers":
		err = setInt(&c.Workers, value)
	case "index_cell_size":
		err = setFloat(&c.IndexCellSize, value)
	case "normalize":
		var v bool
		if v, err = strconv.ParseBool(value); err == nil {
			c.Normalize = ptrBool(v)
		}
	case "timeout":
		c.Timeout = ptrString(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return c.Validate()
}

func setInt(dst **int, s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = ptrInt(v)
	return nil
}

func setFloat(dst **float64, s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = ptrFloat64(v)
	return nil
}
