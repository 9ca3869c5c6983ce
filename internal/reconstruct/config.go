package reconstruct

import (
	"errors"
	"fmt"

	"github.com/banshee-data/pointmesh/internal/normal"
	"github.com/banshee-data/pointmesh/internal/triangulate"
	"github.com/banshee-data/pointmesh/internal/voxel"
)

// ErrInvalidConfig wraps every configuration error reported by Validate.
var ErrInvalidConfig = errors.New("reconstruct: invalid configuration")

// Config controls one reconstruction.
type Config struct {
	// TargetPoints is the downsampling budget; 0 selects AutoBudget.
	TargetPoints int
	// LowRatio and HighRatio bound the downsampled count as fractions of
	// the budget.
	LowRatio  float64
	HighRatio float64
	Sampling  voxel.Policy
	// Seed makes random supplementation reproducible; 0 uses the global
	// source.
	Seed uint64

	Strategy   triangulate.Strategy
	Radius     float64
	K          int
	Validity   triangulate.Validity
	NormalMode normal.Mode

	// Workers shards normal estimation; values below 2 run serially.
	Workers int
	// IndexCellSize sets the neighbour grid edge. 0 derives it, negative
	// selects brute-force search.
	IndexCellSize float64
}

// DefaultConfig returns the configuration used when nothing is overridden:
// auto budget, centroid sampling, k-NN pairing with k=8 and PCA normals.
func DefaultConfig() Config {
	return Config{
		LowRatio:   voxel.DefaultLowRatio,
		HighRatio:  voxel.DefaultHighRatio,
		Sampling:   voxel.Centroid,
		Strategy:   triangulate.KNNPairing,
		Radius:     0.1,
		K:          8,
		Validity:   triangulate.DefaultValidity(),
		NormalMode: normal.PCA,
		Workers:    1,
	}
}

// Validate checks every stage's settings up front so no stage starts on a
// configuration a later stage would reject.
func (cfg Config) Validate() error {
	if cfg.TargetPoints < 0 {
		return fmt.Errorf("%w: target points %d is negative", ErrInvalidConfig, cfg.TargetPoints)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers %d is negative", ErrInvalidConfig, cfg.Workers)
	}
	if err := cfg.downsampler().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.triangulateOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.NormalMode != normal.Constant && cfg.Radius <= 0 && cfg.K <= 0 {
		return fmt.Errorf("%w: %s normals need a positive radius or k", ErrInvalidConfig, cfg.NormalMode)
	}
	if _, err := normal.ParseMode(cfg.NormalMode.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
