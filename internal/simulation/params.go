package simulation

import (
	"fmt"

	"github.com/flynn33/ash-model/internal/codeword"
	"github.com/flynn33/ash-model/internal/hypercube"
)

// Params is the fixed configuration of a run.
type Params struct {
	Dim       int     `json:"dim"`
	Agents    int     `json:"agents"`
	Ticks     int     `json:"ticks"`
	NoiseProb float64 `json:"noise_prob"`

	// Seed makes the run reproducible. Nil draws a fresh seed, which is
	// reported in the Result.
	Seed *uint64 `json:"seed,omitempty"`

	// Workers > 1 parallelizes transform and noise within each tick.
	Workers int `json:"workers"`
}

// Validate reports the first configuration error, wrapped in
// hypercube.ErrConfig.
func (p Params) Validate(set *codeword.Set) error {
	switch {
	case p.Dim <= 0:
		return fmt.Errorf("%w: dim must be positive, got %d", hypercube.ErrConfig, p.Dim)
	case p.Agents <= 0:
		return fmt.Errorf("%w: agents must be positive, got %d", hypercube.ErrConfig, p.Agents)
	case p.Ticks < 0:
		return fmt.Errorf("%w: ticks must be non-negative, got %d", hypercube.ErrConfig, p.Ticks)
	case !(p.NoiseProb >= 0 && p.NoiseProb <= 1):
		return fmt.Errorf("%w: noise probability must be in [0,1], got %v", hypercube.ErrConfig, p.NoiseProb)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must be non-negative, got %d", hypercube.ErrConfig, p.Workers)
	case set == nil || set.Len() == 0:
		return fmt.Errorf("%w: codeword set is empty", hypercube.ErrConfig)
	case set.Dim() != p.Dim:
		return fmt.Errorf("%w: codewords have length %d, want %d", hypercube.ErrConfig, set.Dim(), p.Dim)
	}
	return nil
}

// SeedPtr is a convenience for filling Params.Seed.
func SeedPtr(seed uint64) *uint64 {
	return &seed
}
