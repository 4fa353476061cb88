// Package noise applies independent single-bit perturbations to agents.
package noise

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/population"
	"github.com/flynn33/ash-model/internal/rng"
)

// Random is the randomness consumed per agent: one uniform draw for the
// decision and, when triggered, one index draw for the bit.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Model flips at most one random bit per agent per tick with probability P.
type Model struct {
	p   float64
	dim int
}

// NewModel validates p in [0,1] and d > 0.
func NewModel(p float64, d int) (*Model, error) {
	// NaN fails both comparisons, so test for the valid range.
	if !(p >= 0 && p <= 1) {
		return nil, fmt.Errorf("%w: noise probability must be in [0,1], got %v", hypercube.ErrConfig, p)
	}
	if d <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", hypercube.ErrConfig, d)
	}
	return &Model{p: p, dim: d}, nil
}

// Probability returns the per-agent flip probability.
func (m *Model) Probability() float64 { return m.p }

// Apply visits agents in order, drawing from a single shared stream, and
// returns the number of bits flipped.
func (m *Model) Apply(pop *population.Population, r Random) (int, error) {
	if err := m.check(pop); err != nil {
		return 0, err
	}
	flips := 0
	for i := 0; i < pop.Len(); i++ {
		if m.perturb(pop, i, r) {
			flips++
		}
	}
	return flips, nil
}

// ApplyStreams is the parallel variant. Agent i draws only from
// rng.Stream(base, i), so the outcome is the same for any worker count and
// no two agents share randomness.
func (m *Model) ApplyStreams(ctx context.Context, pop *population.Population, base uint64, workers int) (int, error) {
	if err := m.check(pop); err != nil {
		return 0, err
	}
	var flips atomic.Int64
	err := pop.ForEachChunk(ctx, workers, func(lo, hi int) error {
		n := int64(0)
		for i := lo; i < hi; i++ {
			if m.perturb(pop, i, rng.Stream(base, i)) {
				n++
			}
		}
		flips.Add(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(flips.Load()), nil
}

func (m *Model) perturb(pop *population.Population, i int, r Random) bool {
	if r.Float64() >= m.p {
		return false
	}
	pop.FlipBit(i, r.IntN(m.dim))
	return true
}

func (m *Model) check(pop *population.Population) error {
	if pop.Dim() != m.dim {
		return fmt.Errorf("%w: noise dimension %d does not match population dimension %d", hypercube.ErrConfig, m.dim, pop.Dim())
	}
	return nil
}
