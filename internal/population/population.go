// Package population holds the mutable collection of agent states and the
// batch operations applied to it each tick.
package population

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flynn33/ash-model/internal/hypercube"
)

// Random is the randomness needed to initialize agents.
type Random interface {
	Uint64() uint64
}

// Population is an ordered collection of N agents, each a D-bit vector.
// It is not safe for concurrent mutation except through the parallel
// methods, which partition agents between goroutines.
type Population struct {
	dim    int
	agents []hypercube.Vector
}

// Initialize creates n agents with independent uniform random bits.
func Initialize(n, d int, r Random) (*Population, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: agent count must be positive, got %d", hypercube.ErrConfig, n)
	}
	if d <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", hypercube.ErrConfig, d)
	}

	p := &Population{dim: d, agents: make([]hypercube.Vector, n)}
	for i := range p.agents {
		v := hypercube.NewVector(d)
		v.Randomize(r)
		p.agents[i] = v
	}
	return p, nil
}

// FromRows builds a population from explicit 0/1 rows. All rows must share
// the same non-zero length.
func FromRows(rows [][]uint8) (*Population, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: population has no agents", hypercube.ErrConfig)
	}
	d := len(rows[0])
	if d == 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got 0", hypercube.ErrConfig)
	}

	p := &Population{dim: d, agents: make([]hypercube.Vector, len(rows))}
	for i, row := range rows {
		if len(row) != d {
			return nil, fmt.Errorf("%w: agent %d has %d bits, want %d", hypercube.ErrConfig, i, len(row), d)
		}
		v, err := hypercube.FromBits(row)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		p.agents[i] = v
	}
	return p, nil
}

// FromStrings builds a population from bit strings as produced by Strings.
func FromStrings(rows []string) (*Population, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: population has no agents", hypercube.ErrConfig)
	}
	first, err := hypercube.ParseVector(rows[0])
	if err != nil {
		return nil, fmt.Errorf("agent 0: %w", err)
	}

	p := &Population{dim: first.Dim(), agents: make([]hypercube.Vector, len(rows))}
	p.agents[0] = first
	for i := 1; i < len(rows); i++ {
		v, err := hypercube.ParseVector(rows[i])
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		if v.Dim() != p.dim {
			return nil, fmt.Errorf("%w: agent %d has %d bits, want %d", hypercube.ErrConfig, i, v.Dim(), p.dim)
		}
		p.agents[i] = v
	}
	return p, nil
}

// Len returns the number of agents.
func (p *Population) Len() int { return len(p.agents) }

// Dim returns the state length D.
func (p *Population) Dim() int { return p.dim }

// Agent returns a copy of agent i's state.
func (p *Population) Agent(i int) hypercube.Vector {
	return p.agents[i].Clone()
}

// ApplyTransform XORs code into every agent. A length mismatch is reported
// before any agent is touched.
func (p *Population) ApplyTransform(code hypercube.Vector) error {
	if err := p.checkCode(code); err != nil {
		return err
	}
	for _, a := range p.agents {
		// Lengths already checked; Xor cannot fail.
		_ = a.Xor(code)
	}
	return nil
}

// ApplyTransformParallel is ApplyTransform with agents split into contiguous
// chunks across at most workers goroutines. It returns after every chunk
// has finished, so the caller observes the fully transformed population.
func (p *Population) ApplyTransformParallel(ctx context.Context, code hypercube.Vector, workers int) error {
	if err := p.checkCode(code); err != nil {
		return err
	}
	return p.ForEachChunk(ctx, workers, func(lo, hi int) error {
		for _, a := range p.agents[lo:hi] {
			_ = a.Xor(code)
		}
		return nil
	})
}

// ForEachChunk runs fn over disjoint [lo,hi) agent ranges covering the
// whole population, using at most workers goroutines. Each agent belongs to
// exactly one chunk.
func (p *Population) ForEachChunk(ctx context.Context, workers int, fn func(lo, hi int) error) error {
	n := len(p.agents)
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers

	g, gCtx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// FlipBit toggles bit b of agent i.
func (p *Population) FlipBit(i, b int) {
	p.agents[i].Flip(b)
}

// WeightOf returns the Hamming weight of agent i without copying it.
func (p *Population) WeightOf(i int) int {
	return p.agents[i].Weight()
}

// Weights returns the Hamming weight of every agent, in order.
func (p *Population) Weights() []int {
	out := make([]int, len(p.agents))
	for i, a := range p.agents {
		out[i] = a.Weight()
	}
	return out
}

// Matrix exports the population as an N x D matrix of 0/1 values.
func (p *Population) Matrix() [][]uint8 {
	out := make([][]uint8, len(p.agents))
	for i, a := range p.agents {
		out[i] = a.Bits()
	}
	return out
}

// Strings exports every agent as a bit string.
func (p *Population) Strings() []string {
	out := make([]string, len(p.agents))
	for i, a := range p.agents {
		out[i] = a.String()
	}
	return out
}

// Clone returns a deep copy.
func (p *Population) Clone() *Population {
	c := &Population{dim: p.dim, agents: make([]hypercube.Vector, len(p.agents))}
	for i, a := range p.agents {
		c.agents[i] = a.Clone()
	}
	return c
}

// Equal reports whether both populations hold the same states in order.
func (p *Population) Equal(other *Population) bool {
	if p.dim != other.dim || len(p.agents) != len(other.agents) {
		return false
	}
	for i, a := range p.agents {
		if !a.Equal(other.agents[i]) {
			return false
		}
	}
	return true
}

// Validate checks that every agent has exactly D valid bits.
func (p *Population) Validate() error {
	for i, a := range p.agents {
		if a.Dim() != p.dim {
			return fmt.Errorf("%w: agent %d has %d bits, want %d", hypercube.ErrInvariant, i, a.Dim(), p.dim)
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("agent %d: %w", i, err)
		}
	}
	return nil
}

func (p *Population) checkCode(code hypercube.Vector) error {
	if code.Dim() != p.dim {
		return fmt.Errorf("%w: codeword length %d does not match dimension %d", hypercube.ErrConfig, code.Dim(), p.dim)
	}
	return nil
}
