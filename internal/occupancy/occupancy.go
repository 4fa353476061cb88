// Package occupancy classifies agents by Hamming weight and accumulates the
// per-tick occupancy histograms of a run.
package occupancy

import (
	"fmt"

	"github.com/flynn33/ash-model/internal/hypercube"
	"github.com/flynn33/ash-model/internal/population"
)

// HammingWeight returns the number of one bits in v, in [0, v.Dim()].
func HammingWeight(v hypercube.Vector) int {
	return v.Weight()
}

// Histogram counts agents per Hamming-weight class 0..D. Its length is D+1.
type Histogram []int

// Snapshot classifies every agent of pop.
func Snapshot(pop *population.Population) Histogram {
	h := make(Histogram, pop.Dim()+1)
	for i := 0; i < pop.Len(); i++ {
		h[pop.WeightOf(i)]++
	}
	return h
}

// Sum returns the total count over all classes.
func (h Histogram) Sum() int {
	total := 0
	for _, c := range h {
		total += c
	}
	return total
}

// Validate checks that counts are non-negative and sum to n.
func (h Histogram) Validate(n int) error {
	for k, c := range h {
		if c < 0 {
			return fmt.Errorf("%w: class %d has negative count %d", hypercube.ErrInvariant, k, c)
		}
	}
	if s := h.Sum(); s != n {
		return fmt.Errorf("%w: histogram sums to %d, want %d", hypercube.ErrInvariant, s, n)
	}
	return nil
}

// Clone returns an independent copy.
func (h Histogram) Clone() Histogram {
	out := make(Histogram, len(h))
	copy(out, h)
	return out
}

// History is the append-only sequence of histograms for a run. Row 0 is
// the initial population; row t is the state after tick t.
type History struct {
	dim    int
	agents int
	rows   []Histogram
}

// NewHistory creates an empty history for populations of n agents with
// dimension d. capacity is a hint for the number of rows (T+1).
func NewHistory(d, n, capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{dim: d, agents: n, rows: make([]Histogram, 0, capacity)}
}

// Record appends h as the next row. A histogram of the wrong width or with a
// sum other than N is rejected and nothing is appended.
func (hs *History) Record(h Histogram) error {
	if len(h) != hs.dim+1 {
		return fmt.Errorf("%w: histogram has %d classes, want %d", hypercube.ErrInvariant, len(h), hs.dim+1)
	}
	if err := h.Validate(hs.agents); err != nil {
		return fmt.Errorf("tick %d: %w", len(hs.rows), err)
	}
	hs.rows = append(hs.rows, h.Clone())
	return nil
}

// Len returns the number of recorded rows.
func (hs *History) Len() int { return len(hs.rows) }

// Dim returns D.
func (hs *History) Dim() int { return hs.dim }

// Agents returns N.
func (hs *History) Agents() int { return hs.agents }

// Row returns a copy of row t.
func (hs *History) Row(t int) Histogram {
	return hs.rows[t].Clone()
}

// Final returns a copy of the last row, or nil for an empty history.
func (hs *History) Final() Histogram {
	if len(hs.rows) == 0 {
		return nil
	}
	return hs.rows[len(hs.rows)-1].Clone()
}

// Matrix exports the history as a (T+1) x (D+1) matrix.
func (hs *History) Matrix() [][]int {
	out := make([][]int, len(hs.rows))
	for i, r := range hs.rows {
		out[i] = []int(r.Clone())
	}
	return out
}

// FromMatrix rebuilds a history from exported rows, re-checking every row.
func FromMatrix(d, n int, m [][]int) (*History, error) {
	hs := NewHistory(d, n, len(m))
	for _, row := range m {
		if err := hs.Record(Histogram(row)); err != nil {
			return nil, err
		}
	}
	return hs, nil
}

// Clone returns a deep copy of the history.
func (hs *History) Clone() *History {
	c := &History{dim: hs.dim, agents: hs.agents, rows: make([]Histogram, len(hs.rows))}
	for i, r := range hs.rows {
		c.rows[i] = r.Clone()
	}
	return c
}
