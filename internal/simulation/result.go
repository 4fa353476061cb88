package simulation

import (
	"time"

	"github.com/flynn33/ash-model/internal/occupancy"
	"github.com/flynn33/ash-model/internal/population"
)

// Result is the read-only output of a completed run.
type Result struct {
	RunID     string
	Seed      uint64
	Params    Params
	Codewords []string

	// History holds T+1 rows; row 0 is the initial population.
	History *occupancy.History
	Final   *population.Population

	// Flips is the total number of noise flips over all ticks.
	Flips int
	// Codes[t-1] is the index of the codeword drawn at tick t.
	Codes []int

	Started  time.Time
	Duration time.Duration
}

// Summary condenses the final occupancy for reports and storage.
type Summary struct {
	Counts   occupancy.Histogram `json:"counts"`
	Mean     float64             `json:"mean"`
	Variance float64             `json:"variance"`
	// Fit is nil when the population is too small for a chi-square test.
	Fit *occupancy.Fit `json:"fit,omitempty"`
}

// Summarize computes the Summary of the final row.
func (r *Result) Summarize() Summary {
	final := r.History.Final()
	s := Summary{
		Counts:   final,
		Mean:     occupancy.Mean(final),
		Variance: occupancy.Variance(final),
	}
	if fit, err := occupancy.ChiSquare(final); err == nil {
		s.Fit = &fit
	}
	return s
}
