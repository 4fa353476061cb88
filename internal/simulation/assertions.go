package simulation

import (
	"testing"

	"github.com/flynn33/ash-model/internal/occupancy"
)

// AssertHistoryShape asserts that the history has T+1 rows of D+1 classes.
func AssertHistoryShape(t *testing.T, res *Result) {
	t.Helper()
	m := res.History.Matrix()
	if len(m) != res.Params.Ticks+1 {
		t.Errorf("AssertHistoryShape: %d rows, want %d", len(m), res.Params.Ticks+1)
	}
	for i, row := range m {
		if len(row) != res.Params.Dim+1 {
			t.Errorf("AssertHistoryShape: row %d has %d classes, want %d", i, len(row), res.Params.Dim+1)
			return
		}
	}
}

// AssertRowsSumToAgents asserts that every row accounts for all N agents.
func AssertRowsSumToAgents(t *testing.T, res *Result) {
	t.Helper()
	for i, row := range res.History.Matrix() {
		if s := occupancy.Histogram(row).Sum(); s != res.Params.Agents {
			t.Errorf("AssertRowsSumToAgents: row %d sums to %d, want %d", i, s, res.Params.Agents)
		}
	}
}

// AssertFinalMatchesPopulation asserts that the last history row is the
// occupancy of the final population.
func AssertFinalMatchesPopulation(t *testing.T, res *Result) {
	t.Helper()
	want := occupancy.Snapshot(res.Final)
	got := res.History.Final()
	for k := range want {
		if got[k] != want[k] {
			t.Errorf("AssertFinalMatchesPopulation: class %d = %d, population has %d", k, got[k], want[k])
		}
	}
}

// AssertBinomialFit asserts that the final histogram is not distinguishable
// from N * Binomial(D, 0.5) at the given p-value threshold.
func AssertBinomialFit(t *testing.T, res *Result, minPValue float64) {
	t.Helper()
	fit, err := occupancy.ChiSquare(res.History.Final())
	if err != nil {
		t.Fatalf("AssertBinomialFit: %v", err)
	}
	if fit.PValue < minPValue {
		t.Errorf("AssertBinomialFit: chi2=%.3f dof=%d p=%.6f below %.6f (counts %v)",
			fit.Statistic, fit.DOF, fit.PValue, minPValue, res.History.Final())
	}
}

// AssertMeanNear asserts that the final mean weight is within tol of D/2.
func AssertMeanNear(t *testing.T, res *Result, tol float64) {
	t.Helper()
	mean := occupancy.Mean(res.History.Final())
	center := float64(res.Params.Dim) / 2
	if mean < center-tol || mean > center+tol {
		t.Errorf("AssertMeanNear: mean %.4f not within %.4f of %.1f", mean, tol, center)
	}
}

// AssertSameRun asserts that two results have identical histories and
// final populations.
func AssertSameRun(t *testing.T, a, b *Result) {
	t.Helper()
	ma, mb := a.History.Matrix(), b.History.Matrix()
	if len(ma) != len(mb) {
		t.Fatalf("AssertSameRun: %d rows vs %d rows", len(ma), len(mb))
	}
	for i := range ma {
		for k := range ma[i] {
			if ma[i][k] != mb[i][k] {
				t.Fatalf("AssertSameRun: row %d class %d: %d vs %d", i, k, ma[i][k], mb[i][k])
			}
		}
	}
	if !a.Final.Equal(b.Final) {
		t.Error("AssertSameRun: final populations differ")
	}
}
