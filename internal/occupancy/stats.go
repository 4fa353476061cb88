package occupancy

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinExpected is the smallest expected count a chi-square bin may hold.
// Tail classes are pooled until every bin reaches it.
const MinExpected = 5.0

// ErrTooFewBins is returned when pooling leaves fewer than two bins.
var ErrTooFewBins = errors.New("too few bins for chi-square test")

// Fit is the outcome of a goodness-of-fit test against Binomial(D, 0.5).
type Fit struct {
	Statistic float64 `json:"statistic"`
	DOF       int     `json:"dof"`
	PValue    float64 `json:"p_value"`
	Bins      int     `json:"bins"`
}

// Mean returns the mean Hamming weight of the histogram.
func Mean(h Histogram) float64 {
	mean, _ := moments(h)
	return mean
}

// Variance returns the weighted sample variance of the Hamming weight.
func Variance(h Histogram) float64 {
	_, variance := moments(h)
	return variance
}

func moments(h Histogram) (float64, float64) {
	x := make([]float64, len(h))
	w := make([]float64, len(h))
	for k, c := range h {
		x[k] = float64(k)
		w[k] = float64(c)
	}
	return stat.MeanVariance(x, w)
}

// Expected returns N * Binomial(d, 0.5) probabilities for classes 0..d.
func Expected(d, n int) []float64 {
	dist := distuv.Binomial{N: float64(d), P: 0.5}
	out := make([]float64, d+1)
	for k := range out {
		out[k] = float64(n) * dist.Prob(float64(k))
	}
	return out
}

// ChiSquare runs Pearson's test of h against the scaled Binomial(D, 0.5)
// distribution, D = len(h)-1.
func ChiSquare(h Histogram) (Fit, error) {
	d := len(h) - 1
	if d < 1 {
		return Fit{}, fmt.Errorf("chi-square: histogram has %d classes: %w", len(h), ErrTooFewBins)
	}
	n := h.Sum()
	expected := Expected(d, n)

	obs, exp := pool(h, expected)
	if len(obs) < 2 {
		return Fit{}, fmt.Errorf("chi-square: %d agents over %d classes: %w", n, len(h), ErrTooFewBins)
	}

	chi := 0.0
	for i := range obs {
		diff := obs[i] - exp[i]
		chi += diff * diff / exp[i]
	}
	dof := len(obs) - 1
	p := distuv.ChiSquared{K: float64(dof)}.Survival(chi)

	return Fit{Statistic: chi, DOF: dof, PValue: p, Bins: len(obs)}, nil
}

// pool merges adjacent classes from the left until each bin expects at
// least MinExpected agents; any remainder joins the last bin.
func pool(h Histogram, expected []float64) (obs, exp []float64) {
	var o, e float64
	for k := range h {
		o += float64(h[k])
		e += expected[k]
		if e >= MinExpected {
			obs = append(obs, o)
			exp = append(exp, e)
			o, e = 0, 0
		}
	}
	if e > 0 {
		if len(obs) == 0 {
			return []float64{o}, []float64{e}
		}
		obs[len(obs)-1] += o
		exp[len(exp)-1] += e
	}
	return obs, exp
}
