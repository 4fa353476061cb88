package hypercube

import "errors"

// ErrConfig classifies invalid run configuration: bad dimensions, counts,
// probabilities or codeword lengths. It is fatal and detected before the
// first tick.
var ErrConfig = errors.New("configuration error")

// ErrInvariant classifies a broken internal invariant, such as a state bit
// outside {0,1} or a histogram whose counts do not sum to the population.
var ErrInvariant = errors.New("invariant violation")
