// Package codeword holds the fixed set of transformations applied to the
// population. A Set is immutable once built.
package codeword

import (
	"fmt"
	"sort"

	"github.com/flynn33/ash-model/internal/hypercube"
)

// Picker is the randomness a Set needs to choose a codeword.
type Picker interface {
	IntN(n int) int
}

// Set is an ordered, immutable collection of D-bit codewords.
type Set struct {
	dim   int
	codes []hypercube.Vector
}

// NewSet validates and copies codes. Every codeword must have length d and
// the set must not be empty.
func NewSet(d int, codes []hypercube.Vector) (*Set, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: codeword dimension must be positive, got %d", hypercube.ErrConfig, d)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: codeword set is empty", hypercube.ErrConfig)
	}

	owned := make([]hypercube.Vector, len(codes))
	for i, c := range codes {
		if c.Dim() != d {
			return nil, fmt.Errorf("%w: codeword %d has length %d, want %d", hypercube.ErrConfig, i, c.Dim(), d)
		}
		owned[i] = c.Clone()
	}
	return &Set{dim: d, codes: owned}, nil
}

// Parse builds a Set from bit strings such as "111100000".
func Parse(d int, codes []string) (*Set, error) {
	vecs := make([]hypercube.Vector, 0, len(codes))
	for i, s := range codes {
		v, err := hypercube.ParseVector(s)
		if err != nil {
			return nil, fmt.Errorf("codeword %d: %w", i, err)
		}
		vecs = append(vecs, v)
	}
	return NewSet(d, vecs)
}

// Len returns the number of codewords.
func (s *Set) Len() int { return len(s.codes) }

// Dim returns the codeword length.
func (s *Set) Dim() int { return s.dim }

// At returns a copy of codeword i.
func (s *Set) At(i int) hypercube.Vector {
	return s.codes[i].Clone()
}

// All returns copies of every codeword, in order.
func (s *Set) All() []hypercube.Vector {
	out := make([]hypercube.Vector, len(s.codes))
	for i, c := range s.codes {
		out[i] = c.Clone()
	}
	return out
}

// Strings returns the codewords as bit strings, in order.
func (s *Set) Strings() []string {
	out := make([]string, len(s.codes))
	for i, c := range s.codes {
		out[i] = c.String()
	}
	return out
}

// PickRandom returns the index and a copy of a codeword chosen uniformly
// at random using r.
func (s *Set) PickRandom(r Picker) (int, hypercube.Vector) {
	i := r.IntN(len(s.codes))
	return i, s.codes[i].Clone()
}

// presets maps preset names to their D=9 codewords.
var presets = map[string][]string{
	// Six hand-chosen generators mimicking raising/lowering operators in
	// adinkra graphs. This is the reference configuration.
	"adinkra": {
		"111100000",
		"110011000",
		"101010100",
		"100110010",
		"010101011",
		"001100111",
	},
	// A single doubly-even code extension applied every tick.
	"doubly-even": {
		"110010101",
	},
}

// DefaultPreset is the preset used when none is configured.
const DefaultPreset = "adinkra"

// Preset returns the named preset set.
func Preset(name string) (*Set, error) {
	codes, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown codeword preset %q (valid: %v)", hypercube.ErrConfig, name, PresetNames())
	}
	return Parse(len(codes[0]), codes)
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
