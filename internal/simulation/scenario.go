package simulation

import (
	"context"
	"testing"

	"github.com/flynn33/ash-model/internal/codeword"
	"github.com/flynn33/ash-model/internal/population"
)

// Scenario defines a complete simulation experiment for property tests.
type Scenario struct {
	Name   string
	Params Params

	// Preset names the codeword set. Ignored when Codewords is non-empty.
	Preset string
	// Codewords are explicit bit strings of length Params.Dim.
	Codewords []string

	// Initial, when non-nil, replaces the random initial population.
	Initial [][]uint8

	Options []Option
}

// Set resolves the scenario's codeword set.
func (s Scenario) Set() (*codeword.Set, error) {
	if len(s.Codewords) > 0 {
		return codeword.Parse(s.Params.Dim, s.Codewords)
	}
	name := s.Preset
	if name == "" {
		name = codeword.DefaultPreset
	}
	return codeword.Preset(name)
}

// RunScenario executes the scenario to completion and fails the test on
// any error.
func RunScenario(t *testing.T, s Scenario) *Result {
	t.Helper()

	set, err := s.Set()
	if err != nil {
		t.Fatalf("%s: codewords: %v", s.Name, err)
	}
	loop, err := New(s.Params, set, s.Options...)
	if err != nil {
		t.Fatalf("%s: New: %v", s.Name, err)
	}
	if s.Initial != nil {
		pop, err := population.FromRows(s.Initial)
		if err != nil {
			t.Fatalf("%s: initial population: %v", s.Name, err)
		}
		if err := loop.InitializeWith(pop); err != nil {
			t.Fatalf("%s: InitializeWith: %v", s.Name, err)
		}
	}

	res, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("%s: Run: %v", s.Name, err)
	}
	return res
}

// Reference returns the reference configuration: D=9, six adinkra
// codewords, 2000 agents, 2000 ticks, p=0.01.
func Reference() Scenario {
	return Scenario{
		Name: "reference",
		Params: Params{
			Dim:       9,
			Agents:    2000,
			Ticks:     2000,
			NoiseProb: 0.01,
		},
		Preset: codeword.DefaultPreset,
	}
}
