// Package simulation runs the hypercube occupancy simulation.
//
// A Loop owns the population, the random source and the occupancy history
// for the duration of a run. Each tick draws one codeword, XORs it into
// every agent, applies noise and records the occupancy histogram. Ticks run
// strictly in order; with Workers > 1 the per-agent work inside a tick is
// spread across goroutines and joined before the next tick begins.
//
// Usage:
//
//	set, _ := codeword.Preset("adinkra")
//	loop, err := simulation.New(simulation.Params{
//	    Dim: 9, Agents: 2000, Ticks: 2000, NoiseProb: 0.01,
//	}, set)
//	if err != nil {
//	    return err // configuration error
//	}
//	res, err := loop.Run(ctx)
//
// The Scenario type and the Assert helpers are a small harness for
// property tests over complete runs.
package simulation
