// Package rng provides the explicit, seedable random source threaded through
// the simulation. Nothing in the simulation draws from a global generator.
package rng

import (
	"math/rand/v2"
)

// Source is a seeded PCG generator. It is not safe for concurrent use;
// parallel work derives independent sub-streams with Stream.
type Source struct {
	seed uint64
	*rand.Rand
}

// New returns a Source seeded with seed.
func New(seed uint64) *Source {
	return &Source{
		seed: seed,
		Rand: rand.New(rand.NewPCG(seed, mix(seed))),
	}
}

// NewSeed returns a fresh seed from the runtime's entropy-seeded generator.
// Callers record it so the run can be replayed.
func NewSeed() uint64 {
	return rand.Uint64()
}

// Seed returns the seed this source was created with.
func (s *Source) Seed() uint64 {
	return s.seed
}

// Stream returns a generator for sub-stream index under base. The 128-bit
// PCG state is seeded from mix(base) and index, so distinct indices start
// at distinct points of the same PCG cycle. Each stream is owned by one
// caller and needs no shared state across goroutines.
func Stream(base uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(mix(base), uint64(index)))
}

// mix is the splitmix64 finalizer.
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
