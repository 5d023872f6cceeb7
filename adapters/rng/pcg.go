package rng

import (
	"math/rand/v2"
)

// PCGAdapter implements ports.RNGPort with math/rand/v2 PCG generators.
//
// Trial streams follow one rule: trial i of a run seeded with s draws from
// rand.NewPCG(s, i).
type PCGAdapter struct{}

// NewPCGAdapter creates a PCG-backed RNG port
func NewPCGAdapter() *PCGAdapter {
	return &PCGAdapter{}
}

// TrialStream returns the generator for one trial
func (a *PCGAdapter) TrialStream(seed uint64, trial int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(trial)))
}
