package ports

import (
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// TrialStream returns the independent stream of one trial. The same (seed, trial)
	// pair always yields the same stream, whatever order trials are executed in.
	TrialStream(seed uint64, trial int) *rand.Rand
}
