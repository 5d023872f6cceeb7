package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrialStream_Deterministic(t *testing.T) {
	a := NewPCGAdapter()

	first := a.TrialStream(42, 7)
	second := a.TrialStream(42, 7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first.Uint64(), second.Uint64())
	}
}

func TestTrialStream_IndependentPerTrial(t *testing.T) {
	a := NewPCGAdapter()

	seen := make(map[uint64]int)
	for trial := 0; trial < 50; trial++ {
		v := a.TrialStream(42, trial).Uint64()
		if prev, ok := seen[v]; ok {
			t.Fatalf("trials %d and %d produced the same first draw", prev, trial)
		}
		seen[v] = trial
	}

	assert.NotEqual(t, a.TrialStream(1, 0).Uint64(), a.TrialStream(2, 0).Uint64())
}
