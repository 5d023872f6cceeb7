package benchmark

import (
	"fmt"
	"math"
	"time"

	"compbench/domain/composition"
	"compbench/domain/core"
)

// PValueTensor stores p-values for (test x trial x cell type). It is allocated once
// per run and every trial writes only its own slots, so concurrent trials never
// share a write location. Missing values are NaN.
type PValueTensor struct {
	tests  []string
	index  map[string]int
	nsim   int
	k      int
	values []float64
	failed []bool
}

// NewPValueTensor allocates a tensor filled with NaN.
func NewPValueTensor(tests []string, nsim, k int) *PValueTensor {
	index := make(map[string]int, len(tests))
	for i, name := range tests {
		index[name] = i
	}
	values := make([]float64, len(tests)*nsim*k)
	for i := range values {
		values[i] = math.NaN()
	}
	names := make([]string, len(tests))
	copy(names, tests)
	return &PValueTensor{
		tests:  names,
		index:  index,
		nsim:   nsim,
		k:      k,
		values: values,
		failed: make([]bool, len(tests)*nsim),
	}
}

// Tests returns the test names in registry order
func (t *PValueTensor) Tests() []string {
	return t.tests
}

// NSim returns the number of trials
func (t *PValueTensor) NSim() int {
	return t.nsim
}

// CellTypes returns K
func (t *PValueTensor) CellTypes() int {
	return t.k
}

// TestIndex resolves a test name.
func (t *PValueTensor) TestIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, core.NewNotFoundError("test", name)
	}
	return i, nil
}

func (t *PValueTensor) offset(test, trial int) int {
	return (test*t.nsim + trial) * t.k
}

// Set stores the p-value for cell type k.
func (t *PValueTensor) Set(test, trial, k int, p float64) {
	t.values[t.offset(test, trial)+k] = p
}

// SetTrial copies a K-length p-value vector into the slots of (test, trial).
func (t *PValueTensor) SetTrial(test, trial int, pvals []float64) error {
	if len(pvals) != t.k {
		return fmt.Errorf("expected %d p-values, got %d", t.k, len(pvals))
	}
	copy(t.values[t.offset(test, trial):t.offset(test, trial)+t.k], pvals)
	return nil
}

// MarkFailed records an adapter failure and blanks the slots of (test, trial).
func (t *PValueTensor) MarkFailed(test, trial int) {
	t.failed[test*t.nsim+trial] = true
	start := t.offset(test, trial)
	for i := start; i < start+t.k; i++ {
		t.values[i] = math.NaN()
	}
}

// Failed reports whether the adapter failed on the trial.
func (t *PValueTensor) Failed(test, trial int) bool {
	return t.failed[test*t.nsim+trial]
}

// At returns the p-value for (test, trial, k).
func (t *PValueTensor) At(test, trial, k int) float64 {
	return t.values[t.offset(test, trial)+k]
}

// Trial returns the K p-values of one trial. The slice aliases the tensor.
func (t *PValueTensor) Trial(test, trial int) []float64 {
	start := t.offset(test, trial)
	return t.values[start : start+t.k : start+t.k]
}

// Cell returns the nsim p-values of cell type k for one test.
func (t *PValueTensor) Cell(test, k int) []float64 {
	out := make([]float64, t.nsim)
	for s := 0; s < t.nsim; s++ {
		out[s] = t.At(test, s, k)
	}
	return out
}

// Failures counts failed trials for one test.
func (t *PValueTensor) Failures(test int) int {
	n := 0
	for s := 0; s < t.nsim; s++ {
		if t.failed[test*t.nsim+s] {
			n++
		}
	}
	return n
}

// Missing counts NaN p-values for one test, including failed trials.
func (t *PValueTensor) Missing(test int) int {
	n := 0
	start := t.offset(test, 0)
	for _, v := range t.values[start : start+t.nsim*t.k] {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// RunResult is the output of the trial runner.
type RunResult struct {
	RunID      core.RunID
	Scenario   string
	NSamples   int
	NSim       int
	Seed       uint64
	Groups     composition.Groups
	PValues    *PValueTensor
	ConfigHash core.ConfigHash
	StartedAt  core.Timestamp
	Duration   time.Duration
}
