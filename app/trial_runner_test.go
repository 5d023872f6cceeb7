package app

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"compbench/adapters/rng"
	"compbench/adapters/stats/difftests"
	"compbench/domain/composition"
	"compbench/domain/core"
	"compbench/internal/metrics"
	"compbench/internal/simulation"
	"compbench/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockAdapter is a testify mock of ports.TestAdapter
type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) Name() string {
	return m.Called().String(0)
}

func (m *mockAdapter) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	args := m.Called(ctx, counts, groups)
	pvals, _ := args.Get(0).([]float64)
	return pvals, args.Error(1)
}

// mockRNG is a testify mock of ports.RNGPort
type mockRNG struct {
	mock.Mock
}

func (m *mockRNG) TrialStream(seed uint64, trial int) *rand.Rand {
	args := m.Called(seed, trial)
	r, _ := args.Get(0).(*rand.Rand)
	return r
}

// zeroSubstituting wraps an adapter func with a pseudocount
type zeroSubstituting struct {
	ports.TestAdapter
	pseudocount float64
}

func (z zeroSubstituting) Pseudocount() float64 {
	return z.pseudocount
}

func constant(name string, p float64) ports.TestAdapter {
	return ports.NewAdapterFunc(name, func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
		out := make([]float64, counts.CellTypes())
		for i := range out {
			out[i] = p
		}
		return out, nil
	})
}

func registryOf(t *testing.T, adapters ...ports.TestAdapter) *difftests.Registry {
	t.Helper()
	r := difftests.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, r.Register(a))
	}
	return r
}

func nullScenario(t *testing.T, props composition.Proportions, a float64) *simulation.Scenario {
	t.Helper()
	s, err := simulation.NullScenario("null", props, []float64{a})
	require.NoError(t, err)
	return s
}

func TestTrialRunner_FailsFastOnConfiguration(t *testing.T) {
	null := nullScenario(t, composition.Proportions{0.3, 0.7}, 10)
	diff, err := simulation.FoldChangeScenario("diff", composition.Proportions{0.3, 0.7}, []float64{2, 1}, []float64{10})
	require.NoError(t, err)

	var calls atomic.Int64
	counting := ports.NewAdapterFunc("counting", func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
		calls.Add(1)
		return []float64{0.5, 0.5}, nil
	})

	tests := []struct {
		name     string
		registry ports.AdapterRegistry
		req      RunRequest
		sentinel error
	}{
		{"missing scenario", registryOf(t, counting), RunRequest{NSamples: 10, NSim: 5}, core.ErrInvalidConfiguration},
		{"zero trials", registryOf(t, counting), RunRequest{Scenario: null, NSamples: 10}, core.ErrInvalidConfiguration},
		{"one sample", registryOf(t, counting), RunRequest{Scenario: null, NSamples: 1, NSim: 5}, core.ErrInvalidConfiguration},
		{"odd samples with true difference", registryOf(t, counting), RunRequest{Scenario: diff, NSamples: 9, NSim: 5}, core.ErrOddSampleCount},
		{"group length mismatch", registryOf(t, counting), RunRequest{Scenario: null, NSamples: 4, NSim: 5, Groups: composition.Groups{0, 1}}, core.ErrInvalidGroups},
		{"three groups for a two-group scenario", registryOf(t, counting), RunRequest{Scenario: diff, NSamples: 6, NSim: 5, Groups: composition.Groups{0, 0, 1, 1, 2, 2}}, core.ErrInvalidGroups},
		{"no adapters", difftests.NewRegistry(), RunRequest{Scenario: null, NSamples: 4, NSim: 5}, core.ErrNoAdapters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rngPort := &mockRNG{}
			runner := NewTrialRunner(tt.registry, rngPort, simulation.DefaultSimulator())

			_, err := runner.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, core.IsConfigurationError(err))
			rngPort.AssertNotCalled(t, "TrialStream", mock.Anything, mock.Anything)
		})
	}
	assert.Zero(t, calls.Load())
}

func TestTrialRunner_OddSamplesUnderNull(t *testing.T) {
	runner := NewTrialRunner(registryOf(t, constant("c", 0.5)), rng.NewPCGAdapter(), simulation.DefaultSimulator())

	result, err := runner.Run(context.Background(), RunRequest{
		Scenario: nullScenario(t, composition.Proportions{0.3, 0.7}, 10),
		NSamples: 5,
		NSim:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, composition.Groups{0, 0, 1, 1, 1}, result.Groups)
}

func TestTrialRunner_CallsEveryAdapterPerTrial(t *testing.T) {
	adapter := &mockAdapter{}
	adapter.On("Name").Return("mocked")
	adapter.On("Test", mock.Anything, mock.AnythingOfType("*composition.CountMatrix"), composition.Groups{0, 0, 0, 1, 1, 1}).
		Return([]float64{0.2, 0.8}, nil)

	runner := NewTrialRunner(registryOf(t, adapter), rng.NewPCGAdapter(), simulation.DefaultSimulator(), WithWorkers(4))
	result, err := runner.Run(context.Background(), RunRequest{
		Scenario: nullScenario(t, composition.Proportions{0.3, 0.7}, 10),
		NSamples: 6,
		NSim:     25,
		Seed:     9,
	})
	require.NoError(t, err)

	adapter.AssertNumberOfCalls(t, "Test", 25)
	assert.Equal(t, []string{"mocked"}, result.PValues.Tests())
	for s := 0; s < 25; s++ {
		assert.Equal(t, []float64{0.2, 0.8}, result.PValues.Trial(0, s))
	}
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.ConfigHash)
}

func TestTrialRunner_IsolatesAdapterFailures(t *testing.T) {
	failing := ports.NewAdapterFunc("fails", func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
		return nil, errors.New("did not converge")
	})
	panicking := ports.NewAdapterFunc("panics", func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
		panic("index out of range")
	})
	short := ports.NewAdapterFunc("short", func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
		return []float64{0.1}, nil
	})
	outOfRange := constant("out_of_range", 1.5)
	partial := ports.NewAdapterFunc("partial", func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
		return []float64{math.NaN(), 0.3}, nil
	})

	registry := registryOf(t, constant("healthy", 0.01), failing, panicking, short, outOfRange, partial)
	runner := NewTrialRunner(registry, rng.NewPCGAdapter(), simulation.DefaultSimulator(), WithWorkers(3))

	result, err := runner.Run(context.Background(), RunRequest{
		Scenario: nullScenario(t, composition.Proportions{0.3, 0.7}, 10),
		NSamples: 6,
		NSim:     10,
	})
	require.NoError(t, err)
	tensor := result.PValues

	assert.Zero(t, tensor.Failures(0))
	assert.Zero(t, tensor.Missing(0))
	for ti := 1; ti <= 4; ti++ {
		assert.Equal(t, 10, tensor.Failures(ti), tensor.Tests()[ti])
		assert.Equal(t, 20, tensor.Missing(ti), tensor.Tests()[ti])
	}
	// a NaN element is a missing cell, not a failed trial
	assert.Zero(t, tensor.Failures(5))
	assert.Equal(t, 10, tensor.Missing(5))
	assert.Equal(t, 0.3, tensor.At(5, 0, 1))
}

func TestTrialRunner_ZeroSubstitutionUsesPrivateCopy(t *testing.T) {
	sim, err := simulation.NewSimulator(100, simulation.DefaultDispersion)
	require.NoError(t, err)

	var sawZeros, sawPseudocount atomic.Bool
	var leaked atomic.Bool
	logRatio := zeroSubstituting{
		TestAdapter: ports.NewAdapterFunc("logratio", func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
			if counts.HasZeros() {
				leaked.Store(true)
			}
			k, j := counts.Dims()
			for r := 0; r < k; r++ {
				for c := 0; c < j; c++ {
					if counts.At(r, c) == 0.5 {
						sawPseudocount.Store(true)
					}
				}
			}
			return []float64{0.5, 0.5}, nil
		}),
		pseudocount: 0.5,
	}
	plain := ports.NewAdapterFunc("plain", func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
		if counts.HasZeros() {
			sawZeros.Store(true)
		}
		return []float64{0.5, 0.5}, nil
	})

	runner := NewTrialRunner(registryOf(t, logRatio, plain), rng.NewPCGAdapter(), sim)
	_, err = runner.Run(context.Background(), RunRequest{
		Scenario: nullScenario(t, composition.Proportions{0.01, 0.99}, 2),
		NSamples: 10,
		NSim:     50,
	})
	require.NoError(t, err)

	assert.False(t, leaked.Load(), "zero-substituting adapter saw a zero")
	assert.True(t, sawPseudocount.Load())
	assert.True(t, sawZeros.Load(), "other adapters see the raw matrix")
}

func TestTrialRunner_DeterministicAcrossWorkerCounts(t *testing.T) {
	scenario, err := simulation.FoldChangeScenario("diff",
		composition.Proportions{0.1, 0.3, 0.6}, []float64{2, 1, 1}, []float64{10})
	require.NoError(t, err)
	req := RunRequest{Scenario: scenario, NSamples: 8, NSim: 40, Seed: 1234}

	run := func(workers int) []float64 {
		registry := registryOf(t, difftests.NewChiSquareProportionTest(), difftests.NewProportionTTest())
		runner := NewTrialRunner(registry, rng.NewPCGAdapter(), simulation.DefaultSimulator(), WithWorkers(workers))
		result, err := runner.Run(context.Background(), req)
		require.NoError(t, err)

		var out []float64
		for ti := range result.PValues.Tests() {
			for s := 0; s < req.NSim; s++ {
				out = append(out, result.PValues.Trial(ti, s)...)
			}
		}
		return out
	}

	sequential := run(1)
	parallel := run(8)
	require.Len(t, parallel, len(sequential))
	for i := range sequential {
		if math.IsNaN(sequential[i]) {
			assert.True(t, math.IsNaN(parallel[i]))
			continue
		}
		assert.Equal(t, sequential[i], parallel[i], "slot %d", i)
	}
}

func TestTrialRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewTrialRunner(registryOf(t, constant("c", 0.5)), rng.NewPCGAdapter(), simulation.DefaultSimulator())
	_, err := runner.Run(ctx, RunRequest{
		Scenario: nullScenario(t, composition.Proportions{0.3, 0.7}, 10),
		NSamples: 6,
		NSim:     100,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrialRunner_ChiSquareInflatedUnderOverdispersion(t *testing.T) {
	// props [0.2, 0.8] with a = 10 gives b = [40, 2.5]
	scenario := nullScenario(t, composition.Proportions{0.2, 0.8}, 10)
	assert.InDeltaSlice(t, []float64{40, 2.5}, scenario.Params[0].Beta, 1e-12)

	runner := NewTrialRunner(registryOf(t, difftests.NewChiSquareProportionTest()), rng.NewPCGAdapter(), simulation.DefaultSimulator())
	result, err := runner.Run(context.Background(), RunRequest{
		Scenario: scenario,
		NSamples: 10,
		NSim:     1000,
		Seed:     2024,
	})
	require.NoError(t, err)
	assert.Equal(t, composition.Groups{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, result.Groups)

	typeI, err := metrics.TypeIError(result.PValues, "chisq_prop", scenario.Truth, 0.05)
	require.NoError(t, err)
	assert.Greater(t, typeI.Mean, 0.5, "pooled counts ignore sample-level overdispersion")
}

func TestTrialRunner_NullCalibration(t *testing.T) {
	scenario := nullScenario(t, composition.Proportions{0.3, 0.7}, 50)
	runner := NewTrialRunner(registryOf(t, difftests.NewProportionTTest()), rng.NewPCGAdapter(), simulation.DefaultSimulator())

	result, err := runner.Run(context.Background(), RunRequest{
		Scenario: scenario,
		NSamples: 20,
		NSim:     1000,
		Seed:     77,
	})
	require.NoError(t, err)

	rates, err := metrics.RejectionRates(result.PValues, "ttest_prop", scenario.Truth, 0.05)
	require.NoError(t, err)
	for _, r := range rates {
		assert.InDelta(t, 0.05, r.Rate, 0.03, r.Label)
	}
}

func TestTrialRunner_PowerExceedsSize(t *testing.T) {
	props := composition.Proportions{0.05, 0.2375, 0.2375, 0.2375, 0.2375}
	scenario, err := simulation.FoldChangeScenario("threefold", props, []float64{3, 1, 1, 1, 1}, []float64{50})
	require.NoError(t, err)

	runner := NewTrialRunner(registryOf(t, difftests.NewProportionTTest()), rng.NewPCGAdapter(), simulation.DefaultSimulator())
	result, err := runner.Run(context.Background(), RunRequest{
		Scenario: scenario,
		NSamples: 10,
		NSim:     300,
		Seed:     5,
	})
	require.NoError(t, err)

	rates, err := metrics.RejectionRates(result.PValues, "ttest_prop", scenario.Truth, 0.05)
	require.NoError(t, err)
	assert.False(t, rates[0].Null)
	assert.Greater(t, rates[0].Rate, 0.9)
	assert.Less(t, rates[1].Rate, rates[0].Rate-0.5)
}

func TestTrialRunner_RandomLabelsGiveChanceAUC(t *testing.T) {
	k := 10
	props := make(composition.Proportions, k)
	for i := range props {
		props[i] = 1 / float64(k)
	}
	scenario := nullScenario(t, props, 20)

	runner := NewTrialRunner(registryOf(t, difftests.NewProportionTTest()), rng.NewPCGAdapter(), simulation.DefaultSimulator())
	result, err := runner.Run(context.Background(), RunRequest{
		Scenario: scenario,
		NSamples: 10,
		NSim:     500,
		Seed:     99,
	})
	require.NoError(t, err)

	labels := rand.New(rand.NewPCG(1, 2))
	truth := make(composition.GroundTruth, k)
	for _, c := range labels.Perm(k)[:4] {
		truth[c] = true
	}

	auc, err := metrics.AUC(result.PValues, "ttest_prop", truth)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, auc.Mean, 0.0)
	assert.LessOrEqual(t, auc.Mean, 1.0)
	assert.InDelta(t, 0.5, auc.Mean, 0.05)
}
