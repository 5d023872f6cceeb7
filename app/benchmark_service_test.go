package app

import (
	"bytes"
	"context"
	"testing"

	"compbench/adapters/rng"
	"compbench/adapters/seed"
	"compbench/adapters/stats/difftests"
	"compbench/domain/composition"
	"compbench/domain/core"
	"compbench/internal"
	"compbench/internal/errors"
	"compbench/internal/metrics"
	"compbench/internal/simulation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, logger *internal.Logger, adapters ...string) *BenchmarkService {
	t.Helper()
	registry, err := difftests.NewDefaultRegistry().Subset(adapters...)
	require.NoError(t, err)
	runner := NewTrialRunner(registry, rng.NewPCGAdapter(), simulation.DefaultSimulator(), WithWorkers(4), WithLogger(logger))
	return NewBenchmarkService(runner, metrics.NewAggregator(), logger)
}

func TestBenchmarkService_Run(t *testing.T) {
	scenario, err := simulation.FoldChangeScenario("diff",
		composition.Proportions{0.1, 0.3, 0.6}, []float64{4, 1, 1}, []float64{30})
	require.NoError(t, err)

	svc := newService(t, nil, "ttest_prop", "chisq_prop")
	report, err := svc.Run(context.Background(), BenchmarkRequest{
		Scenario: scenario,
		NSamples: 10,
		NSim:     50,
		Seed:     3,
	})
	require.NoError(t, err)

	assert.Equal(t, "diff", report.Scenario)
	assert.Equal(t, metrics.DefaultAlphaCut, report.AlphaCut)
	assert.True(t, report.Discriminable)
	require.Len(t, report.Tests, 2)
	for _, tr := range report.Tests {
		assert.True(t, tr.Recall.Applicable, tr.Name)
		assert.Greater(t, tr.Recall.Mean, 0.5, tr.Name)
		assert.GreaterOrEqual(t, tr.AUC.Mean, 0.0, tr.Name)
		assert.LessOrEqual(t, tr.AUC.Mean, 1.0, tr.Name)
		require.NotNil(t, tr.ROC)
		assert.Len(t, tr.ROC.TPR, 4)
	}
}

func TestBenchmarkService_RunConfigurationError(t *testing.T) {
	scenario, err := simulation.FoldChangeScenario("diff",
		composition.Proportions{0.5, 0.5}, []float64{2, 1}, []float64{10})
	require.NoError(t, err)

	_, err = newService(t, nil, "ttest_prop").Run(context.Background(), BenchmarkRequest{
		Scenario: scenario,
		NSamples: 7,
		NSim:     10,
	})
	assert.ErrorIs(t, err, core.ErrOddSampleCount)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	_, err = newService(t, nil, "ttest_prop").Run(context.Background(), BenchmarkRequest{NSim: 10})
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestBenchmarkService_SweepSampleSizes(t *testing.T) {
	scenario, err := simulation.NullScenario("null", composition.Proportions{0.4, 0.6}, []float64{20})
	require.NoError(t, err)

	reports, err := newService(t, nil, "ttest_prop").SweepSampleSizes(context.Background(), BenchmarkRequest{
		Scenario: scenario,
		NSim:     20,
		Seed:     1,
	}, []int{3, 5, 10})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	for i, n := range []int{3, 5, 10} {
		assert.Equal(t, 2*n, reports[i].NSamples)
		assert.False(t, reports[i].Discriminable)
		assert.True(t, reports[i].Tests[0].TypeIError.Applicable)
	}

	_, err = newService(t, nil, "ttest_prop").SweepSampleSizes(context.Background(), BenchmarkRequest{Scenario: scenario, NSim: 5}, nil)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestBenchmarkService_EstimateAndRun(t *testing.T) {
	observed, err := composition.CountMatrixFromRows([][]float64{
		{100, 120, 90, 110, 95, 105},
		{300, 280, 310, 290, 305, 295},
		{50, 50, 50, 50, 50, 50},
		{550, 550, 550, 550, 550, 550},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := internal.NewLoggerWithWriter(&buf, internal.LogLevelWarn, false)
	svc := newService(t, logger, "ttest_prop")

	fallback := composition.Broadcast(5, 50, 4)
	report, est, err := svc.EstimateAndRun(context.Background(), observed, fallback, BenchmarkRequest{NSim: 10, Seed: 4})
	require.NoError(t, err)

	assert.Len(t, est.Rows, 4)
	assert.Equal(t, "estimated", report.Scenario)
	assert.Equal(t, 6, report.NSamples)
	// every sample totals 1000, so the constant rows have zero variance
	assert.Equal(t, []int{2, 3}, est.Invalid())
	assert.Contains(t, buf.String(), "degenerate beta estimate")

	_, _, err = svc.EstimateAndRun(context.Background(), observed, composition.BetaParams{}, BenchmarkRequest{NSim: 10})
	assert.Equal(t, errors.CodeDegenerateEstimate, errors.GetCode(err))
}

func TestBenchmarkService_EstimateAndRunReplacesDegenerateRows(t *testing.T) {
	// both rows alternate between 0 and the full sample, beyond any Beta variance
	observed, err := composition.CountMatrixFromRows([][]float64{
		{0, 10, 0, 10},
		{10, 0, 10, 0},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	svc := newService(t, internal.NewLoggerWithWriter(&buf, internal.LogLevelWarn, false), "ttest_prop")

	_, est, err := svc.EstimateAndRun(context.Background(), observed, composition.Broadcast(10, 10, 2), BenchmarkRequest{NSim: 5})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, est.Invalid())
	assert.Contains(t, buf.String(), "degenerate beta estimate replaced by fallback")
}

func TestBenchmarkService_RunFromSource(t *testing.T) {
	svc := newService(t, nil, "chisq_prop")

	report, err := svc.RunFromSource(context.Background(),
		seed.NewStatic(composition.Proportions{0.25, 0.75}, nil), 10,
		BenchmarkRequest{NSamples: 6, NSim: 10})
	require.NoError(t, err)
	assert.Equal(t, "seeded", report.Scenario)

	observed, err := composition.CountMatrixFromRows([][]float64{
		{100, 130, 80, 110},
		{300, 270, 320, 290},
	})
	require.NoError(t, err)
	report, err = svc.RunFromSource(context.Background(),
		seed.NewStatic(composition.Proportions{0.25, 0.75}, observed), 10,
		BenchmarkRequest{NSim: 10})
	require.NoError(t, err)
	assert.Equal(t, "estimated", report.Scenario)
	assert.Equal(t, 4, report.NSamples)
}
