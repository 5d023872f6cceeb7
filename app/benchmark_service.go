package app

import (
	"context"
	"fmt"

	"compbench/domain/composition"
	"compbench/internal"
	"compbench/internal/errors"
	"compbench/internal/estimation"
	"compbench/internal/metrics"
	"compbench/internal/simulation"
	"compbench/ports"
)

// BenchmarkService runs scenarios end to end: trials, then metrics
type BenchmarkService struct {
	runner     *TrialRunner
	aggregator *metrics.Aggregator
	logger     *internal.Logger
}

// BenchmarkRequest describes one scenario evaluation
type BenchmarkRequest struct {
	Scenario *simulation.Scenario
	NSamples int
	NSim     int
	Seed     uint64
	Groups   composition.Groups
	AlphaCut float64 // zero means metrics.DefaultAlphaCut
}

// NewBenchmarkService creates a benchmark service
func NewBenchmarkService(runner *TrialRunner, aggregator *metrics.Aggregator, logger *internal.Logger) *BenchmarkService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &BenchmarkService{
		runner:     runner,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Run executes the trials and aggregates the report
func (s *BenchmarkService) Run(ctx context.Context, req BenchmarkRequest) (*metrics.Report, error) {
	alphaCut := req.AlphaCut
	if alphaCut == 0 {
		alphaCut = metrics.DefaultAlphaCut
	}
	if req.Scenario == nil {
		return nil, errors.ConfigInvalid("scenario is required")
	}

	result, err := s.runner.Run(ctx, RunRequest{
		Scenario: req.Scenario,
		NSamples: req.NSamples,
		NSim:     req.NSim,
		Seed:     req.Seed,
		Groups:   req.Groups,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", req.Scenario.Name)
	}

	report, err := s.aggregator.Report(result, req.Scenario.Truth, alphaCut)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate metrics")
	}
	return report, nil
}

// SweepSampleSizes runs the same scenario once per samples-per-group value, each
// with two equal groups and the same base seed.
func (s *BenchmarkService) SweepSampleSizes(ctx context.Context, req BenchmarkRequest, samplesPerGroup []int) ([]*metrics.Report, error) {
	if len(samplesPerGroup) == 0 {
		return nil, errors.ConfigInvalid("sweep needs at least one sample size")
	}
	reports := make([]*metrics.Report, 0, len(samplesPerGroup))
	for _, n := range samplesPerGroup {
		if n < 1 {
			return nil, errors.ConfigInvalid(fmt.Sprintf("samples per group must be positive, got %d", n))
		}
		step := req
		step.NSamples = 2 * n
		step.Groups = nil
		report, err := s.Run(ctx, step)
		if err != nil {
			return nil, errors.Wrapf(err, "sweep at %d samples per group", n)
		}
		s.logger.Info("sweep step finished", "samples_per_group", n, "run_id", report.RunID.String())
		reports = append(reports, report)
	}
	return reports, nil
}

// EstimateAndRun seeds a null scenario with Beta hyperparameters fitted to an
// observed matrix. Rows the estimator cannot fit take their values from fallback.
func (s *BenchmarkService) EstimateAndRun(ctx context.Context, observed *composition.CountMatrix, fallback composition.BetaParams, req BenchmarkRequest) (*metrics.Report, estimation.BetaEstimate, error) {
	if observed == nil {
		return nil, estimation.BetaEstimate{}, errors.ConfigInvalid("observed count matrix is required")
	}
	est := estimation.EstimateBetaParams(observed)
	params, replaced, err := est.Params(fallback)
	if err != nil {
		return nil, est, errors.Wrap(err, "beta estimation failed")
	}
	for _, row := range replaced {
		s.logger.Warn("degenerate beta estimate replaced by fallback",
			"cell_type", observed.Labels[row],
			"error", est.Rows[row].Err,
			"alpha", params.Alpha[row],
			"beta", params.Beta[row])
	}

	name := "estimated"
	if req.Scenario != nil && req.Scenario.Name != "" {
		name = req.Scenario.Name
	}
	scenario, err := simulation.ScenarioFromParams(name, params)
	if err != nil {
		return nil, est, errors.Wrap(err, "estimated parameters are unusable")
	}
	req.Scenario = scenario
	if req.NSamples == 0 {
		req.NSamples = observed.Samples()
	}

	report, err := s.Run(ctx, req)
	return report, est, err
}

// RunFromSource seeds a null scenario from a ProportionSource. With an observed
// matrix the hyperparameters are estimated, falling back to concentration a for
// degenerate rows; otherwise the source's proportions are used with concentration a.
func (s *BenchmarkService) RunFromSource(ctx context.Context, src ports.ProportionSource, a float64, req BenchmarkRequest) (*metrics.Report, error) {
	props, err := src.Proportions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read baseline proportions")
	}
	observed, err := src.Observed(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read observed counts")
	}

	if observed != nil {
		fallback, err := composition.BetaFromProportions([]float64{a}, props)
		if err != nil {
			return nil, errors.Wrap(err, "invalid fallback concentration")
		}
		report, _, err := s.EstimateAndRun(ctx, observed, fallback, req)
		return report, err
	}

	scenario, err := simulation.NullScenario("seeded", props, []float64{a})
	if err != nil {
		return nil, errors.Wrap(err, "invalid seeded scenario")
	}
	req.Scenario = scenario
	return s.Run(ctx, req)
}
