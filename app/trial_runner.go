package app

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"compbench/domain/benchmark"
	"compbench/domain/composition"
	"compbench/domain/core"
	"compbench/internal"
	"compbench/internal/simulation"
	"compbench/ports"

	"golang.org/x/sync/errgroup"
)

// TrialRunner simulates nsim datasets for a scenario and feeds each one to every
// registered test adapter, collecting p-values into a preallocated tensor.
type TrialRunner struct {
	registry ports.AdapterRegistry
	rng      ports.RNGPort
	sim      *simulation.Simulator
	workers  int
	logger   *internal.Logger
}

// RunnerOption configures a TrialRunner
type RunnerOption func(*TrialRunner)

// WithWorkers bounds the number of trials executed at once; values below 1 mean 1
func WithWorkers(n int) RunnerOption {
	return func(r *TrialRunner) {
		if n < 1 {
			n = 1
		}
		r.workers = n
	}
}

// WithLogger sets the runner's logger
func WithLogger(logger *internal.Logger) RunnerOption {
	return func(r *TrialRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewTrialRunner creates a runner. Defaults: one worker per CPU, no logging.
func NewTrialRunner(registry ports.AdapterRegistry, rng ports.RNGPort, sim *simulation.Simulator, opts ...RunnerOption) *TrialRunner {
	r := &TrialRunner{
		registry: registry,
		rng:      rng,
		sim:      sim,
		workers:  runtime.NumCPU(),
		logger:   internal.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunRequest describes one benchmark run
type RunRequest struct {
	Scenario *simulation.Scenario
	NSamples int
	NSim     int
	Seed     uint64
	// Groups is optional; the default puts the first half of the samples in group 0
	Groups composition.Groups
}

// Run validates the request, then executes every trial. Configuration errors are
// returned before any randomness is consumed. Adapter failures never abort the run;
// they are recorded in the tensor.
func (r *TrialRunner) Run(ctx context.Context, req RunRequest) (*benchmark.RunResult, error) {
	groups, err := r.validate(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	adapters := r.registry.Adapters()
	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	k := req.Scenario.CellTypes()
	tensor := benchmark.NewPValueTensor(names, req.NSim, k)

	runID := core.NewRunID()
	started := core.Now()
	logger := r.logger.With("run_id", runID.String())
	logger.Info("benchmark run started",
		"scenario", req.Scenario.Name,
		"samples", req.NSamples,
		"trials", req.NSim,
		"tests", len(adapters),
		"workers", r.workers,
		"seed", req.Seed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := 0; i < req.NSim; i++ {
		if gctx.Err() != nil {
			break
		}
		trial := i
		g.Go(func() error {
			return r.runTrial(gctx, logger, req, groups, trial, adapters, tensor)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("benchmark run aborted", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &benchmark.RunResult{
		RunID:      runID,
		Scenario:   req.Scenario.Name,
		NSamples:   req.NSamples,
		NSim:       req.NSim,
		Seed:       req.Seed,
		Groups:     groups,
		PValues:    tensor,
		ConfigHash: r.configHash(req, groups, names),
		StartedAt:  started,
		Duration:   core.Now().Sub(started),
	}
	for t, name := range names {
		if n := tensor.Failures(t); n > 0 {
			logger.Info("adapter failures", "adapter", name, "trials", n)
		}
	}
	logger.Info("benchmark run finished", "duration", result.Duration)
	return result, nil
}

func (r *TrialRunner) validate(req RunRequest) (composition.Groups, error) {
	if req.Scenario == nil {
		return nil, core.NewConfigurationError("scenario", "missing")
	}
	if req.NSim < 1 {
		return nil, core.NewConfigurationError("nsim", fmt.Sprintf("must be positive, got %d", req.NSim))
	}
	if req.NSamples < 2 {
		return nil, core.NewConfigurationError("nSamples", fmt.Sprintf("need at least two samples, got %d", req.NSamples))
	}
	if err := req.Scenario.Validate(); err != nil {
		return nil, err
	}
	if r.registry == nil || r.registry.Len() == 0 {
		return nil, core.ErrNoAdapters
	}

	groups := req.Groups
	if groups == nil {
		var err error
		if groups, err = composition.Halves(req.NSamples, req.Scenario.TrueDiff); err != nil {
			return nil, err
		}
	}
	if err := groups.Validate(req.NSamples); err != nil {
		return nil, err
	}
	if req.Scenario.TrueDiff && groups.NumGroups() != len(req.Scenario.Params) {
		return nil, fmt.Errorf("%w: scenario defines %d groups, assignment has %d",
			core.ErrInvalidGroups, len(req.Scenario.Params), groups.NumGroups())
	}
	return groups, nil
}

func (r *TrialRunner) runTrial(ctx context.Context, logger *internal.Logger, req RunRequest, groups composition.Groups, trial int, adapters []ports.TestAdapter, tensor *benchmark.PValueTensor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rng := r.rng.TrialStream(req.Seed, trial)
	counts, err := req.Scenario.Simulate(r.sim, rng, groups)
	if err != nil {
		return fmt.Errorf("trial %d: %w", trial, err)
	}

	// zero-replaced copies are shared between adapters asking for the same pseudocount
	substituted := make(map[float64]*composition.CountMatrix)
	for t, adapter := range adapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		input := counts
		if zs, ok := adapter.(ports.ZeroSubstituting); ok {
			pc := zs.Pseudocount()
			if _, done := substituted[pc]; !done {
				substituted[pc] = counts.WithZeroReplaced(pc)
			}
			input = substituted[pc]
		}

		pvals, err := callAdapter(ctx, adapter, input, groups)
		if err == nil {
			err = checkPValues(pvals, tensor.CellTypes())
		}
		if err == nil {
			err = tensor.SetTrial(t, trial, pvals)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			tensor.MarkFailed(t, trial)
			logger.Debug("adapter failed", "error", core.NewAdapterError(adapter.Name(), trial, err))
		}
	}
	logger.Trace("trial complete", "trial", trial)
	return nil
}

// callAdapter turns a panicking adapter into an error
func callAdapter(ctx context.Context, adapter ports.TestAdapter, counts *composition.CountMatrix, groups composition.Groups) (pvals []float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pvals = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return adapter.Test(ctx, counts, groups)
}

// checkPValues rejects wrong-length results and values outside [0, 1]. NaN marks a
// single untestable cell and is allowed.
func checkPValues(pvals []float64, k int) error {
	if len(pvals) != k {
		return fmt.Errorf("returned %d p-values for %d cell types", len(pvals), k)
	}
	for i, p := range pvals {
		if math.IsNaN(p) {
			continue
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("p-value %g for cell type %d outside [0, 1]", p, i)
		}
	}
	return nil
}

func (r *TrialRunner) configHash(req RunRequest, groups composition.Groups, tests []string) core.ConfigHash {
	params := req.Scenario.Describe()
	params["n_samples"] = req.NSamples
	params["nsim"] = req.NSim
	params["seed"] = req.Seed
	params["groups"] = groups
	params["tests"] = tests
	params["depth"] = r.sim.Depth
	params["dispersion"] = r.sim.Dispersion
	return core.ComputeConfigHash(params)
}
