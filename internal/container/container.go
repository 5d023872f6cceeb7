package container

import (
	"os"

	"compbench/adapters/rng"
	"compbench/adapters/seed"
	"compbench/adapters/stats/difftests"
	"compbench/app"
	"compbench/internal"
	"compbench/internal/config"
	"compbench/internal/errors"
	"compbench/internal/metrics"
	"compbench/internal/simulation"
	"compbench/ports"
)

// Container holds the benchmark's dependencies built from one Config
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Simulation
	RNG       *rng.PCGAdapter
	Simulator *simulation.Simulator

	// Tests and aggregation
	Registry   *difftests.Registry
	Runner     *app.TrialRunner
	Aggregator *metrics.Aggregator
	Service    *app.BenchmarkService
}

// Option adjusts the container before its components are built
type Option func(*Container) error

// WithLogger replaces the logger derived from Config.Log
func WithLogger(logger *internal.Logger) Option {
	return func(c *Container) error {
		c.Logger = logger
		return nil
	}
}

// WithTests restricts the registry to the named tests, in the given order
func WithTests(names ...string) Option {
	return func(c *Container) error {
		if len(names) == 0 {
			return nil
		}
		sub, err := c.Registry.Subset(names...)
		if err != nil {
			return err
		}
		c.Registry = sub
		return nil
	}
}

// New validates cfg and wires the simulator, registry, runner and service
func New(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	c := &Container{
		Config:     cfg,
		Logger:     internal.NewLoggerWithWriter(os.Stderr, internal.ParseLogLevel(cfg.Log.Level), cfg.Log.Color),
		RNG:        rng.NewPCGAdapter(),
		Registry:   difftests.NewDefaultRegistry(),
		Aggregator: metrics.NewAggregator(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.initSimulation(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize simulator")
	}
	c.initRunner()

	c.Logger.Debug("container initialized",
		"tests", c.Registry.Names(),
		"workers", cfg.Run.Workers,
		"depth", cfg.Simulation.Depth)
	return c, nil
}

func (c *Container) initSimulation() error {
	sim, err := simulation.NewSimulator(c.Config.Simulation.Depth, c.Config.Simulation.Dispersion)
	if err != nil {
		return err
	}
	c.Simulator = sim
	return nil
}

func (c *Container) initRunner() {
	c.Runner = app.NewTrialRunner(c.Registry, c.RNG, c.Simulator,
		app.WithWorkers(c.Config.Run.Workers),
		app.WithLogger(c.Logger))
	c.Service = app.NewBenchmarkService(c.Runner, c.Aggregator, c.Logger)
}

// ProportionSource returns the table source named by Config.Data, or nil when
// no counts file is configured.
func (c *Container) ProportionSource() ports.ProportionSource {
	if c.Config.Data.CountsFile == "" {
		return nil
	}
	return seed.NewTableSource(c.Config.Data.CountsFile, c.Config.Data.Sheet, c.Logger)
}
