package main

import (
	"context"
	"fmt"

	"compbench/adapters/stats/difftests"
	"compbench/app"
	"compbench/domain/composition"
	"compbench/internal"
	"compbench/internal/config"
	"compbench/internal/container"
	"compbench/internal/errors"
	"compbench/internal/metrics"
	"compbench/internal/simulation"

	"github.com/spf13/cobra"
)

// runOptions are the flags shared by every benchmark command. Simulation and
// run flags write straight into the loaded Config.
type runOptions struct {
	cfg   *config.Config
	props []float64
	tests []string
}

func newRunOptions(cfg *config.Config) *runOptions {
	return &runOptions{cfg: cfg}
}

func (o *runOptions) bindPersistent(cmd *cobra.Command) {
	cfg := o.cfg
	f := cmd.PersistentFlags()
	f.Float64SliceVar(&o.props, "props", []float64{0.2, 0.8}, "Baseline cell-type proportions (must sum to 1)")
	f.StringSliceVar(&o.tests, "tests", nil, "Subset of tests to run (default: all)")
	f.IntVar(&cfg.Simulation.SamplesPerGroup, "samples", cfg.Simulation.SamplesPerGroup, "Samples per group")
	f.IntVar(&cfg.Simulation.NSim, "nsim", cfg.Simulation.NSim, "Number of simulated trials")
	f.Float64Var(&cfg.Simulation.Concentration, "concentration", cfg.Simulation.Concentration, "Beta concentration a for every cell type")
	f.Float64Var(&cfg.Simulation.Depth, "depth", cfg.Simulation.Depth, "Mean sequencing depth per sample")
	f.Float64Var(&cfg.Simulation.Dispersion, "dispersion", cfg.Simulation.Dispersion, "Negative-binomial size of the depth draw")
	f.Float64Var(&cfg.Metrics.AlphaCut, "alpha", cfg.Metrics.AlphaCut, "Significance threshold")
	f.Uint64Var(&cfg.Run.Seed, "seed", cfg.Run.Seed, "Base random seed")
	f.IntVar(&cfg.Run.Workers, "workers", cfg.Run.Workers, "Trials executed in parallel")
	f.DurationVar(&cfg.Run.Timeout, "timeout", cfg.Run.Timeout, "Abort the run after this long (0 disables)")
}

func (o *runOptions) container() (*container.Container, error) {
	return container.New(o.cfg, container.WithTests(o.tests...))
}

func (o *runOptions) request(scenario *simulation.Scenario) app.BenchmarkRequest {
	return app.BenchmarkRequest{
		Scenario: scenario,
		NSamples: 2 * o.cfg.Simulation.SamplesPerGroup,
		NSim:     o.cfg.Simulation.NSim,
		Seed:     o.cfg.Run.Seed,
		AlphaCut: o.cfg.Metrics.AlphaCut,
	}
}

func (o *runOptions) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.Run.Timeout > 0 {
		return context.WithTimeout(ctx, o.cfg.Run.Timeout)
	}
	return context.WithCancel(ctx)
}

// print writes each report table to stdout; logs go to stderr
func (o *runOptions) print(cmd *cobra.Command, logger *internal.Logger, reports ...*metrics.Report) error {
	out := cmd.OutOrStdout()
	for _, report := range reports {
		logger.Info("report ready",
			"run_id", report.RunID.String(),
			"scenario", report.Scenario,
			"samples", report.NSamples,
			"trials", report.NSim)
		fmt.Fprintf(out, "\n%s  (%d samples, %d trials, alpha %.3g)\n", report.Scenario, report.NSamples, report.NSim, report.AlphaCut)
		fmt.Fprint(out, report.Table())
	}
	return nil
}

func newNullCmd(o *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "null",
		Short: "Benchmark under no true difference (type-I error)",
		Long: `Simulate both groups from one shared composition and report per-cell-type
rejection rates.

Example: ccbench null --props 0.2,0.8 --concentration 10 --samples 5 --nsim 1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := simulation.NullScenario("null", composition.Proportions(o.props), []float64{o.cfg.Simulation.Concentration})
			if err != nil {
				return err
			}
			return o.runOne(cmd, scenario)
		},
	}
}

func newDiffCmd(o *runOptions) *cobra.Command {
	var foldChanges []float64

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Benchmark with a true difference between groups",
		Long: `Multiply the baseline by per-cell-type fold changes for group 2 and
renormalise. Cell types with a fold change other than 1 are truly different.

Example: ccbench diff --props 0.1,0.3,0.6 --fold-changes 3,1,1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := simulation.FoldChangeScenario("diff", composition.Proportions(o.props), foldChanges, []float64{o.cfg.Simulation.Concentration})
			if err != nil {
				return err
			}
			return o.runOne(cmd, scenario)
		},
	}
	cmd.Flags().Float64SliceVar(&foldChanges, "fold-changes", nil, "Group-2 fold change per cell type")
	_ = cmd.MarkFlagRequired("fold-changes")
	return cmd
}

func newSweepCmd(o *runOptions) *cobra.Command {
	var sizes []int
	var foldChanges []float64

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Repeat a scenario across samples-per-group values",
		Long: `Run one scenario at several sample sizes with the same seed. Without
--fold-changes the scenario is null.

Example: ccbench sweep --sizes 3,5,10,20 --fold-changes 3,1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var scenario *simulation.Scenario
			var err error
			if len(foldChanges) > 0 {
				scenario, err = simulation.FoldChangeScenario("sweep", composition.Proportions(o.props), foldChanges, []float64{o.cfg.Simulation.Concentration})
			} else {
				scenario, err = simulation.NullScenario("sweep", composition.Proportions(o.props), []float64{o.cfg.Simulation.Concentration})
			}
			if err != nil {
				return err
			}

			c, err := o.container()
			if err != nil {
				return err
			}
			ctx, cancel := o.withTimeout(cmd.Context())
			defer cancel()

			reports, err := c.Service.SweepSampleSizes(ctx, o.request(scenario), sizes)
			if err != nil {
				return err
			}
			return o.print(cmd, c.Logger, reports...)
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{3, 5, 10, 20}, "Samples per group to sweep")
	cmd.Flags().Float64SliceVar(&foldChanges, "fold-changes", nil, "Group-2 fold change per cell type")
	return cmd
}

func newEstimateCmd(o *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Seed a null benchmark from an observed count table",
		Long: `Read an .xlsx or .csv count table (header row of sample names, one row per
cell type), fit Beta hyperparameters by moments and benchmark under the null.
Cell types whose fit is degenerate fall back to --concentration.

Example: ccbench estimate --counts counts.csv --nsim 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.container()
			if err != nil {
				return err
			}
			ctx, cancel := o.withTimeout(cmd.Context())
			defer cancel()

			req := o.request(nil)
			if !cmd.Flags().Changed("samples") {
				req.NSamples = 0
			}
			src := c.ProportionSource()
			if src == nil {
				return errors.ConfigInvalid("--counts or BENCH_COUNTS_FILE is required")
			}
			report, err := c.Service.RunFromSource(ctx, src, o.cfg.Simulation.Concentration, req)
			if err != nil {
				return err
			}
			return o.print(cmd, c.Logger, report)
		},
	}
	cmd.Flags().StringVar(&o.cfg.Data.CountsFile, "counts", o.cfg.Data.CountsFile, "Observed count table (.xlsx or .csv)")
	cmd.Flags().StringVar(&o.cfg.Data.Sheet, "sheet", o.cfg.Data.Sheet, "Worksheet to read from .xlsx files")
	return cmd
}

func newTestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tests",
		Short: "List the registered differential tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			type described interface{ Description() string }
			out := cmd.OutOrStdout()
			for _, a := range difftests.NewDefaultRegistry().Adapters() {
				desc := ""
				if d, ok := a.(described); ok {
					desc = d.Description()
				}
				fmt.Fprintf(out, "%-18s %s\n", a.Name(), desc)
			}
			return nil
		},
	}
}

func (o *runOptions) runOne(cmd *cobra.Command, scenario *simulation.Scenario) error {
	c, err := o.container()
	if err != nil {
		return err
	}
	ctx, cancel := o.withTimeout(cmd.Context())
	defer cancel()

	report, err := c.Service.Run(ctx, o.request(scenario))
	if err != nil {
		return err
	}
	return o.print(cmd, c.Logger, report)
}
