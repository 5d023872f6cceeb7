package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"compbench/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// a missing .env is fine; the environment still applies
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := newRunOptions(cfg)

	rootCmd := &cobra.Command{
		Use:   "ccbench",
		Short: "Monte-Carlo benchmark for cell-type composition tests",
		Long: `Simulate overdispersed cell-type count matrices, run every registered
differential composition test on each one and report type-I error, recall,
precision, F1, AUC and ROC curves.`,
		SilenceUsage: true,
	}
	opts.bindPersistent(rootCmd)

	rootCmd.AddCommand(
		newNullCmd(opts),
		newDiffCmd(opts),
		newSweepCmd(opts),
		newEstimateCmd(opts),
		newTestsCmd(),
	)
	return rootCmd
}
