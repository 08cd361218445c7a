package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmingolla/cognit-optimizer/internal/optimizer"
	"github.com/dmingolla/cognit-optimizer/internal/report"
	"github.com/dmingolla/cognit-optimizer/internal/solver"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Solve the assignment across a range of load scenarios",
	Long: `Generates interpolated load scenarios by ramping every device's capacity
load from its current value toward full reservation, then solves the
assignment model for each scenario. Infeasible scenarios are skipped.

The result shows how the carbon-minimal placement shifts as the fleet's
load grows.`,
	RunE: runSweep,
}

func init() {
	f := sweepCmd.Flags()
	f.Int("iterations", 0, "number of load scenarios")
	f.Int("parallelism", 0, "concurrent scenario solves (0 = number of CPUs)")
	f.String("output", "", "output format: table, json")
	f.String("output-file", "", "write output to file")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if n, _ := cmd.Flags().GetInt("iterations"); cmd.Flags().Changed("iterations") {
		cfg.Optimizer.SweepIterations = n
	}
	if p, _ := cmd.Flags().GetInt("parallelism"); cmd.Flags().Changed("parallelism") {
		cfg.Optimizer.Parallelism = p
	}
	if v, _ := cmd.Flags().GetString("output"); cmd.Flags().Changed("output") {
		cfg.Output.Format = v
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	snap, clusters, devices, err := loadPools(ctx)
	if err != nil {
		return err
	}

	s, err := solver.New(cfg.Solver.Backend, cfg.Solver.Options)
	if err != nil {
		return fmt.Errorf("creating solver: %w", err)
	}

	opt := optimizer.New(devices, clusters, s)
	if cfg.Optimizer.Parallelism > 0 {
		opt.Parallelism = cfg.Optimizer.Parallelism
	}

	if verbose {
		opt.Writer = os.Stderr
		fmt.Fprintf(os.Stderr, "Sweeping %d scenarios for %d devices over %d clusters\n",
			cfg.Optimizer.SweepIterations, len(devices), len(clusters))
	}

	plans, err := opt.Sweep(ctx, cfg.Optimizer.SweepIterations)
	if err != nil {
		return err
	}

	w, closeFn, err := resolveOutput(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	meta := report.ReportMeta{
		CollectedAt:     snap.CollectedAt,
		TotalDevices:    len(devices),
		TotalClusters:   len(clusters),
		SolverBackend:   s.BackendType(),
		SweepIterations: cfg.Optimizer.SweepIterations,
		SolvedScenarios: len(plans),
	}
	return report.NewReporter(cfg.Output.Format, w).Report(ctx, plans, meta)
}
