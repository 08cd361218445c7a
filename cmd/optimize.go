package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmingolla/cognit-optimizer/internal/carbon"
	"github.com/dmingolla/cognit-optimizer/internal/infra"
	"github.com/dmingolla/cognit-optimizer/internal/model"
	"github.com/dmingolla/cognit-optimizer/internal/optimizer"
	"github.com/dmingolla/cognit-optimizer/internal/report"
	"github.com/dmingolla/cognit-optimizer/internal/solver"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compute a carbon-minimal device to cluster assignment",
	Long: `Loads an infrastructure snapshot and a set of device records, derives
per-cluster energy curves, and solves the assignment model.

The solve is two-phase: a strict attempt keeps every cluster out of its
contention region; if that is infeasible, a second attempt allows
contention with a penalized energy slope.`,
	RunE: runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.Float64("min-capacity", 0, "lower bound on total assigned VMs")
	f.Float64("max-capacity", 0, "upper bound on total assigned VMs (0 = pool capacity)")
	f.Float64("contention-corr", 0, "contention penalty for the fallback retry")
	f.String("output", "", "output format: table, json")
	f.String("output-file", "", "write output to file")

	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Apply flag overrides
	if v, _ := cmd.Flags().GetFloat64("min-capacity"); cmd.Flags().Changed("min-capacity") {
		cfg.Optimizer.MinCapacity = v
	}
	if v, _ := cmd.Flags().GetFloat64("max-capacity"); cmd.Flags().Changed("max-capacity") {
		cfg.Optimizer.MaxCapacity = v
	}
	if v, _ := cmd.Flags().GetFloat64("contention-corr"); cmd.Flags().Changed("contention-corr") {
		cfg.Optimizer.ContentionCorr = v
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
	if verbose {
		opt.Writer = os.Stderr
		fmt.Fprintf(os.Stderr, "Solving assignment for %d devices over %d clusters\n",
			len(devices), len(clusters))
	}
	corr := optimizer.Corr(cfg.Optimizer.ContentionCorr)
	plan, err := opt.SolveWithContentionFallback(ctx, optimizer.Params{
		MinCapacity:    cfg.Optimizer.MinCapacity,
		MaxCapacity:    cfg.Optimizer.MaxCapacity,
		ContentionCorr: corr,
	})
	if err != nil {
		return err
	}

	w, closeFn, err := resolveOutput(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	meta := report.ReportMeta{
		CollectedAt:    snap.CollectedAt,
		TotalDevices:   len(devices),
		TotalClusters:  len(clusters),
		SolverBackend:  s.BackendType(),
		ContentionCorr: corr,
	}
	return report.NewReporter(cfg.Output.Format, w).Report(ctx, []*model.Assignment{plan}, meta)
}

// loadPools fetches the snapshot, derives the cluster pool, applies the
// configured carbon intensity source, and loads the device records.
func loadPools(ctx context.Context) (*infra.Snapshot, []model.Cluster, []model.Device, error) {
	if cfg.Snapshot.Path == "" {
		return nil, nil, nil, fmt.Errorf("no snapshot path configured (use --snapshot)")
	}
	if cfg.Devices.Path == "" {
		return nil, nil, nil, fmt.Errorf("no devices path configured (use --devices)")
	}

	source := infra.NewStaticSource(cfg.Snapshot.Path)
	if err := source.Ping(ctx); err != nil {
		return nil, nil, nil, err
	}

	snap, err := source.Fetch(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetching snapshot: %w", err)
	}

	clusters, err := infra.BuildClusterPool(snap)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building cluster pool: %w", err)
	}

	provider, err := resolveCarbonProvider()
	if err != nil {
		return nil, nil, nil, err
	}
	clusters = carbon.Apply(ctx, provider, clusters)

	devices, err := infra.LoadDevices(cfg.Devices.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	return snap, clusters, devices, nil
}

// resolveCarbonProvider maps the carbon config section to a provider.
// The "attribute" source returns nil: snapshot attribute values stand.
func resolveCarbonProvider() (carbon.Provider, error) {
	switch cfg.Carbon.Source {
	case "attribute", "":
		return nil, nil
	case "static":
		values := make(map[int]float64, len(cfg.Carbon.Values))
		for k, v := range cfg.Carbon.Values {
			id, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("carbon values: cluster id %q is not an integer", k)
			}
			values[id] = v
		}
		return carbon.NewStaticProvider(values, cfg.Carbon.Default), nil
	case "prometheus":
		timeout := cfg.Carbon.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return carbon.NewPrometheusProvider(cfg.Carbon.URL, cfg.Carbon.Query,
			carbon.WithTimeout(timeout))
	default:
		return nil, fmt.Errorf("unknown carbon source %q", cfg.Carbon.Source)
	}
}

func resolveOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	outFile, _ := cmd.Flags().GetString("output-file")
	if outFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
