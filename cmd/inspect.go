package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmingolla/cognit-optimizer/internal/carbon"
	"github.com/dmingolla/cognit-optimizer/internal/infra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Display the cluster pool derived from a snapshot",
	Long: `Loads an infrastructure snapshot and displays the derived cluster pool:
capacities, carbon intensities, and energy consumption curves. Useful for
verifying snapshot contents and curve aggregation before optimizing.`,
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.String("output", "", "output format: table, json")
	f.String("output-file", "", "write output to file")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if v, _ := cmd.Flags().GetString("output"); cmd.Flags().Changed("output") {
		cfg.Output.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Snapshot.Path == "" {
		return fmt.Errorf("no snapshot path configured (use --snapshot)")
	}

	source := infra.NewStaticSource(cfg.Snapshot.Path)
	snap, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching snapshot: %w", err)
	}

	clusters, err := infra.BuildClusterPool(snap)
	if err != nil {
		return fmt.Errorf("building cluster pool: %w", err)
	}

	provider, err := resolveCarbonProvider()
	if err != nil {
		return err
	}
	clusters = carbon.Apply(ctx, provider, clusters)

	w, closeFn, err := resolveOutput(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if cfg.Output.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(clusters)
	}

	// Table output
	fmt.Fprintf(w, "Snapshot:  %s\n", cfg.Snapshot.Path)
	fmt.Fprintf(w, "Collected: %s\n", snap.CollectedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Clusters:  %d\n\n", len(clusters))

	fmt.Fprintf(w, "%-8s %10s %10s %12s %s\n",
		"ID", "VMs", "MaxVMs", "gCO2/kWh", "Energy curve (load, W)")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 90))

	for _, c := range clusters {
		points := make([]string, 0, len(c.Energy))
		for _, bp := range c.SortedEnergy() {
			points = append(points, fmt.Sprintf("(%.1f, %.1f)", bp.LoadX, bp.EnergyY))
		}
		fmt.Fprintf(w, "%-8d %10.0f %10.0f %12.1f %s\n",
			c.ID, c.Capacity, c.MaxCapacity, c.CarbonIntensity, strings.Join(points, " "))
	}

	return nil
}
