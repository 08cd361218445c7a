package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dmingolla/cognit-optimizer/internal/model"
)

// TableReporter outputs assignment plans as a formatted terminal table.
type TableReporter struct {
	w io.Writer
}

func (r *TableReporter) Report(ctx context.Context, plans []*model.Assignment, meta ReportMeta) error {
	// Header
	fmt.Fprintf(r.w, "\n")
	fmt.Fprintf(r.w, "Carbon-Aware Assignment Plan\n")
	fmt.Fprintf(r.w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(r.w, "Collected:   %s\n", meta.CollectedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(r.w, "Devices:     %d\n", meta.TotalDevices)
	fmt.Fprintf(r.w, "Clusters:    %d\n", meta.TotalClusters)
	fmt.Fprintf(r.w, "Solver:      %s\n", meta.SolverBackend)
	if meta.ContentionCorr != nil {
		fmt.Fprintf(r.w, "Contention:  penalized (corr %.2f)\n", *meta.ContentionCorr)
	}
	if meta.SweepIterations > 0 {
		fmt.Fprintf(r.w, "Scenarios:   %d solved of %d requested\n",
			meta.SolvedScenarios, meta.SweepIterations)
	}
	fmt.Fprintf(r.w, "%s\n\n", strings.Repeat("=", 60))

	if len(plans) == 0 {
		fmt.Fprintf(r.w, "No feasible assignment plans.\n")
		return nil
	}

	for i, plan := range plans {
		if len(plans) > 1 {
			fmt.Fprintf(r.w, "Scenario #%d\n", i+1)
		}
		fmt.Fprintf(r.w, "Objective (gCO2eq): %.2f\n\n", plan.Objective)

		fmt.Fprintf(r.w, "%-32s %8s\n", "Device", "Cluster")
		fmt.Fprintf(r.w, "%s\n", strings.Repeat("-", 42))
		for _, id := range sortedDeviceIDs(plan) {
			fmt.Fprintf(r.w, "%-32s %8d\n", truncate(id, 32), plan.Allocations[id])
		}

		fmt.Fprintf(r.w, "\n%-10s %8s\n", "Cluster", "VMs")
		fmt.Fprintf(r.w, "%s\n", strings.Repeat("-", 20))
		for _, cid := range sortedClusterIDs(plan) {
			fmt.Fprintf(r.w, "%-10d %8d\n", cid, plan.VMCounts[cid])
		}
		fmt.Fprintf(r.w, "\n")
	}

	return nil
}

func sortedDeviceIDs(plan *model.Assignment) []string {
	ids := make([]string, 0, len(plan.Allocations))
	for id := range plan.Allocations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedClusterIDs(plan *model.Assignment) []int {
	ids := make([]int, 0, len(plan.VMCounts))
	for id := range plan.VMCounts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
