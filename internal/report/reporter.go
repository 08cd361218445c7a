package report

import (
	"context"
	"io"
	"time"

	"github.com/dmingolla/cognit-optimizer/internal/model"
)

// Reporter formats and writes assignment plans to an output destination.
type Reporter interface {
	Report(ctx context.Context, plans []*model.Assignment, meta ReportMeta) error
}

// ReportMeta contains contextual metadata for the report.
type ReportMeta struct {
	CollectedAt   time.Time `json:"collected_at"`
	TotalDevices  int       `json:"total_devices"`
	TotalClusters int       `json:"total_clusters"`
	SolverBackend string    `json:"solver_backend"`

	// Contention penalty applied by the fallback retry, if any.
	ContentionCorr *float64 `json:"contention_corr,omitempty"`

	// Number of sweep scenarios requested and solved (sweep only).
	SweepIterations int `json:"sweep_iterations,omitempty"`
	SolvedScenarios int `json:"solved_scenarios,omitempty"`
}

// NewReporter creates a reporter for the given format writing to w.
func NewReporter(format string, w io.Writer) Reporter {
	switch format {
	case "json":
		return &JSONReporter{w: w}
	default:
		return &TableReporter{w: w}
	}
}
