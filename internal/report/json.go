package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmingolla/cognit-optimizer/internal/model"
)

// JSONReporter outputs assignment plans as JSON.
type JSONReporter struct {
	w io.Writer
}

type jsonOutput struct {
	Meta  ReportMeta          `json:"meta"`
	Plans []*model.Assignment `json:"plans"`
}

func (r *JSONReporter) Report(ctx context.Context, plans []*model.Assignment, meta ReportMeta) error {
	output := jsonOutput{
		Meta:  meta,
		Plans: plans,
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
