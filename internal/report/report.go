// Package report defines the plain record types produced by the analysis
// pipeline. Records carry computed values only; rendering (tables, JSON,
// markdown) is left to the caller.
package report

import (
	"time"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/selector"
)

// RankRow is one instrument's line in a cross-sectional ranking snapshot.
type RankRow struct {
	Symbol     string             `json:"symbol"`
	RawScore   float64            `json:"raw_score"`
	Adjusted   float64            `json:"adjusted_score"`
	Stability  float64            `json:"stability"`
	Rank       int                `json:"rank"`
	Percentile float64            `json:"percentile"`
	Components map[string]float64 `json:"components,omitempty"`
	Held       bool               `json:"held"`
	Selected   bool               `json:"selected"`
}

// RegimeSnapshot captures the classifier state at the report date.
type RegimeSnapshot struct {
	State      regime.State    `json:"state"`
	Profile    regime.Profile  `json:"profile"`
	LastChange *regime.Change  `json:"last_change,omitempty"`
	History    []regime.Change `json:"history,omitempty"`
}

// AnalysisReport is the full output of one analysis run over a universe.
type AnalysisReport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	AsOf        time.Time            `json:"as_of"`
	Benchmark   string               `json:"benchmark"`
	Universe    []string             `json:"universe"`
	Dropped     []string             `json:"dropped,omitempty"`
	Rows        []RankRow            `json:"rows"`
	Regime      RegimeSnapshot       `json:"regime"`
	Selection   selector.Diagnostics `json:"selection"`
	Targets     map[string]float64   `json:"targets,omitempty"`
}

// SelectedSymbols returns the symbols flagged as selected, in row order.
func (r *AnalysisReport) SelectedSymbols() []string {
	var out []string
	for _, row := range r.Rows {
		if row.Selected {
			out = append(out, row.Symbol)
		}
	}
	return out
}
