package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Writer persists run artifacts: a JSON results file, a JSONL trade ledger,
// and a Markdown summary, under a per-date directory.
type Writer struct {
	outputDir string
}

// NewWriter creates an artifact writer rooted at outputDir/<date>/.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: filepath.Join(outputDir, time.Now().Format("2006-01-02"))}
}

// OutputDir returns the full artifact directory path.
func (w *Writer) OutputDir() string { return w.outputDir }

// WriteResults writes results.json and trades.jsonl.
func (w *Writer) WriteResults(results *Results) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.outputDir, "results.json"), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	f, err := os.Create(filepath.Join(w.outputDir, "trades.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to create trade ledger: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, trade := range results.Trades {
		if err := enc.Encode(trade); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	return nil
}

// WriteReport writes a Markdown summary of the run.
func (w *Writer) WriteReport(results *Results) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	report := w.render(results)
	if err := os.WriteFile(filepath.Join(w.outputDir, "report.md"), []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (w *Writer) render(results *Results) string {
	var b strings.Builder
	m := results.Metrics

	fmt.Fprintf(&b, "# Backtest Report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", results.RunID)
	fmt.Fprintf(&b, "- Period: %s to %s (%d trading days)\n",
		results.Start.Format("2006-01-02"), results.End.Format("2006-01-02"), m.TradingDays)
	fmt.Fprintf(&b, "- Universe: %d instruments", len(results.Symbols))
	if len(results.Dropped) > 0 {
		fmt.Fprintf(&b, " (%d dropped: %s)", len(results.Dropped), strings.Join(results.Dropped, ", "))
	}
	b.WriteString("\n\n## Performance\n\n")

	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total return | %.2f%% |\n", m.TotalReturn*100)
	if m.InsufficientSample {
		fmt.Fprintf(&b, "| Annualized return | insufficient sample (<%d trading days) |\n", MinSampleDays)
		fmt.Fprintf(&b, "| Sharpe | insufficient sample |\n")
	} else {
		if m.AnnualizedReturn != nil {
			fmt.Fprintf(&b, "| Annualized return | %.2f%% |\n", *m.AnnualizedReturn*100)
		}
		if m.Sharpe != nil {
			fmt.Fprintf(&b, "| Sharpe | %.2f |\n", *m.Sharpe)
		}
	}
	fmt.Fprintf(&b, "| Max drawdown | %.2f%% |\n", m.MaxDrawdown*100)
	fmt.Fprintf(&b, "| Trades | %d |\n", m.TradeCount)

	b.WriteString("\n## Regime History\n\n")
	if len(results.RegimeHistory) == 0 {
		fmt.Fprintf(&b, "No transitions; final state %s.\n", results.FinalState)
	} else {
		fmt.Fprintf(&b, "| Date | Transition | Satisfied |\n|---|---|---|\n")
		for _, ch := range results.RegimeHistory {
			fmt.Fprintf(&b, "| %s | %s | %s |\n",
				ch.Timestamp.Format("2006-01-02"), ch.Rule, strings.Join(ch.Satisfied, ", "))
		}
	}

	b.WriteString("\n## Rebalances\n\n")
	fmt.Fprintf(&b, "| Date | Regime | Selected | Rejected (corr) | Rejected (pct) |\n|---|---|---|---|---|\n")
	for _, reb := range results.Rebalances {
		d := reb.Diagnostics
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			reb.Date.Format("2006-01-02"), reb.State,
			strings.Join(d.Selected, ", "),
			strings.Join(d.RejectedByCorrelation, ", "),
			strings.Join(d.RejectedByPercentile, ", "))
	}
	return b.String()
}
