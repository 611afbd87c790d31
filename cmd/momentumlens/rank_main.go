package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MKY508/momentum-lens-sub000/internal/application"
	"github.com/MKY508/momentum-lens-sub000/internal/report"
)

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	holdings, _ := cmd.Flags().GetStringSlice("holdings")
	asJSON, _ := cmd.Flags().GetBool("json")

	analysisCfg, err := cfg.AnalysisConfig(holdings)
	if err != nil {
		return err
	}
	source, closer, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	rep, err := application.NewAnalyzer(analysisCfg, source).Run(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printRankTable(rep)
	return nil
}

func printRankTable(rep *report.AnalysisReport) {
	fmt.Printf("As of %s, regime %s (core %.0f%% / satellite %.0f%%)\n\n",
		rep.AsOf.Format("2006-01-02"),
		rep.Regime.State,
		rep.Regime.Profile.CoreRatio*100,
		rep.Regime.Profile.SatelliteRatio*100)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSYMBOL\tSCORE\tADJUSTED\tSTABILITY\tPCTL\tFLAGS")
	for _, row := range rep.Rows {
		flags := ""
		if row.Selected {
			flags += "selected "
		}
		if row.Held {
			flags += "held"
		}
		fmt.Fprintf(w, "%d\t%s\t%+.4f\t%+.4f\t%.2f\t%.2f\t%s\n",
			row.Rank, row.Symbol, row.RawScore, row.Adjusted, row.Stability, row.Percentile, flags)
	}
	w.Flush()

	if len(rep.Targets) > 0 {
		symbols := make([]string, 0, len(rep.Targets))
		for symbol := range rep.Targets {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		fmt.Println("\nTargets:")
		for _, symbol := range symbols {
			fmt.Printf("  %-10s %.1f%%\n", symbol, rep.Targets[symbol]*100)
		}
	} else if rep.Selection.Reason != "" {
		fmt.Printf("\nNo rotation targets: %s\n", rep.Selection.Reason)
	}
	if len(rep.Dropped) > 0 {
		fmt.Printf("\nDropped instruments: %v\n", rep.Dropped)
	}
}
