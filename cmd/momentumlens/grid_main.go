package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MKY508/momentum-lens-sub000/internal/application"
)

func runGrid(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runnerCfg, err := cfg.RunnerConfig()
	if err != nil {
		return err
	}
	workers, _ := cmd.Flags().GetInt("workers")
	weightStrs, _ := cmd.Flags().GetStringSlice("stability-weights")
	topNStrs, _ := cmd.Flags().GetStringSlice("top-n")

	var points []application.GridPoint
	for _, ws := range weightStrs {
		weight, err := strconv.ParseFloat(ws, 64)
		if err != nil {
			return fmt.Errorf("invalid stability weight %q: %w", ws, err)
		}
		for _, ns := range topNStrs {
			topN, err := strconv.Atoi(ns)
			if err != nil {
				return fmt.Errorf("invalid top-n %q: %w", ns, err)
			}
			strategy := runnerCfg.Strategy
			strategy.StabilityWeight = weight
			strategy.Selector.TopN = topN
			points = append(points, application.GridPoint{
				Name:     fmt.Sprintf("sw%s_top%d", ws, topN),
				Strategy: strategy,
			})
		}
	}

	source, closer, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	results, err := application.NewGridSearch(runnerCfg, source, workers).Run(cmd.Context(), points)
	if err != nil && len(results) == 0 {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMBINATION\tRETURN\tANNUALIZED\tSHARPE\tMAX DD\tTRADES")
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(w, "%s\terror: %v\t\t\t\t\n", res.Name, res.Err)
			continue
		}
		m := res.Results.Metrics
		annualized, sharpe := "n/a", "n/a"
		if !m.InsufficientSample {
			annualized = fmt.Sprintf("%+.2f%%", *m.AnnualizedReturn*100)
			sharpe = fmt.Sprintf("%.2f", *m.Sharpe)
		}
		fmt.Fprintf(w, "%s\t%+.2f%%\t%s\t%s\t%.2f%%\t%d\n",
			res.Name, m.TotalReturn*100, annualized, sharpe, m.MaxDrawdown*100, m.TradeCount)
	}
	return w.Flush()
}
