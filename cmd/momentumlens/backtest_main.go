package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKY508/momentum-lens-sub000/internal/backtest"
)

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runnerCfg, err := cfg.RunnerConfig()
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		runnerCfg.OutputDir = out
	}

	source, closer, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	results, err := backtest.NewRunner(runnerCfg, source).Run(cmd.Context())
	if err != nil {
		return err
	}
	printMetrics(results)
	return nil
}

func printMetrics(results *backtest.Results) {
	m := results.Metrics
	fmt.Printf("Run %s  %s to %s  (%d trading days, %d trades)\n",
		results.RunID,
		results.Start.Format("2006-01-02"),
		results.End.Format("2006-01-02"),
		m.TradingDays, m.TradeCount)
	fmt.Printf("  Total return:      %+.2f%%\n", m.TotalReturn*100)
	if m.InsufficientSample {
		fmt.Println("  Annualized return: n/a (insufficient sample)")
		fmt.Println("  Sharpe ratio:      n/a (insufficient sample)")
	} else {
		fmt.Printf("  Annualized return: %+.2f%%\n", *m.AnnualizedReturn*100)
		fmt.Printf("  Sharpe ratio:      %.2f\n", *m.Sharpe)
	}
	fmt.Printf("  Max drawdown:      %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("  Final regime:      %s (%d switches)\n", results.FinalState, len(results.RegimeHistory))
}
