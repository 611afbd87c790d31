package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MKY508/momentum-lens-sub000/internal/config"
)

const (
	appName = "momentumlens"
	version = "v1.2.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-horizon momentum ranking and rotation backtesting",
		Version: version,
		Long: appName + ` ranks an instrument universe by blended multi-horizon
momentum, classifies the market regime, applies constrained rotation
selection, and backtests the resulting core/satellite strategy.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			setupLogging(level)
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "config/momentumlens.yaml", "Path to YAML configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	rankCmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank the universe as of the latest date",
		Long:  "Loads the universe, computes stability-adjusted momentum ranks, replays the regime classifier, and prints the selection snapshot",
		RunE:  runRank,
	}
	rankCmd.Flags().StringSlice("holdings", nil, "Currently held symbols (feeds selection hysteresis)")
	rankCmd.Flags().Bool("json", false, "Emit the full report as JSON instead of a table")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the rotation backtest",
		Long:  "Simulates the core/satellite rotation strategy day by day with stop-losses and drawdown risk control",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().String("out", "", "Override the artifact output directory")

	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Run a parameter grid search",
		Long:  "Backtests every combination of the swept momentum parameters across a worker pool and prints a comparison table",
		RunE:  runGrid,
	}
	gridCmd.Flags().Int("workers", 0, "Worker count (0 = CPU count)")
	gridCmd.Flags().StringSlice("stability-weights", []string{"0", "0.3", "0.5"}, "Stability weights to sweep")
	gridCmd.Flags().StringSlice("top-n", []string{"2", "3"}, "Selection sizes to sweep")

	regimeCmd := &cobra.Command{
		Use:   "regime",
		Short: "Show the regime classifier history",
		Long:  "Replays the regime state machine over the benchmark series and prints every transition",
		RunE:  runRegime,
	}

	quoteCmd := &cobra.Command{
		Use:   "quote [symbols...]",
		Short: "Fetch spot quotes through the adapter chain",
		Long:  "Fetches the latest price per symbol from the highest-priority healthy adapter, falling back to the last stored close",
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("stream-url", "", "Websocket quote stream URL (preferred adapter when set)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only ops endpoints",
		Long:  "Starts the HTTP server exposing /health, /metrics, /rank, and /regime",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "Override the listen address")

	rootCmd.AddCommand(rankCmd, backtestCmd, gridCmd, regimeCmd, quoteCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// setupLogging configures zerolog: pretty console output on a TTY, JSON
// otherwise.
func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		zerolog.SetGlobalLevel(parsed)
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}
