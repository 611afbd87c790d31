package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MKY508/momentum-lens-sub000/internal/application"
)

func runRegime(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	analysisCfg, err := cfg.AnalysisConfig(nil)
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

	snap := rep.Regime
	fmt.Printf("Regime as of %s: %s\n", rep.AsOf.Format("2006-01-02"), snap.State)
	fmt.Printf("  Core/satellite: %.0f%% / %.0f%%, max positions %d, stop %.0f%%\n\n",
		snap.Profile.CoreRatio*100,
		snap.Profile.SatelliteRatio*100,
		snap.Profile.MaxPositions,
		snap.Profile.StopLoss*100)

	if len(snap.History) == 0 {
		fmt.Println("No transitions over the analysis window.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tFROM\tTO\tRULE")
	for _, change := range snap.History {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			change.Timestamp.Format("2006-01-02"), change.From, change.To, change.Rule)
	}
	return w.Flush()
}
