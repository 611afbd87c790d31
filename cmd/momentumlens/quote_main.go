package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/MKY508/momentum-lens-sub000/internal/adapters"
	"github.com/MKY508/momentum-lens-sub000/internal/adapters/stream"
)

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	symbols := args
	if len(symbols) == 0 {
		symbols = cfg.Universe.Symbols
	}

	source, closer, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	chain := []adapters.Adapter{}
	if url, _ := cmd.Flags().GetString("stream-url"); url != "" {
		feed := stream.NewFeed(url, symbols)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Quote stream stopped")
			}
		}()
		// Give the feed a moment to populate before the first lookup.
		time.Sleep(2 * time.Second)
		chain = append(chain, stream.NewAdapter("stream", feed))
	}
	chain = append(chain, adapters.NewBarSourceAdapter("last-close", source, 0))

	manager := adapters.NewManager(adapters.DefaultManagerOption(), chain...)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tPRICE\tAS OF\tSOURCE\tQUALITY")
	for _, symbol := range symbols {
		q, err := manager.GetPrice(ctx, symbol)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%v\n", symbol, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\n",
			q.Symbol, q.Price, q.Timestamp.Format("2006-01-02 15:04"), q.Source, q.Quality)
	}
	return w.Flush()
}
