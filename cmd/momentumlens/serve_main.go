package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/MKY508/momentum-lens-sub000/internal/data"
	httpx "github.com/MKY508/momentum-lens-sub000/internal/interfaces/http"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if override, _ := cmd.Flags().GetString("addr"); override != "" {
		addr = override
	}

	analysisCfg, err := cfg.AnalysisConfig(nil)
	if err != nil {
		return err
	}
	metrics := httpx.NewMetricsRegistry()
	cache := data.NewObservedCache(data.NewAutoCache(),
		func() { metrics.RecordCacheHit("bars") },
		func() { metrics.RecordCacheMiss("bars") })
	source, closer, err := buildSourceWithCache(cfg, cache)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	server := httpx.NewServer(addr, analysisCfg, source, metrics, version)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
