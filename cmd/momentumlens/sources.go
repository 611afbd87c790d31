package main

import (
	"fmt"
	"time"

	"github.com/MKY508/momentum-lens-sub000/internal/config"
	"github.com/MKY508/momentum-lens-sub000/internal/data"
	"github.com/MKY508/momentum-lens-sub000/internal/data/postgres"
)

// buildSource wires the configured bar source behind the read-through cache.
// The returned closer is non-nil only for sources holding connections.
func buildSource(cfg *config.Config) (data.BarSource, func() error, error) {
	return buildSourceWithCache(cfg, data.NewAutoCache())
}

// buildSourceWithCache lets the serve command supply an instrumented cache.
func buildSourceWithCache(cfg *config.Config, cache data.Cache) (data.BarSource, func() error, error) {
	var (
		inner  data.BarSource
		closer func() error
	)

	switch cfg.Data.Source {
	case "csv":
		inner = data.NewCSVSource(cfg.Data.CSVDir)
	case "postgres":
		db, err := postgres.Connect(cfg.Data.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		inner = postgres.NewBarStore(db, 10*time.Second)
		closer = db.Close
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}

	return data.NewCachedSource(inner, cache, cfg.Data.CacheTTL.Std()), closer, nil
}
