// Package data provides keyed time-series access to price bars: a BarSource
// interface, a Postgres-backed store, a CSV store for offline research, and
// a read-through cache decorator. Per-instrument load failures are explicit
// values, not exceptions: a universe load proceeds with whatever loaded and
// reports what was dropped.
package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// ErrNotFound indicates the instrument is absent from the backing store.
var ErrNotFound = errors.New("instrument not found")

// BarSource loads ordered price bars for one instrument. Implementations
// must return bars sorted ascending by timestamp and must not fill gaps;
// gaps are the caller's concern.
type BarSource interface {
	LoadBars(ctx context.Context, symbol string, from, to time.Time) ([]market.PriceBar, error)
}

// LoadResult is the per-instrument outcome of a universe load.
type LoadResult struct {
	Symbol string
	Bars   []market.PriceBar
	Err    error
}

// Ok reports whether the instrument loaded successfully.
func (r LoadResult) Ok() bool {
	return r.Err == nil
}

// UniverseLoad aggregates per-instrument results for one universe load.
type UniverseLoad struct {
	Results []LoadResult
	Dropped []string
}

// Loaded returns the successfully loaded results.
func (u UniverseLoad) Loaded() []LoadResult {
	out := make([]LoadResult, 0, len(u.Results))
	for _, r := range u.Results {
		if r.Ok() {
			out = append(out, r)
		}
	}
	return out
}

// LoadUniverse loads bars for every symbol, skipping instruments that fail
// with a warning diagnostic instead of aborting. It fails hard only when no
// instrument loads at all.
func LoadUniverse(ctx context.Context, src BarSource, symbols []string, from, to time.Time) (UniverseLoad, error) {
	load := UniverseLoad{Results: make([]LoadResult, 0, len(symbols))}
	for _, symbol := range symbols {
		bars, err := src.LoadBars(ctx, symbol, from, to)
		if err == nil {
			if verr := market.ValidateSeries(bars); verr != nil {
				err = fmt.Errorf("invalid bar series for %s: %w", symbol, verr)
			}
		}
		if err != nil {
			log.Warn().Str("symbol", symbol).Err(err).Msg("dropping instrument from universe")
			load.Results = append(load.Results, LoadResult{Symbol: symbol, Err: err})
			load.Dropped = append(load.Dropped, symbol)
			continue
		}
		load.Results = append(load.Results, LoadResult{Symbol: symbol, Bars: bars})
	}
	if len(load.Loaded()) == 0 {
		return load, fmt.Errorf("no instrument data available for universe of %d symbols", len(symbols))
	}
	return load, nil
}
