package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/MKY508/momentum-lens-sub000/internal/data"
)

// BarSourceAdapter serves the last stored close as a quote. It is the
// lowest-quality adapter in the chain: end-of-day data dressed up as a
// price, useful as a fallback when no realtime feed is reachable.
type BarSourceAdapter struct {
	name     string
	source   data.BarSource
	lookback time.Duration
}

// NewBarSourceAdapter wraps a bar source as a quote adapter. lookback bounds
// how far back the last close may be.
func NewBarSourceAdapter(name string, source data.BarSource, lookback time.Duration) *BarSourceAdapter {
	if lookback <= 0 {
		lookback = 14 * 24 * time.Hour
	}
	return &BarSourceAdapter{name: name, source: source, lookback: lookback}
}

func (a *BarSourceAdapter) Name() string     { return a.name }
func (a *BarSourceAdapter) Quality() Quality { return QualityLow }

func (a *BarSourceAdapter) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	return a.lastClose(ctx, symbol)
}

func (a *BarSourceAdapter) GetIndexPrice(ctx context.Context, indexCode string) (Quote, error) {
	return a.lastClose(ctx, indexCode)
}

func (a *BarSourceAdapter) GetRealtime(ctx context.Context, symbol string) (Quote, error) {
	return a.lastClose(ctx, symbol)
}

func (a *BarSourceAdapter) lastClose(ctx context.Context, symbol string) (Quote, error) {
	now := time.Now()
	bars, err := a.source.LoadBars(ctx, symbol, now.Add(-a.lookback), now)
	if err != nil {
		return Quote{}, err
	}
	if len(bars) == 0 {
		return Quote{}, fmt.Errorf("no recent bars for %s", symbol)
	}
	last := bars[len(bars)-1]
	return Quote{
		Symbol:    symbol,
		Price:     last.Close,
		Timestamp: last.Timestamp,
	}, nil
}
