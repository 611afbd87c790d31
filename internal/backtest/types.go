// Package backtest simulates a rotation strategy over historical price bars:
// an event-driven daily loop with commissions and slippage, per-position
// stop-losses, portfolio-level drawdown de-risking, and summary performance
// metrics with a short-sample guard.
package backtest

import (
	"fmt"
	"time"
)

// Action is the trade direction.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Trade is one immutable execution record in the append-only ledger.
type Trade struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Price      float64   `json:"price"` // execution price, slippage applied
	Shares     float64   `json:"shares"`
	Amount     float64   `json:"amount"` // price * shares
	Commission float64   `json:"commission"`
	Reason     string    `json:"reason"`
}

// Position is an open holding, created on BUY and destroyed on full SELL.
// Owned exclusively by the engine's portfolio.
type Position struct {
	Symbol        string    `json:"symbol"`
	Shares        float64   `json:"shares"`
	EntryPrice    float64   `json:"entry_price"`
	EntryDate     time.Time `json:"entry_date"`
	StopLossPrice float64   `json:"stop_loss_price"`
}

// EquityPoint is one day's mark-to-market snapshot.
type EquityPoint struct {
	Date      time.Time `json:"date"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
	Drawdown  float64   `json:"drawdown"` // vs running peak, <= 0
	RiskLevel int       `json:"risk_level"`
}

// RiskState tracks the drawdown-based de-risking level. The level is
// recomputed from scratch every day from current drawdown against the
// running peak; it never survives across backtest runs.
type RiskState struct {
	PeakEquity float64 `json:"peak_equity"`
	Drawdown   float64 `json:"drawdown"`
	Level      int     `json:"level"` // 0 = normal, 3 = deepest
}

// Config holds the engine's execution parameters.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CommissionRate float64 `yaml:"commission_rate"`
	SlippageRate   float64 `yaml:"slippage_rate"`
	// MinNotional suppresses rebalance diffs below this size to avoid churn
	// from rounding noise.
	MinNotional float64 `yaml:"min_notional"`
	// DrawdownThresholds are the positive drawdown magnitudes activating risk
	// levels 1, 2, and 3, ascending.
	DrawdownThresholds [3]float64 `yaml:"drawdown_thresholds"`
	// SatelliteCaps are the maximum satellite-sleeve exposures per risk
	// level 0..3, monotonically decreasing, with the deepest level at 0
	// (forcing full liquidation of the risk sleeve).
	SatelliteCaps [4]float64 `yaml:"satellite_caps"`
}

// DefaultConfig returns the production engine parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital:     1_000_000,
		CommissionRate:     0.0003,
		SlippageRate:       0.001,
		MinNotional:        1_000,
		DrawdownThresholds: [3]float64{0.15, 0.20, 0.30},
		SatelliteCaps:      [4]float64{1.0, 0.5, 0.25, 0.0},
	}
}

// Validate fails fast on malformed engine parameters.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("backtest config: initial capital must be positive, got %v", c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.SlippageRate < 0 {
		return fmt.Errorf("backtest config: commission and slippage rates must be non-negative")
	}
	if c.MinNotional < 0 {
		return fmt.Errorf("backtest config: min notional must be non-negative")
	}
	prev := 0.0
	for i, th := range c.DrawdownThresholds {
		if th <= prev {
			return fmt.Errorf("backtest config: drawdown thresholds must be positive and ascending, got %v at index %d", th, i)
		}
		prev = th
	}
	for i := 1; i < len(c.SatelliteCaps); i++ {
		if c.SatelliteCaps[i] > c.SatelliteCaps[i-1] {
			return fmt.Errorf("backtest config: satellite caps must be monotonically decreasing")
		}
	}
	if c.SatelliteCaps[3] != 0 {
		return fmt.Errorf("backtest config: deepest satellite cap must be 0, got %v", c.SatelliteCaps[3])
	}
	return nil
}
