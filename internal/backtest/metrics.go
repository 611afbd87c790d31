package backtest

import (
	"math"
)

// MinSampleDays is the shortest equity history for which annualized figures
// are reported. Shorter runs surface an explicit insufficient-sample state
// instead of a misleadingly precise CAGR.
const MinSampleDays = 180

const tradingDaysPerYear = 252.0

// Metrics summarizes a completed run. AnnualizedReturn and Sharpe are nil
// when the sample is too short.
type Metrics struct {
	TotalReturn        float64  `json:"total_return"`
	AnnualizedReturn   *float64 `json:"annualized_return,omitempty"`
	Sharpe             *float64 `json:"sharpe,omitempty"`
	MaxDrawdown        float64  `json:"max_drawdown"`
	TradeCount         int      `json:"trade_count"`
	TradingDays        int      `json:"trading_days"`
	InsufficientSample bool     `json:"insufficient_sample"`
}

// CalculateMetrics computes summary metrics from the equity history and the
// trade ledger.
func CalculateMetrics(equity []EquityPoint, trades []Trade) Metrics {
	m := Metrics{TradeCount: len(trades), TradingDays: len(equity)}
	if len(equity) == 0 {
		m.InsufficientSample = true
		return m
	}

	first := equity[0].Equity
	last := equity[len(equity)-1].Equity
	if first > 0 {
		m.TotalReturn = last/first - 1.0
	}

	peak := math.Inf(-1)
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := p.Equity/peak - 1.0
			if dd < m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}

	if len(equity) < MinSampleDays {
		m.InsufficientSample = true
		return m
	}

	days := equity[len(equity)-1].Date.Sub(equity[0].Date).Hours() / 24.0
	if days > 0 && first > 0 && last > 0 {
		cagr := math.Pow(last/first, 365.0/days) - 1.0
		m.AnnualizedReturn = &cagr
	}

	sharpe := sharpeRatio(equity)
	m.Sharpe = &sharpe
	return m
}

// sharpeRatio is mean/stdev of daily returns scaled by sqrt(252); zero when
// the standard deviation is zero or undefined.
func sharpeRatio(equity []EquityPoint) float64 {
	var rets []float64
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			continue
		}
		rets = append(rets, equity[i].Equity/prev-1.0)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets) - 1)
	std := math.Sqrt(variance)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}
