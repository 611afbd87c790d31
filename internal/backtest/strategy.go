package backtest

import (
	"errors"
	"fmt"
	"math"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/correlation"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/momentum"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/rank"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/selector"
)

// StrategyConfig parameterizes the momentum rotation strategy layered on top
// of the generic engine.
type StrategyConfig struct {
	Momentum           momentum.Config       `yaml:"momentum"`
	Stability          rank.StabilityParams  `yaml:"-"`
	StabilityWeight    float64               `yaml:"stability_weight"`
	PercentileLookback int                   `yaml:"percentile_lookback"`
	Selector           selector.Params       `yaml:"selector"`
	CorrelationWindow  int                   `yaml:"correlation_window"`
	CoreSymbol         string                `yaml:"core_symbol"`
	InitialState       regime.State          `yaml:"-"`
	Conditions         regime.ConditionConfig `yaml:"conditions"`
}

// Validate fails fast before any computation starts.
func (c StrategyConfig) Validate() error {
	if err := c.Momentum.Validate(); err != nil {
		return err
	}
	if err := c.Stability.Validate(); err != nil {
		return err
	}
	if c.PercentileLookback <= 0 {
		return fmt.Errorf("strategy config: percentile lookback must be positive, got %d", c.PercentileLookback)
	}
	if c.CorrelationWindow < 2 {
		return fmt.Errorf("strategy config: correlation window must be at least 2, got %d", c.CorrelationWindow)
	}
	if c.Selector.TopN <= 0 {
		return fmt.Errorf("strategy config: selector top N must be positive, got %d", c.Selector.TopN)
	}
	return c.Conditions.Validate()
}

// Strategy holds the precomputed score, percentile, and return frames for
// one run and derives rebalance targets from them. Frames are read-only
// after construction.
type Strategy struct {
	cfg         StrategyConfig
	adjusted    *rank.Frame
	percentiles *rank.Frame
	returns     *rank.Frame
}

// NewStrategy derives the strategy's frames from the aligned close-price
// frame: momentum scores, raw ranks, stability, stability-adjusted scores,
// trailing percentiles, and daily returns.
func NewStrategy(cfg StrategyConfig, closes *rank.Frame) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scores := rank.NewFrame(closes.Dates, closes.Symbols)
	for _, symbol := range closes.Symbols {
		i := closes.SymbolIndex(symbol)
		col := make([]float64, len(closes.Dates))
		for t := range col {
			col[t] = closes.Data[t][i]
		}
		res, err := momentum.Score(col, cfg.Momentum)
		if err != nil {
			return nil, err
		}
		scores.SetColumn(symbol, res.Score)
	}

	rawRanks := rank.CrossSectionalRank(scores, false)
	stability, err := rank.Stability(scores, rawRanks, cfg.Stability)
	if err != nil {
		return nil, err
	}
	adjusted := rank.AdjustScores(scores, stability, cfg.StabilityWeight, 0)

	returns := rank.NewFrame(closes.Dates, closes.Symbols)
	for t := 1; t < len(closes.Dates); t++ {
		for i := range closes.Symbols {
			prev := closes.Data[t-1][i]
			cur := closes.Data[t][i]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				continue
			}
			returns.Data[t][i] = cur/prev - 1.0
		}
	}

	return &Strategy{
		cfg:         cfg,
		adjusted:    adjusted,
		percentiles: rank.TrailingPercentile(adjusted, cfg.PercentileLookback),
		returns:     returns,
	}, nil
}

// Targets computes the rebalance target weights at calendar index t.
// The satellite sleeve is allocated equally across the selected instruments,
// scaled down so its total never exceeds the risk-level cap; the core sleeve
// goes to the configured core instrument. An empty selection (percentile
// floor cleared everything out) leaves the satellite sleeve in cash: the
// strategy's explicit fallback decision, not the selector's.
func (s *Strategy) Targets(t int, state regime.State, maxSatellite float64, holdings []string) (map[string]float64, selector.Diagnostics, error) {
	profile := regime.ProfileFor(state)
	targets := make(map[string]float64)
	if s.cfg.CoreSymbol != "" {
		targets[s.cfg.CoreSymbol] = profile.CoreRatio
	}

	satBudget := math.Min(profile.SatelliteRatio, maxSatellite)
	if satBudget <= 0 {
		return targets, selector.Diagnostics{Reason: "satellite sleeve closed by risk level"}, nil
	}

	params := s.cfg.Selector
	if profile.MaxPositions > 0 && profile.MaxPositions < params.TopN {
		params.TopN = profile.MaxPositions
	}

	scores := s.adjusted.Row(t)
	pcts := s.percentiles.Row(t)
	// The core instrument is the defensive sleeve, never a rotation candidate.
	delete(scores, s.cfg.CoreSymbol)
	delete(pcts, s.cfg.CoreSymbol)

	corr := correlation.FromReturns(s.returns, t, s.cfg.CorrelationWindow)
	selected, diag, err := selector.Select(scores, pcts, corr, params, holdings)
	if err != nil {
		if errors.Is(err, selector.ErrNoEligibleCandidates) {
			return targets, diag, nil
		}
		return nil, diag, err
	}
	if len(selected) == 0 {
		return targets, diag, nil
	}

	w := satBudget / float64(len(selected))
	for _, symbol := range selected {
		targets[symbol] = w
	}
	return targets, diag, nil
}

// StopPrice derives the stop-loss price set immediately after a buy: the
// regime profile's stop percentage, loosened when benchmark volatility is
// elevated and tightened in a strong low-volatility uptrend.
func (s *Strategy) StopPrice(entryPrice float64, state regime.State, atrRatio float64) float64 {
	profile := regime.ProfileFor(state)
	pct := profile.StopLoss
	switch {
	case atrRatio > 1.3:
		pct *= 1.25
	case state == regime.Offense && atrRatio < 0.8:
		pct *= 0.8
	}
	return entryPrice * (1.0 - pct)
}
