// Package application orchestrates the domain packages into user-facing
// operations: the one-shot analysis pipeline and the parameter grid search.
package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/backtest"
	"github.com/MKY508/momentum-lens-sub000/internal/data"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/correlation"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/momentum"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/rank"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/selector"
	"github.com/MKY508/momentum-lens-sub000/internal/report"
)

// AnalysisConfig describes one analysis run: which instruments to rank as of
// the latest loaded date, and with what strategy parameters.
type AnalysisConfig struct {
	Symbols   []string  `yaml:"symbols"`
	Benchmark string    `yaml:"benchmark"`
	Start     time.Time `yaml:"start"`
	End       time.Time `yaml:"end"`

	Strategy backtest.StrategyConfig `yaml:"strategy"`

	// Holdings feeds the selector's hysteresis gate; empty means a fresh
	// portfolio with no incumbents to defend.
	Holdings []string `yaml:"holdings"`
}

// Validate fails fast before any data is loaded.
func (c AnalysisConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("analysis config: no symbols")
	}
	if c.Benchmark == "" {
		return errors.New("analysis config: benchmark symbol required")
	}
	return c.Strategy.Validate()
}

// Analyzer runs the ranking pipeline against a bar source.
type Analyzer struct {
	cfg    AnalysisConfig
	source data.BarSource
	clock  backtest.Clock
}

// NewAnalyzer creates an analyzer backed by the given bar source.
func NewAnalyzer(cfg AnalysisConfig, source data.BarSource) *Analyzer {
	return &Analyzer{cfg: cfg, source: source, clock: backtest.RealClock{}}
}

// SetClock overrides the clock (for testing).
func (a *Analyzer) SetClock(c backtest.Clock) { a.clock = c }

// Run loads the universe, computes momentum scores, ranks, stability,
// adjusted scores, trailing percentiles, and the correlation matrix, replays
// the regime classifier over the benchmark, and applies the constrained
// selector at the latest date. The returned report is a snapshot of every
// intermediate the pipeline produced for that date.
func (a *Analyzer) Run(ctx context.Context) (*report.AnalysisReport, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	started := a.clock.Now()
	benchBars, err := a.source.LoadBars(ctx, a.cfg.Benchmark, a.cfg.Start, a.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark %s: %w", a.cfg.Benchmark, err)
	}
	if err := market.ValidateSeries(benchBars); err != nil {
		return nil, fmt.Errorf("invalid benchmark series: %w", err)
	}

	load, err := data.LoadUniverse(ctx, a.source, a.cfg.Symbols, a.cfg.Start, a.cfg.End)
	if err != nil {
		return nil, err
	}

	calendar := market.Timestamps(benchBars)
	closes := alignFrame(calendar, load.Loaded())
	t := len(calendar) - 1
	if t < 0 {
		return nil, errors.New("benchmark series is empty")
	}

	scfg := a.cfg.Strategy
	scores := rank.NewFrame(closes.Dates, closes.Symbols)
	components := make(map[string]map[string]float64, len(closes.Symbols))
	for _, symbol := range closes.Symbols {
		col := closeColumn(closes, symbol)
		res, err := momentum.Score(col, scfg.Momentum)
		if err != nil {
			return nil, err
		}
		scores.SetColumn(symbol, res.Score)
		components[symbol] = componentsAt(res, t)
	}

	rawRanks := rank.CrossSectionalRank(scores, false)
	stability, err := rank.Stability(scores, rawRanks, scfg.Stability)
	if err != nil {
		return nil, err
	}
	adjusted := rank.AdjustScores(scores, stability, scfg.StabilityWeight, 0)
	adjRanks := rank.CrossSectionalRank(adjusted, false)
	percentiles := rank.TrailingPercentile(adjusted, scfg.PercentileLookback)

	returns := dailyReturns(closes)
	corr := correlation.FromReturns(returns, t, scfg.CorrelationWindow)

	inputs, err := regime.BuildInputs(benchBars, scfg.Conditions)
	if err != nil {
		return nil, err
	}
	machine := regime.NewMachine(scfg.InitialState)
	for _, in := range inputs {
		machine.Update(in)
	}
	state := machine.State()
	profile := regime.ProfileFor(state)

	scoreRow := adjusted.Row(t)
	pctRow := percentiles.Row(t)
	delete(scoreRow, scfg.CoreSymbol)
	delete(pctRow, scfg.CoreSymbol)

	params := scfg.Selector
	if profile.MaxPositions > 0 && profile.MaxPositions < params.TopN {
		params.TopN = profile.MaxPositions
	}
	selected, diag, err := selector.Select(scoreRow, pctRow, corr, params, a.cfg.Holdings)
	if err != nil && !errors.Is(err, selector.ErrNoEligibleCandidates) {
		return nil, err
	}

	rep := &report.AnalysisReport{
		GeneratedAt: a.clock.Now(),
		AsOf:        calendar[t],
		Benchmark:   a.cfg.Benchmark,
		Universe:    closes.Symbols,
		Dropped:     load.Dropped,
		Regime: report.RegimeSnapshot{
			State:   state,
			Profile: profile,
			History: machine.History(),
		},
		Selection: diag,
	}
	if hist := machine.History(); len(hist) > 0 {
		last := hist[len(hist)-1]
		rep.Regime.LastChange = &last
	}

	held := toSet(a.cfg.Holdings)
	chosen := toSet(selected)
	for _, symbol := range closes.Symbols {
		// encoding/json rejects NaN; rank 0 already marks undefined rows.
		rep.Rows = append(rep.Rows, report.RankRow{
			Symbol:     symbol,
			RawScore:   finiteOrZero(scores.At(t, symbol)),
			Adjusted:   finiteOrZero(adjusted.At(t, symbol)),
			Stability:  finiteOrZero(stability.At(t, symbol)),
			Rank:       adjRanks.At(t, symbol),
			Percentile: finiteOrZero(percentiles.At(t, symbol)),
			Components: components[symbol],
			Held:       held[symbol],
			Selected:   chosen[symbol],
		})
	}
	sort.SliceStable(rep.Rows, func(i, j int) bool {
		ri, rj := rep.Rows[i].Rank, rep.Rows[j].Rank
		if ri == 0 {
			return false
		}
		if rj == 0 {
			return true
		}
		return ri < rj
	})

	if len(selected) > 0 {
		rep.Targets = make(map[string]float64, len(selected)+1)
		if scfg.CoreSymbol != "" {
			rep.Targets[scfg.CoreSymbol] = profile.CoreRatio
		}
		w := profile.SatelliteRatio / float64(len(selected))
		for _, symbol := range selected {
			rep.Targets[symbol] = w
		}
	}

	log.Info().
		Time("as_of", rep.AsOf).
		Int("universe", len(closes.Symbols)).
		Int("dropped", len(load.Dropped)).
		Str("regime", state.String()).
		Int("selected", len(selected)).
		Dur("elapsed", a.clock.Now().Sub(started)).
		Msg("Analysis run complete")

	return rep, nil
}

// componentsAt extracts the per-window return legs at index t so the report
// can show what drove the composite score.
func componentsAt(res momentum.Result, t int) map[string]float64 {
	out := make(map[string]float64, len(res.Components))
	for key, series := range res.Components {
		if t >= 0 && t < len(series) && !math.IsNaN(series[t]) {
			out[key] = series[t]
		}
	}
	return out
}

// alignFrame places each instrument's closes onto the benchmark calendar;
// dates an instrument did not trade stay NaN.
func alignFrame(calendar []time.Time, loaded []data.LoadResult) *rank.Frame {
	symbols := make([]string, len(loaded))
	for i, lr := range loaded {
		symbols[i] = lr.Symbol
	}
	index := make(map[time.Time]int, len(calendar))
	for i, ts := range calendar {
		index[ts] = i
	}

	frame := rank.NewFrame(calendar, symbols)
	for _, lr := range loaded {
		col := frame.SymbolIndex(lr.Symbol)
		for _, bar := range lr.Bars {
			if i, ok := index[bar.Timestamp]; ok {
				frame.Data[i][col] = bar.Close
			}
		}
	}
	return frame
}

func closeColumn(f *rank.Frame, symbol string) []float64 {
	i := f.SymbolIndex(symbol)
	col := make([]float64, len(f.Dates))
	for t := range col {
		col[t] = f.Data[t][i]
	}
	return col
}

func dailyReturns(closes *rank.Frame) *rank.Frame {
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
	return returns
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func toSet(symbols []string) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return set
}
