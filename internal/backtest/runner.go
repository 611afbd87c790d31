package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/data"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/rank"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/selector"
)

// Clock is injectable for testing.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using wall time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// RunnerConfig describes one full backtest run.
type RunnerConfig struct {
	Symbols   []string  `yaml:"symbols"`
	Benchmark string    `yaml:"benchmark"`
	Start     time.Time `yaml:"start"`
	End       time.Time `yaml:"end"`

	Engine   Config         `yaml:"engine"`
	Strategy StrategyConfig `yaml:"strategy"`

	// FollowRegime lets the regime profile dictate the rebalance cadence;
	// otherwise Frequency applies throughout.
	FollowRegime bool                      `yaml:"follow_regime"`
	Frequency    market.RebalanceFrequency `yaml:"-"`

	OutputDir string `yaml:"output_dir"`
}

// RebalanceRecord is the audit trail for one rebalance date.
type RebalanceRecord struct {
	Date        time.Time            `json:"date"`
	State       regime.State         `json:"regime"`
	Targets     map[string]float64   `json:"targets"`
	Diagnostics selector.Diagnostics `json:"diagnostics"`
}

// Results is the exported outcome of one run.
type Results struct {
	RunID         string            `json:"run_id"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Symbols       []string          `json:"symbols"`
	Dropped       []string          `json:"dropped,omitempty"`
	Metrics       Metrics           `json:"metrics"`
	Equity        []EquityPoint     `json:"equity"`
	Trades        []Trade           `json:"trades"`
	Rebalances    []RebalanceRecord `json:"rebalances"`
	RegimeHistory []regime.Change   `json:"regime_history"`
	FinalState    regime.State      `json:"final_state"`
}

// Runner wires the data source, strategy, and engine into the sequential
// daily simulation loop.
type Runner struct {
	cfg    RunnerConfig
	source data.BarSource
	clock  Clock
}

// NewRunner creates a backtest runner.
func NewRunner(cfg RunnerConfig, source data.BarSource) *Runner {
	return &Runner{cfg: cfg, source: source, clock: RealClock{}}
}

// SetClock overrides the clock (for testing).
func (r *Runner) SetClock(c Clock) { r.clock = c }

// Run executes the backtest. Instruments that fail to load are dropped with
// a warning and reported; a run with no loadable instruments is a hard
// failure. The loop itself is strictly sequential: each day's risk level and
// holdings depend on the prior day's state.
func (r *Runner) Run(ctx context.Context) (*Results, error) {
	benchBars, err := r.source.LoadBars(ctx, r.cfg.Benchmark, r.cfg.Start, r.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark %s: %w", r.cfg.Benchmark, err)
	}
	if err := market.ValidateSeries(benchBars); err != nil {
		return nil, fmt.Errorf("invalid benchmark series: %w", err)
	}

	load, err := data.LoadUniverse(ctx, r.source, r.cfg.Symbols, r.cfg.Start, r.cfg.End)
	if err != nil {
		return nil, err
	}

	calendar := market.Timestamps(benchBars)
	closes := alignCloses(calendar, load.Loaded())

	strategy, err := NewStrategy(r.cfg.Strategy, closes)
	if err != nil {
		return nil, err
	}
	inputs, err := regime.BuildInputs(benchBars, r.cfg.Strategy.Conditions)
	if err != nil {
		return nil, err
	}
	machine := regime.NewMachine(r.cfg.Strategy.InitialState)
	engine, err := NewEngine(r.cfg.Engine)
	if err != nil {
		return nil, err
	}

	results := &Results{
		RunID:       uuid.NewString(),
		GeneratedAt: r.clock.Now(),
		Start:       r.cfg.Start,
		End:         r.cfg.End,
		Symbols:     r.cfg.Symbols,
		Dropped:     load.Dropped,
	}

	for t := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest canceled: %w", err)
		}
		date := calendar[t]
		state, _ := machine.Update(inputs[t])

		prices := dayPrices(closes, t)
		prices[r.cfg.Benchmark] = benchBars[t].Close

		// Fixed daily order: mark-to-market and risk level first, stop-loss
		// exits second, rotation last.
		engine.MarkToMarket(date, prices)
		engine.CheckStops(date, prices)

		freq := r.cfg.Frequency
		if r.cfg.FollowRegime {
			freq = regime.ProfileFor(state).RebalanceFrequency
		}
		if !market.IsRebalanceDay(calendar, t, freq) {
			continue
		}

		targets, diag, err := strategy.Targets(t, state, engine.MaxSatelliteExposure(), engine.Holdings())
		if err != nil {
			return nil, fmt.Errorf("failed to compute targets at %s: %w", date.Format("2006-01-02"), err)
		}
		engine.Rebalance(date, targets, prices)
		r.applyStops(engine, strategy, state, inputs[t].ATRRatio)

		results.Rebalances = append(results.Rebalances, RebalanceRecord{
			Date:        date,
			State:       state,
			Targets:     targets,
			Diagnostics: diag,
		})
	}

	results.Metrics = CalculateMetrics(engine.EquityHistory(), engine.Trades())
	results.Equity = engine.EquityHistory()
	results.Trades = engine.Trades()
	results.RegimeHistory = machine.History()
	results.FinalState = machine.State()

	log.Info().
		Str("run_id", results.RunID).
		Int("trading_days", results.Metrics.TradingDays).
		Int("trades", results.Metrics.TradeCount).
		Float64("total_return", results.Metrics.TotalReturn).
		Bool("insufficient_sample", results.Metrics.InsufficientSample).
		Msg("backtest completed")

	if r.cfg.OutputDir != "" {
		writer := NewWriter(r.cfg.OutputDir)
		if err := writer.WriteResults(results); err != nil {
			return nil, fmt.Errorf("failed to write results: %w", err)
		}
		if err := writer.WriteReport(results); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
	}
	return results, nil
}

// applyStops sets stop-loss prices on positions that do not carry one yet
// (fresh buys from the rebalance that just ran).
func (r *Runner) applyStops(engine *Engine, strategy *Strategy, state regime.State, atrRatio float64) {
	for _, symbol := range engine.Holdings() {
		if symbol == r.cfg.Strategy.CoreSymbol {
			continue // the core sleeve is never stopped out
		}
		pos, ok := engine.Position(symbol)
		if !ok || pos.StopLossPrice > 0 {
			continue
		}
		engine.SetStopLoss(symbol, strategy.StopPrice(pos.EntryPrice, state, atrRatio))
	}
}

// alignCloses projects each instrument's close series onto the shared
// benchmark calendar. Dates an instrument did not trade stay NaN; gaps are
// preserved, not filled.
func alignCloses(calendar []time.Time, loaded []data.LoadResult) *rank.Frame {
	symbols := make([]string, len(loaded))
	for i, lr := range loaded {
		symbols[i] = lr.Symbol
	}
	frame := rank.NewFrame(calendar, symbols)
	index := make(map[time.Time]int, len(calendar))
	for t, ts := range calendar {
		index[ts] = t
	}
	for _, lr := range loaded {
		for _, bar := range lr.Bars {
			if t, ok := index[bar.Timestamp]; ok {
				frame.Data[t][frame.SymbolIndex(lr.Symbol)] = bar.Close
			}
		}
	}
	return frame
}

// dayPrices extracts the day's close per symbol, carrying only defined
// values; the engine handles carry-forward for missing marks.
func dayPrices(closes *rank.Frame, t int) map[string]float64 {
	prices := make(map[string]float64, len(closes.Symbols))
	for i, symbol := range closes.Symbols {
		v := closes.Data[t][i]
		if !math.IsNaN(v) {
			prices[symbol] = v
		}
	}
	return prices
}
