package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Engine is the stateful trade-simulation core. All state (cash, positions,
// trade ledger, risk state) is created for one run, mutated only by that
// run's sequential daily loop, and discarded or exported at run end.
type Engine struct {
	cfg Config

	cash      float64
	positions map[string]*Position
	trades    []Trade
	equity    []EquityPoint
	risk      RiskState

	// lastPrices carries the most recent known close per symbol so
	// instruments with a stale bar still mark to something.
	lastPrices map[string]float64
}

// NewEngine creates an engine. Config errors fail here, before any
// simulation starts.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		cash:       cfg.InitialCapital,
		positions:  make(map[string]*Position),
		lastPrices: make(map[string]float64),
		risk:       RiskState{PeakEquity: cfg.InitialCapital},
	}, nil
}

// Cash returns the current cash balance.
func (e *Engine) Cash() float64 { return e.cash }

// Risk returns the current portfolio risk state.
func (e *Engine) Risk() RiskState { return e.risk }

// Trades returns the trade ledger.
func (e *Engine) Trades() []Trade { return e.trades }

// EquityHistory returns the mark-to-market history.
func (e *Engine) EquityHistory() []EquityPoint { return e.equity }

// Holdings returns the currently held symbols, sorted.
func (e *Engine) Holdings() []string {
	out := make([]string, 0, len(e.positions))
	for s := range e.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Position returns the open position for a symbol, if any.
func (e *Engine) Position(symbol string) (Position, bool) {
	p, ok := e.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// SetStopLoss sets the stop price on an open position. The percentage policy
// behind the price is the strategy's concern, layered on top of the engine.
func (e *Engine) SetStopLoss(symbol string, price float64) {
	if p, ok := e.positions[symbol]; ok {
		p.StopLossPrice = price
	}
}

// MarkToMarket values the portfolio at the day's close prices, appends the
// equity point, and recomputes drawdown and risk level against the running
// peak. This runs first in every day's processing.
func (e *Engine) MarkToMarket(date time.Time, prices map[string]float64) EquityPoint {
	for s, p := range prices {
		if !math.IsNaN(p) && p > 0 {
			e.lastPrices[s] = p
		}
	}

	equity := e.cash
	for _, pos := range e.positions {
		equity += pos.Shares * e.markPrice(pos)
	}

	if equity > e.risk.PeakEquity {
		e.risk.PeakEquity = equity
	}
	e.risk.Drawdown = equity/e.risk.PeakEquity - 1.0
	e.risk.Level = e.riskLevel(e.risk.Drawdown)

	point := EquityPoint{
		Date:      date,
		Equity:    equity,
		Cash:      e.cash,
		Drawdown:  e.risk.Drawdown,
		RiskLevel: e.risk.Level,
	}
	e.equity = append(e.equity, point)
	return point
}

func (e *Engine) riskLevel(drawdown float64) int {
	dd := -drawdown
	switch {
	case dd >= e.cfg.DrawdownThresholds[2]:
		return 3
	case dd >= e.cfg.DrawdownThresholds[1]:
		return 2
	case dd >= e.cfg.DrawdownThresholds[0]:
		return 1
	default:
		return 0
	}
}

// MaxSatelliteExposure returns the satellite-sleeve exposure cap implied by
// the current risk level.
func (e *Engine) MaxSatelliteExposure() float64 {
	return e.cfg.SatelliteCaps[e.risk.Level]
}

// CheckStops sells, immediately and unconditionally, every open position
// whose current price is at or below its stop. Stop-loss always pre-empts
// rotation: this runs before any rebalance logic in the day's processing.
func (e *Engine) CheckStops(date time.Time, prices map[string]float64) []Trade {
	var fired []Trade
	for _, symbol := range e.Holdings() {
		pos := e.positions[symbol]
		price, ok := prices[symbol]
		if !ok || math.IsNaN(price) || pos.StopLossPrice <= 0 {
			continue
		}
		if price <= pos.StopLossPrice {
			t := e.sell(date, symbol, pos.Shares, price, "stop_loss")
			if t != nil {
				fired = append(fired, *t)
			}
		}
	}
	return fired
}

// Rebalance moves the portfolio toward the target weights. Held instruments
// absent from targets are sold first; then each target's weight-implied
// notional is diffed against the current notional and the delta traded,
// skipping diffs below the minimum notional.
func (e *Engine) Rebalance(date time.Time, targets map[string]float64, prices map[string]float64) {
	for _, symbol := range e.Holdings() {
		if _, keep := targets[symbol]; keep {
			continue
		}
		price, ok := currentPrice(symbol, prices, e.lastPrices)
		if !ok {
			log.Warn().Str("symbol", symbol).Msg("no price to exit position, holding")
			continue
		}
		e.sell(date, symbol, e.positions[symbol].Shares, price, "rotation")
	}

	total := e.totalAssets(prices)

	// Deterministic ordering: sells before buys frees cash first, then by
	// symbol within each pass.
	ordered := make([]string, 0, len(targets))
	for s := range targets {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	type diff struct {
		symbol string
		delta  float64
		price  float64
	}
	var sells, buys []diff
	for _, symbol := range ordered {
		price, ok := currentPrice(symbol, prices, e.lastPrices)
		if !ok {
			log.Warn().Str("symbol", symbol).Msg("no price for rebalance target, skipping")
			continue
		}
		current := 0.0
		if pos, held := e.positions[symbol]; held {
			current = pos.Shares * price
		}
		delta := targets[symbol]*total - current
		if math.Abs(delta) < e.cfg.MinNotional {
			continue
		}
		if delta < 0 {
			sells = append(sells, diff{symbol, delta, price})
		} else {
			buys = append(buys, diff{symbol, delta, price})
		}
	}
	for _, d := range sells {
		e.sell(date, d.symbol, -d.delta/d.price, d.price, "rebalance")
	}
	for _, d := range buys {
		e.buy(date, d.symbol, d.delta/d.price, d.price, "rebalance")
	}
}

// buy executes a purchase with slippage then commission. A buy whose cost
// exceeds available cash is shrunk to the maximum affordable size rather
// than rejected outright; a buy never pushes cash negative.
func (e *Engine) buy(date time.Time, symbol string, shares, price float64, reason string) *Trade {
	if shares <= 0 || price <= 0 {
		return nil
	}
	execPrice := price * (1.0 + e.cfg.SlippageRate)
	cost := shares * execPrice
	commission := cost * e.cfg.CommissionRate
	if cost+commission > e.cash {
		shares = e.cash / (execPrice * (1.0 + e.cfg.CommissionRate))
		cost = shares * execPrice
		commission = cost * e.cfg.CommissionRate
	}
	if shares <= 0 || cost < e.cfg.MinNotional {
		return nil
	}

	e.cash -= cost + commission
	if pos, held := e.positions[symbol]; held {
		// Average in.
		totalShares := pos.Shares + shares
		pos.EntryPrice = (pos.EntryPrice*pos.Shares + execPrice*shares) / totalShares
		pos.Shares = totalShares
	} else {
		e.positions[symbol] = &Position{
			Symbol:     symbol,
			Shares:     shares,
			EntryPrice: execPrice,
			EntryDate:  date,
		}
	}
	e.lastPrices[symbol] = price

	t := Trade{
		Date: date, Symbol: symbol, Action: Buy,
		Price: execPrice, Shares: shares, Amount: cost,
		Commission: commission, Reason: reason,
	}
	e.trades = append(e.trades, t)
	return &t
}

// sell executes a sale with slippage then commission. Selling all shares
// destroys the position.
func (e *Engine) sell(date time.Time, symbol string, shares, price float64, reason string) *Trade {
	pos, held := e.positions[symbol]
	if !held || shares <= 0 || price <= 0 {
		return nil
	}
	if shares > pos.Shares {
		shares = pos.Shares
	}
	execPrice := price * (1.0 - e.cfg.SlippageRate)
	proceeds := shares * execPrice
	commission := proceeds * e.cfg.CommissionRate
	e.cash += proceeds - commission

	pos.Shares -= shares
	if pos.Shares*price < 1e-9 {
		delete(e.positions, symbol)
	}
	e.lastPrices[symbol] = price

	t := Trade{
		Date: date, Symbol: symbol, Action: Sell,
		Price: execPrice, Shares: shares, Amount: proceeds,
		Commission: commission, Reason: reason,
	}
	e.trades = append(e.trades, t)
	return &t
}

// totalAssets values cash plus open positions at current prices.
func (e *Engine) totalAssets(prices map[string]float64) float64 {
	total := e.cash
	for symbol, pos := range e.positions {
		price, ok := currentPrice(symbol, prices, e.lastPrices)
		if !ok {
			price = pos.EntryPrice
		}
		total += pos.Shares * price
	}
	return total
}

func (e *Engine) markPrice(pos *Position) float64 {
	if p, ok := e.lastPrices[pos.Symbol]; ok {
		return p
	}
	return pos.EntryPrice
}

func currentPrice(symbol string, prices, lastPrices map[string]float64) (float64, bool) {
	if p, ok := prices[symbol]; ok && !math.IsNaN(p) && p > 0 {
		return p, true
	}
	if p, ok := lastPrices[symbol]; ok && p > 0 {
		return p, true
	}
	return 0, false
}
