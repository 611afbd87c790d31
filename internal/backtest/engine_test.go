package backtest

import (
	"math"
	"testing"
	"time"
)

func frictionlessConfig() Config {
	cfg := DefaultConfig()
	cfg.CommissionRate = 0
	cfg.SlippageRate = 0
	cfg.MinNotional = 0.01
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func d(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestRebalanceBuysToTargetWeights(t *testing.T) {
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0, "BBB": 50.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 0.6, "BBB": 0.4}, prices)

	posA, okA := e.Position("AAA")
	posB, okB := e.Position("BBB")
	if !okA || !okB {
		t.Fatal("both targets should be held after rebalance")
	}
	if math.Abs(posA.Shares*100.0-600000) > 1 {
		t.Errorf("AAA notional = %f, want 600000", posA.Shares*100.0)
	}
	if math.Abs(posB.Shares*50.0-400000) > 1 {
		t.Errorf("BBB notional = %f, want 400000", posB.Shares*50.0)
	}
	if e.Cash() < -1e-9 {
		t.Errorf("cash went negative: %f", e.Cash())
	}
}

func TestAccountingIdentity(t *testing.T) {
	// With zero friction, cash + position value must equal initial capital
	// through any sequence of trades.
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0, "BBB": 50.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 0.5, "BBB": 0.3}, prices)
	e.MarkToMarket(d(1), prices)
	e.Rebalance(d(1), map[string]float64{"BBB": 0.7}, prices)

	point := e.MarkToMarket(d(2), prices)
	if math.Abs(point.Equity-1000000) > 1e-6 {
		t.Errorf("frictionless equity = %f, want 1000000", point.Equity)
	}
}

func TestCommissionAndSlippageReduceEquity(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg)
	prices := map[string]float64{"AAA": 100.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 1.0}, prices)
	point := e.MarkToMarket(d(1), prices)

	if point.Equity >= cfg.InitialCapital {
		t.Errorf("friction should cost equity, got %f", point.Equity)
	}
	if e.Cash() < 0 {
		t.Errorf("cash went negative: %f", e.Cash())
	}
}

func TestBuyShrinksToAffordableSize(t *testing.T) {
	cfg := frictionlessConfig()
	cfg.InitialCapital = 10000
	cfg.SlippageRate = 0.01 // slippage pushes the naive cost past available cash
	e := newTestEngine(t, cfg)
	prices := map[string]float64{"AAA": 100.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 1.0}, prices)

	if e.Cash() < -1e-9 {
		t.Errorf("cash went negative: %f", e.Cash())
	}
	pos, ok := e.Position("AAA")
	if !ok || pos.Shares <= 0 {
		t.Fatal("position should be opened")
	}
	if pos.Shares >= 100.0 {
		t.Errorf("buy should shrink below the naive 100 shares, got %f", pos.Shares)
	}
}

func TestStopLossPreemptsRotation(t *testing.T) {
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 0.5}, prices)
	e.SetStopLoss("AAA", 95.0)

	crash := map[string]float64{"AAA": 90.0}
	e.MarkToMarket(d(1), crash)
	fired := e.CheckStops(d(1), crash)

	if len(fired) != 1 || fired[0].Reason != "stop_loss" {
		t.Fatalf("expected one stop_loss trade, got %v", fired)
	}
	if _, held := e.Position("AAA"); held {
		t.Error("stopped position should be fully closed")
	}
}

func TestStopNotFiredAbovePrice(t *testing.T) {
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 0.5}, prices)
	e.SetStopLoss("AAA", 95.0)

	steady := map[string]float64{"AAA": 96.0}
	e.MarkToMarket(d(1), steady)
	if fired := e.CheckStops(d(1), steady); len(fired) != 0 {
		t.Errorf("stop should not fire above the stop price, got %v", fired)
	}
}

func TestRiskLevelFromDrawdown(t *testing.T) {
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 1.0}, prices)
	e.MarkToMarket(d(1), prices)

	// 16% drop on a fully invested book: risk level 1, satellite cap 0.5.
	point := e.MarkToMarket(d(2), map[string]float64{"AAA": 84.0})
	if point.RiskLevel != 1 {
		t.Errorf("risk level = %d at %.1f%% drawdown, want 1", point.RiskLevel, point.Drawdown*100)
	}
	if got := e.MaxSatelliteExposure(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("satellite cap = %f, want 0.5", got)
	}

	// Deeper to ~31%: level 3, satellite closed.
	point = e.MarkToMarket(d(3), map[string]float64{"AAA": 69.0})
	if point.RiskLevel != 3 {
		t.Errorf("risk level = %d, want 3", point.RiskLevel)
	}
	if got := e.MaxSatelliteExposure(); got != 0 {
		t.Errorf("satellite cap = %f, want 0", got)
	}
}

func TestRiskLevelRecoversWithEquity(t *testing.T) {
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0}
	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 1.0}, prices)

	e.MarkToMarket(d(1), map[string]float64{"AAA": 80.0})
	if e.Risk().Level == 0 {
		t.Fatal("expected drawdown risk level")
	}
	e.MarkToMarket(d(2), map[string]float64{"AAA": 99.0})
	if e.Risk().Level != 0 {
		t.Errorf("recovered equity should drop back to level 0, got %d", e.Risk().Level)
	}
}

func TestMarkToMarketCarriesForwardStalePrices(t *testing.T) {
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0}
	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 0.5}, prices)

	// Day with no quote for AAA: the last close marks the position.
	before := e.MarkToMarket(d(0), prices).Equity
	after := e.MarkToMarket(d(1), map[string]float64{}).Equity
	if math.Abs(before-after) > 1e-6 {
		t.Errorf("stale-price mark changed equity: %f vs %f", before, after)
	}
}

func TestRotationSellsAbsentTargets(t *testing.T) {
	e := newTestEngine(t, frictionlessConfig())
	prices := map[string]float64{"AAA": 100.0, "BBB": 50.0}

	e.MarkToMarket(d(0), prices)
	e.Rebalance(d(0), map[string]float64{"AAA": 0.5}, prices)
	e.Rebalance(d(1), map[string]float64{"BBB": 0.5}, prices)

	if _, held := e.Position("AAA"); held {
		t.Error("AAA should be rotated out")
	}
	if _, held := e.Position("BBB"); !held {
		t.Error("BBB should be rotated in")
	}
	var sawRotation bool
	for _, tr := range e.Trades() {
		if tr.Symbol == "AAA" && tr.Action == Sell && tr.Reason == "rotation" {
			sawRotation = true
		}
	}
	if !sawRotation {
		t.Error("rotation sell should be recorded in the ledger")
	}
}

func TestConfigValidate(t *testing.T) {
	bad := DefaultConfig()
	bad.DrawdownThresholds = [3]float64{0.30, 0.20, 0.15} // not ascending
	if err := bad.Validate(); err == nil {
		t.Error("descending thresholds should fail validation")
	}

	bad = DefaultConfig()
	bad.SatelliteCaps = [4]float64{1.0, 0.5, 0.25, 0.1} // deepest must close
	if err := bad.Validate(); err == nil {
		t.Error("non-zero deepest cap should fail validation")
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
