package regime

import (
	"math"
	"testing"
	"time"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// smallConfig keeps every derivation window tiny so short synthetic series
// produce defined conditions.
func smallConfig() ConditionConfig {
	cfg := DefaultConditionConfig()
	cfg.MAWindow = 10
	cfg.ChopWindow = 5
	cfg.ADXWindow = 5
	cfg.EMAFastSpan = 3
	cfg.EMASlowSpan = 8
	cfg.SlopeWindow = 5
	cfg.ATRWindow = 5
	cfg.ATRRefWindow = 10
	cfg.VolumeWindow = 5
	return cfg
}

func syntheticBars(closes []float64, volumes []float64) []market.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.PriceBar, len(closes))
	for i, c := range closes {
		vol := 1000.0
		if volumes != nil {
			vol = volumes[i]
		}
		bars[i] = market.PriceBar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: vol,
		}
	}
	return bars
}

func TestBuildInputsLength(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	inputs, err := BuildInputs(syntheticBars(closes, nil), smallConfig())
	if err != nil {
		t.Fatalf("BuildInputs failed: %v", err)
	}
	if len(inputs) != len(closes) {
		t.Fatalf("inputs length = %d, want %d", len(inputs), len(closes))
	}
}

func TestBuildInputsUnlockCounter(t *testing.T) {
	// Steady uptrend: once the MA is defined the close stays above it and
	// the unlock counter grows by one per day.
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	inputs, err := BuildInputs(syntheticBars(closes, nil), smallConfig())
	if err != nil {
		t.Fatalf("BuildInputs failed: %v", err)
	}

	last := inputs[len(inputs)-1]
	if !last.AboveMA {
		t.Error("uptrend close should sit above its moving average")
	}
	if last.UnlockDays != inputs[len(inputs)-2].UnlockDays+1 {
		t.Errorf("unlock counter should grow daily, got %d after %d",
			last.UnlockDays, inputs[len(inputs)-2].UnlockDays)
	}
	if last.FallbackDays != 0 {
		t.Errorf("fallback counter should reset while above MA, got %d", last.FallbackDays)
	}
}

func TestBuildInputsPanicDetection(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	// 8% drop over the last panic_lookback days.
	for i := 25; i < 30; i++ {
		closes[i] = 92
	}
	inputs, err := BuildInputs(syntheticBars(closes, nil), smallConfig())
	if err != nil {
		t.Fatalf("BuildInputs failed: %v", err)
	}
	if !inputs[29].MarketPanic {
		t.Error("8%% drop over the lookback should flag panic")
	}
	if inputs[20].MarketPanic {
		t.Error("flat stretch should not flag panic")
	}
}

func TestBuildInputsVolumeSurge(t *testing.T) {
	closes := make([]float64, 30)
	volumes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1
		volumes[i] = 1000
	}
	volumes[29] = 2500 // 2.5x the trailing mean

	inputs, err := BuildInputs(syntheticBars(closes, volumes), smallConfig())
	if err != nil {
		t.Fatalf("BuildInputs failed: %v", err)
	}
	if !inputs[29].VolumeSurge {
		t.Error("2.5x volume should flag a surge")
	}
	if inputs[20].VolumeSurge {
		t.Error("flat volume should not flag a surge")
	}
}

func TestBuildInputsATRRatioDefaultsToOne(t *testing.T) {
	closes := []float64{100, 101, 102}
	inputs, err := BuildInputs(syntheticBars(closes, nil), smallConfig())
	if err != nil {
		t.Fatalf("BuildInputs failed: %v", err)
	}
	for i, in := range inputs {
		if math.Abs(in.ATRRatio-1.0) > 1e-9 {
			t.Errorf("ATR ratio at %d should default to 1 without history, got %f", i, in.ATRRatio)
		}
	}
}

func TestConditionConfigValidate(t *testing.T) {
	bad := DefaultConditionConfig()
	bad.EMAFastSpan = 80 // not shorter than slow span
	if err := bad.Validate(); err == nil {
		t.Error("fast span >= slow span should fail validation")
	}

	bad = DefaultConditionConfig()
	bad.ChopLowMax = 70 // above high min
	if err := bad.Validate(); err == nil {
		t.Error("inverted chop bands should fail validation")
	}

	if err := DefaultConditionConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
