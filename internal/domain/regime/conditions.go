package regime

import (
	"fmt"
	"math"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/indicators"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// ConditionConfig parameterizes the derivation of transition inputs from
// benchmark index bars.
type ConditionConfig struct {
	MAWindow       int     `yaml:"ma_window"`        // long moving average, default 200
	ChopWindow     int     `yaml:"chop_window"`      // choppiness window, default 14
	ChopLowMax     float64 `yaml:"chop_low_max"`     // below this is trending, default 38.2
	ChopHighMin    float64 `yaml:"chop_high_min"`    // above this is range-bound, default 61.8
	ADXWindow      int     `yaml:"adx_window"`       // default 14
	ADXStrongMin   float64 `yaml:"adx_strong_min"`   // default 25
	EMAFastSpan    int     `yaml:"ema_fast_span"`    // default 20
	EMASlowSpan    int     `yaml:"ema_slow_span"`    // default 60
	SlopeWindow    int     `yaml:"slope_window"`     // log-price OLS window, default 20
	ATRWindow      int     `yaml:"atr_window"`       // default 20
	ATRRefWindow   int     `yaml:"atr_ref_window"`   // ATR baseline window, default 100
	VolumeWindow   int     `yaml:"volume_window"`    // default 20
	VolumeSurgeMin float64 `yaml:"volume_surge_min"` // volume vs mean multiple, default 1.5
	PanicLookback  int     `yaml:"panic_lookback"`   // default 5
	PanicDropPct   float64 `yaml:"panic_drop_pct"`   // default 0.05
}

// DefaultConditionConfig returns the production benchmark condition settings.
func DefaultConditionConfig() ConditionConfig {
	return ConditionConfig{
		MAWindow:       200,
		ChopWindow:     14,
		ChopLowMax:     38.2,
		ChopHighMin:    61.8,
		ADXWindow:      14,
		ADXStrongMin:   25,
		EMAFastSpan:    20,
		EMASlowSpan:    60,
		SlopeWindow:    20,
		ATRWindow:      20,
		ATRRefWindow:   100,
		VolumeWindow:   20,
		VolumeSurgeMin: 1.5,
		PanicLookback:  5,
		PanicDropPct:   0.05,
	}
}

// Validate fails fast on malformed condition settings.
func (c ConditionConfig) Validate() error {
	if c.MAWindow <= 0 || c.ChopWindow <= 1 || c.ADXWindow <= 0 ||
		c.EMAFastSpan <= 0 || c.EMASlowSpan <= 0 || c.SlopeWindow < 2 ||
		c.ATRWindow <= 0 || c.ATRRefWindow <= 0 || c.VolumeWindow <= 0 ||
		c.PanicLookback <= 0 {
		return fmt.Errorf("regime condition config: all windows must be positive (fast EMA span %d, slow %d, MA %d)",
			c.EMAFastSpan, c.EMASlowSpan, c.MAWindow)
	}
	if c.EMAFastSpan >= c.EMASlowSpan {
		return fmt.Errorf("regime condition config: fast EMA span %d must be shorter than slow span %d",
			c.EMAFastSpan, c.EMASlowSpan)
	}
	if c.ChopLowMax >= c.ChopHighMin {
		return fmt.Errorf("regime condition config: chop low max %.1f must be below chop high min %.1f",
			c.ChopLowMax, c.ChopHighMin)
	}
	return nil
}

// BuildInputs derives one Inputs value per bar of the benchmark series.
// Conditions that need more history than exists are simply false for those
// early bars; the caller never sees an error for sparse data.
func BuildInputs(bars []market.PriceBar, cfg ConditionConfig) ([]Inputs, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	closes := market.Closes(bars)
	volumes := market.Volumes(bars)

	ma := indicators.MovingAverage(closes, cfg.MAWindow)
	chop := indicators.ChoppinessIndex(bars, cfg.ChopWindow)
	adx := indicators.AverageDirectionalIndex(bars, cfg.ADXWindow)
	emaFast := indicators.ExponentialMovingAverage(closes, cfg.EMAFastSpan)
	emaSlow := indicators.ExponentialMovingAverage(closes, cfg.EMASlowSpan)
	slope := indicators.LinearTrendSlope(closes, cfg.SlopeWindow)
	atr := indicators.AverageTrueRange(bars, cfg.ATRWindow)
	atrRef := indicators.MovingAverage(atr, cfg.ATRRefWindow)
	volMean := indicators.MovingAverage(volumes, cfg.VolumeWindow)

	out := make([]Inputs, len(bars))
	unlock, fallback := 0, 0
	for i, bar := range bars {
		in := Inputs{Timestamp: bar.Timestamp}

		if !math.IsNaN(ma[i]) {
			in.AboveMA = bar.Close > ma[i]
			if in.AboveMA {
				unlock++
				fallback = 0
			} else {
				fallback++
				unlock = 0
			}
			in.UnlockDays = unlock
			in.FallbackDays = fallback
		}

		if !math.IsNaN(chop[i]) {
			in.ChopLow = chop[i] <= cfg.ChopLowMax
			in.ChopHigh = chop[i] >= cfg.ChopHighMin
			in.ChopNormal = !in.ChopLow && !in.ChopHigh
		}

		trendUp := !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) && emaFast[i] > emaSlow[i]
		trendDown := !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) && emaFast[i] < emaSlow[i]
		slopeUp := !math.IsNaN(slope[i]) && slope[i] > 0
		slopeDown := !math.IsNaN(slope[i]) && slope[i] < 0
		adxStrong := !math.IsNaN(adx[i]) && adx[i] >= cfg.ADXStrongMin

		in.MomentumStrong = trendUp && slopeUp && adxStrong
		in.MomentumWeak = trendDown && slopeDown
		in.MomentumRecovery = trendUp && slopeUp && !adxStrong

		if !math.IsNaN(volMean[i]) && volMean[i] > 0 {
			in.VolumeSurge = volumes[i] >= cfg.VolumeSurgeMin*volMean[i]
		}

		if i >= cfg.PanicLookback {
			base := closes[i-cfg.PanicLookback]
			if base > 0 {
				in.MarketPanic = closes[i]/base-1.0 <= -cfg.PanicDropPct
			}
		}

		if !math.IsNaN(atr[i]) && !math.IsNaN(atrRef[i]) && atrRef[i] > 0 {
			in.ATRRatio = atr[i] / atrRef[i]
		} else {
			in.ATRRatio = 1.0
		}

		out[i] = in
	}
	return out, nil
}
