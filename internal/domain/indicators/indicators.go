// Package indicators provides pure, stateless technical indicator functions
// over price-bar series. Every function returns a series aligned with its
// input; positions with insufficient trailing history are NaN, never zero.
// Callers must treat NaN as "indicator not yet available".
package indicators

import (
	"math"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// nanSeries returns a series of length n filled with NaN.
func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// TrueRanges computes the true range series for a bar series.
// TR = max(high-low, |high-prevClose|, |low-prevClose|); the first bar,
// which has no previous close, uses the plain high-low range.
func TrueRanges(bars []market.PriceBar) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		hl := b.High - b.Low
		hc := math.Abs(b.High - prevClose)
		lc := math.Abs(b.Low - prevClose)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// AverageTrueRange computes the rolling-mean ATR over the given window.
func AverageTrueRange(bars []market.PriceBar, window int) []float64 {
	out := nanSeries(len(bars))
	if window <= 0 || len(bars) < window {
		return out
	}
	tr := TrueRanges(bars)
	sum := 0.0
	for i, v := range tr {
		sum += v
		if i >= window {
			sum -= tr[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// ChoppinessIndex computes the Choppiness Index over the given window:
// 100*log10(sum(TR, window) / (max(high, window) - min(low, window))) / log10(window),
// clamped to [0, 100]. Positions where the high-low range over the window is
// zero are NaN (the ratio is undefined, not infinitely choppy).
func ChoppinessIndex(bars []market.PriceBar, window int) []float64 {
	out := nanSeries(len(bars))
	if window <= 1 || len(bars) <= window {
		return out
	}
	tr := TrueRanges(bars)
	logW := math.Log10(float64(window))
	// Start at index `window` so every true range in the trailing window has a
	// previous close behind it.
	for i := window; i < len(bars); i++ {
		trSum := 0.0
		hi := math.Inf(-1)
		lo := math.Inf(1)
		for j := i - window + 1; j <= i; j++ {
			trSum += tr[j]
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}
		rng := hi - lo
		if rng <= 0 || trSum <= 0 {
			continue
		}
		chop := 100.0 * math.Log10(trSum/rng) / logW
		out[i] = math.Max(0.0, math.Min(100.0, chop))
	}
	return out
}

// AverageDirectionalIndex computes the classic Wilder ADX. Directional
// movement and true range are smoothed with Wilder's method, DX values are
// available after one full window, and the first ADX value is the mean of the
// first `window` DX values. Everything before that is NaN.
func AverageDirectionalIndex(bars []market.PriceBar, window int) []float64 {
	out := nanSeries(len(bars))
	if window <= 0 || len(bars) < 2*window+1 {
		return out
	}

	n := len(bars)
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		cur, prev := bars[i], bars[i-1]
		hl := cur.High - cur.Low
		hc := math.Abs(cur.High - prev.Close)
		lc := math.Abs(cur.Low - prev.Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	dx := nanSeries(n)
	var smTR, smPlus, smMinus float64
	for i := 1; i <= window; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}
	dx[window] = directionalIndex(smPlus, smMinus, smTR)
	for i := window + 1; i < n; i++ {
		smTR = smTR - smTR/float64(window) + tr[i]
		smPlus = smPlus - smPlus/float64(window) + plusDM[i]
		smMinus = smMinus - smMinus/float64(window) + minusDM[i]
		dx[i] = directionalIndex(smPlus, smMinus, smTR)
	}

	// First ADX is the simple mean of the first `window` DX values.
	first := 2 * window
	if first >= n {
		return out
	}
	sum := 0.0
	for i := window + 1; i <= first; i++ {
		sum += dx[i]
	}
	adx := sum / float64(window)
	out[first] = adx
	for i := first + 1; i < n; i++ {
		adx = (adx*float64(window-1) + dx[i]) / float64(window)
		out[i] = adx
	}
	return out
}

func directionalIndex(smPlus, smMinus, smTR float64) float64 {
	if smTR <= 0 {
		return 0
	}
	pdi := 100.0 * smPlus / smTR
	mdi := 100.0 * smMinus / smTR
	if pdi+mdi == 0 {
		return 0
	}
	return 100.0 * math.Abs(pdi-mdi) / (pdi + mdi)
}

// LinearTrendSlope computes the slope of an ordinary-least-squares fit of
// log(price) against the bar index over the trailing window. A window
// containing any non-finite or non-positive price yields NaN.
func LinearTrendSlope(closes []float64, window int) []float64 {
	out := nanSeries(len(closes))
	if window < 2 || len(closes) < window {
		return out
	}
	xs := make([]float64, window)
	for i := range xs {
		xs[i] = float64(i)
	}
	xMean := float64(window-1) / 2.0
	var xVar float64
	for _, x := range xs {
		xVar += (x - xMean) * (x - xMean)
	}

	for i := window - 1; i < len(closes); i++ {
		valid := true
		logSum := 0.0
		logs := make([]float64, window)
		for j := 0; j < window; j++ {
			p := closes[i-window+1+j]
			if !isFinite(p) || p <= 0 {
				valid = false
				break
			}
			logs[j] = math.Log(p)
			logSum += logs[j]
		}
		if !valid {
			continue
		}
		yMean := logSum / float64(window)
		cov := 0.0
		for j := 0; j < window; j++ {
			cov += (xs[j] - xMean) * (logs[j] - yMean)
		}
		out[i] = cov / xVar
	}
	return out
}

// MovingAverage computes a simple rolling mean. Windows containing a NaN
// propagate NaN rather than silently averaging over fewer points.
func MovingAverage(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		valid := true
		for j := i - window + 1; j <= i; j++ {
			if !isFinite(values[j]) {
				valid = false
				break
			}
			sum += values[j]
		}
		if valid {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// ExponentialMovingAverage computes an EMA with smoothing 2/(span+1),
// seeded at the first finite value. Leading NaNs are preserved.
func ExponentialMovingAverage(values []float64, span int) []float64 {
	out := nanSeries(len(values))
	if span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	seeded := false
	ema := 0.0
	for i, v := range values {
		if !isFinite(v) {
			if seeded {
				out[i] = ema
			}
			continue
		}
		if !seeded {
			ema = v
			seeded = true
		} else {
			ema = ema*(1-alpha) + v*alpha
		}
		out[i] = ema
	}
	return out
}

// Returns computes the simple period-over-period return series. The first
// position is NaN; a zero or non-finite base price yields NaN.
func Returns(closes []float64) []float64 {
	out := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		base := closes[i-1]
		if !isFinite(base) || base == 0 || !isFinite(closes[i]) {
			continue
		}
		out[i] = closes[i]/base - 1.0
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
