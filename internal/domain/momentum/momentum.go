// Package momentum computes multi-window momentum scores. Each configured
// lookback window contributes a trailing return, optionally skipping the most
// recent bars (the classic "12-month minus 1-month" construction), and the
// weighted sum of those component returns is the instrument's momentum score.
package momentum

import (
	"fmt"
	"math"
)

// Config describes the lookback windows used to build a momentum score.
// Weights are renormalized to sum to 1; a nil Weights means equal weighting.
// SkipWindows may be nil (no skips) or the same length as Windows.
type Config struct {
	Windows     []int     `yaml:"windows"`
	Weights     []float64 `yaml:"weights,omitempty"`
	SkipWindows []int     `yaml:"skip_windows,omitempty"`
}

// Validate fails fast on malformed configuration before any computation
// starts. A skip greater than or equal to its window is rejected outright:
// such a component would no longer measure the window it claims to.
func (c Config) Validate() error {
	if len(c.Windows) == 0 {
		return fmt.Errorf("momentum config: windows list is empty")
	}
	for i, w := range c.Windows {
		if w <= 0 {
			return fmt.Errorf("momentum config: window[%d] = %d must be positive", i, w)
		}
	}
	if c.Weights != nil && len(c.Weights) != len(c.Windows) {
		return fmt.Errorf("momentum config: %d weights for %d windows", len(c.Weights), len(c.Windows))
	}
	for i, w := range c.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("momentum config: weight[%d] = %v is not a non-negative finite number", i, w)
		}
	}
	if c.SkipWindows != nil && len(c.SkipWindows) != len(c.Windows) {
		return fmt.Errorf("momentum config: %d skip windows for %d windows", len(c.SkipWindows), len(c.Windows))
	}
	for i, s := range c.SkipWindows {
		if s < 0 {
			return fmt.Errorf("momentum config: skip_window[%d] = %d must be non-negative", i, s)
		}
		if s >= c.Windows[i] {
			return fmt.Errorf("momentum config: skip_window[%d] = %d must be less than window %d", i, s, c.Windows[i])
		}
	}
	return nil
}

// NormalizedWeights returns the per-window weights scaled to sum to 1.
// Missing weights, or declared weights that sum to zero, fall back to equal
// weighting rather than rejecting the run.
func (c Config) NormalizedWeights() []float64 {
	n := len(c.Windows)
	out := make([]float64, n)
	if c.Weights == nil || len(c.Weights) != n {
		for i := range out {
			out[i] = 1.0 / float64(n)
		}
		return out
	}
	sum := 0.0
	for _, w := range c.Weights {
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		for i := range out {
			out[i] = 1.0 / float64(n)
		}
		return out
	}
	for i, w := range c.Weights {
		out[i] = w / sum
	}
	return out
}

// skip returns the skip offset for window i (0 when no skips configured).
func (c Config) skip(i int) int {
	if c.SkipWindows == nil {
		return 0
	}
	return c.SkipWindows[i]
}

// ComponentKey names the component series for one (window, skip) pair,
// e.g. "r60" or "r60s5".
func ComponentKey(window, skip int) string {
	if skip == 0 {
		return fmt.Sprintf("r%d", window)
	}
	return fmt.Sprintf("r%ds%d", window, skip)
}

// Result carries the fused score series plus the per-window component return
// series keyed by ComponentKey. Components are a breakdown artifact for
// reporting; only Score feeds downstream ranking.
type Result struct {
	Score      []float64
	Components map[string][]float64
}

// Score computes the fused momentum score for one instrument's close series.
// componentReturn_i(t) = price[t-skip_i]/price[t-skip_i-window_i] - 1.
// Positions without enough history are NaN and propagate into the fused
// score (no silent zero-fill).
func Score(closes []float64, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	n := len(closes)
	weights := cfg.NormalizedWeights()
	res := Result{
		Score:      make([]float64, n),
		Components: make(map[string][]float64, len(cfg.Windows)),
	}
	for t := range res.Score {
		res.Score[t] = 0
	}

	for i, window := range cfg.Windows {
		skip := cfg.skip(i)
		comp := componentReturns(closes, window, skip)
		res.Components[ComponentKey(window, skip)] = comp
		for t := 0; t < n; t++ {
			res.Score[t] += weights[i] * comp[t]
		}
	}
	return res, nil
}

// componentReturns computes the shifted-ratio return series for one window.
func componentReturns(closes []float64, window, skip int) []float64 {
	out := make([]float64, len(closes))
	for t := range out {
		out[t] = math.NaN()
		end := t - skip
		start := end - window
		if start < 0 {
			continue
		}
		base := closes[start]
		cur := closes[end]
		if math.IsNaN(base) || math.IsNaN(cur) || base == 0 {
			continue
		}
		out[t] = cur/base - 1.0
	}
	return out
}
