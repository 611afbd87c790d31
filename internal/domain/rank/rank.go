// Package rank provides cross-sectional ranking of momentum scores and the
// rolling stability scores that penalize instruments whose top-rank status
// is volatile. Ranking is a two-pass affair: raw scores are ranked, a
// stability score is computed from that ranking, and the stability-adjusted
// scores are ranked again.
package rank

import (
	"fmt"
	"math"
)

// CrossSectionalRank ranks instruments at every timestamp. With
// ascending=false (the usual case) the highest score gets rank 1. Tied values
// share the lowest rank number in the tie group ("min" method), which makes
// the ranking invariant under monotonic score transformations. NaN scores
// get rank 0 (undefined).
func CrossSectionalRank(scores *Frame, ascending bool) *RankFrame {
	ranks := make([][]int, len(scores.Data))
	for t, row := range scores.Data {
		rr := make([]int, len(row))
		for i, v := range row {
			if math.IsNaN(v) {
				continue
			}
			r := 1
			for j, w := range row {
				if j == i || math.IsNaN(w) {
					continue
				}
				if (!ascending && w > v) || (ascending && w < v) {
					r++
				}
			}
			rr[i] = r
		}
		ranks[t] = rr
	}
	return &RankFrame{Dates: scores.Dates, Symbols: scores.Symbols, Ranks: ranks}
}

// StabilityMethod selects how rank stability is measured.
type StabilityMethod int

const (
	// PresenceRatio is the rolling share of periods the instrument spent
	// inside the top N of the cross-sectional ranking.
	PresenceRatio StabilityMethod = iota
	// Kendall is the rolling absolute Kendall-tau concordance of the raw
	// score path over the window.
	Kendall
)

func (m StabilityMethod) String() string {
	switch m {
	case PresenceRatio:
		return "presence_ratio"
	case Kendall:
		return "kendall"
	default:
		return "unknown"
	}
}

// ParseStabilityMethod parses a method name from configuration.
func ParseStabilityMethod(s string) (StabilityMethod, error) {
	switch s {
	case "presence_ratio":
		return PresenceRatio, nil
	case "kendall":
		return Kendall, nil
	default:
		return PresenceRatio, fmt.Errorf("unknown stability method %q (want presence_ratio or kendall)", s)
	}
}

// StabilityParams configures the stability computation.
type StabilityParams struct {
	Method StabilityMethod
	Window int
	TopN   int
}

// Validate fails fast on malformed stability parameters.
func (p StabilityParams) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("stability window must be positive, got %d", p.Window)
	}
	if p.Method == PresenceRatio && p.TopN <= 0 {
		return fmt.Errorf("presence_ratio stability needs a positive top N, got %d", p.TopN)
	}
	return nil
}

// Stability computes the per-instrument stability score in [0,1].
// presence_ratio needs the rank frame; kendall needs the raw score frame.
// Both frames share the calendar of the inputs.
func Stability(scores *Frame, ranks *RankFrame, p StabilityParams) (*Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Method {
	case Kendall:
		return kendallStability(scores, p.Window), nil
	default:
		return presenceStability(ranks, p.Window, p.TopN), nil
	}
}

// presenceStability averages the top-N membership indicator over the trailing
// window. Only periods with a defined rank count; a single defined period is
// enough for a value.
func presenceStability(ranks *RankFrame, window, topN int) *Frame {
	out := NewFrame(ranks.Dates, ranks.Symbols)
	for t := range ranks.Ranks {
		start := t - window + 1
		if start < 0 {
			start = 0
		}
		for i := range ranks.Symbols {
			defined := 0
			present := 0
			for u := start; u <= t; u++ {
				r := ranks.Ranks[u][i]
				if r == 0 {
					continue
				}
				defined++
				if r <= topN {
					present++
				}
			}
			if defined == 0 {
				continue
			}
			out.Data[t][i] = clamp01(float64(present) / float64(defined))
		}
	}
	return out
}

// kendallStability computes the rolling absolute Kendall-tau of the score
// path against time. Fewer than 3 defined periods, or any NaN inside the
// window, leaves NaN. An all-equal window is perfectly concordant (tau = 1).
func kendallStability(scores *Frame, window int) *Frame {
	out := NewFrame(scores.Dates, scores.Symbols)
	for t := range scores.Data {
		if t < window-1 || window < 3 {
			continue
		}
		for i := range scores.Symbols {
			vals := make([]float64, 0, window)
			ok := true
			for u := t - window + 1; u <= t; u++ {
				v := scores.Data[u][i]
				if math.IsNaN(v) {
					ok = false
					break
				}
				vals = append(vals, v)
			}
			if !ok {
				continue
			}
			out.Data[t][i] = clamp01(math.Abs(kendallTau(vals)))
		}
	}
	return out
}

// kendallTau computes tau-a of a series against its time index. Tied pairs
// count as concordant so a flat series scores 1, matching the convention
// that an unchanged rank path is perfectly stable.
func kendallTau(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return math.NaN()
	}
	concordant, discordant := 0, 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case vals[j] > vals[i]:
				concordant++
			case vals[j] < vals[i]:
				discordant++
			default:
				concordant++
			}
		}
	}
	total := concordant + discordant
	if total == 0 {
		return math.NaN()
	}
	return float64(concordant-discordant) / float64(total)
}

// AdjustScores blends stability back into the raw scores:
// adjusted = raw * ((1-w) + w*stability). A stability weight outside [0,1]
// or non-finite is coerced to defaultWeight, not rejected. Positions with no
// stability value yet keep the raw score.
func AdjustScores(raw, stability *Frame, weight, defaultWeight float64) *Frame {
	w := weight
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
		w = defaultWeight
	}
	out := NewFrame(raw.Dates, raw.Symbols)
	for t := range raw.Data {
		for i, v := range raw.Data[t] {
			if math.IsNaN(v) {
				continue
			}
			s := stability.Data[t][i]
			if math.IsNaN(s) || w == 0 {
				out.Data[t][i] = v
				continue
			}
			out.Data[t][i] = v * ((1.0 - w) + w*s)
		}
	}
	return out
}

// TrailingPercentile computes, per instrument and timestamp, the percentile
// of the current score within its own trailing lookback window, on a 0-1
// scale (share of trailing values less than or equal to the current one).
// NaN trailing values are ignored; a NaN current value stays NaN.
func TrailingPercentile(scores *Frame, lookback int) *Frame {
	out := NewFrame(scores.Dates, scores.Symbols)
	if lookback <= 0 {
		return out
	}
	for t := range scores.Data {
		start := t - lookback + 1
		if start < 0 {
			start = 0
		}
		for i, cur := range scores.Data[t] {
			if math.IsNaN(cur) {
				continue
			}
			total, below := 0, 0
			for u := start; u <= t; u++ {
				v := scores.Data[u][i]
				if math.IsNaN(v) {
					continue
				}
				total++
				if v <= cur {
					below++
				}
			}
			if total == 0 {
				continue
			}
			out.Data[t][i] = float64(below) / float64(total)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
