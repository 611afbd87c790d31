// Package selector picks a constrained subset of instruments to hold:
// a hard momentum-percentile floor, an optional hysteresis rule damping
// turnover against the currently-held set, and a greedy correlation gate
// preventing simultaneous selection of highly correlated instruments.
package selector

import (
	"errors"
	"math"
	"sort"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/correlation"
)

// ErrNoEligibleCandidates is returned when the percentile floor empties the
// candidate set. The selector never silently falls back to an unconstrained
// top-N; that decision belongs to the caller.
var ErrNoEligibleCandidates = errors.New("selector: no candidates above momentum percentile floor")

// Params configures one selection pass.
type Params struct {
	TopN                int     `yaml:"top_n"`
	MinPercentile       float64 `yaml:"min_percentile"`       // 0-1 scale
	MaxCorrelation      float64 `yaml:"max_correlation"`      // absolute correlation cap
	HysteresisAdvantage float64 `yaml:"hysteresis_advantage"` // score edge a challenger needs
}

// Diagnostics is the per-rebalance audit trail. It is read-only output and
// feeds no subsequent computation.
type Diagnostics struct {
	CandidatesCount       int      `json:"candidates_count"`
	Selected              []string `json:"selected"`
	RejectedByPercentile  []string `json:"rejected_by_percentile"`
	RejectedByCorrelation []string `json:"rejected_by_correlation"`
	RejectedByHysteresis  []string `json:"rejected_by_hysteresis"`
	Reason                string   `json:"reason,omitempty"`
}

type candidate struct {
	symbol string
	score  float64
	order  int // original iteration order, for stable tie-breaks
}

// Select runs the constrained selection. scores and percentiles are the
// current cross-section; holdings is the currently-held set (may be empty).
// Percentile values above 1 are treated as 0-100 scale and rescaled.
// An empty correlation matrix disables the correlation gate; the percentile
// filter and hysteresis still apply.
func Select(scores, percentiles map[string]float64, corr *correlation.Matrix, p Params, holdings []string) ([]string, Diagnostics, error) {
	diag := Diagnostics{
		Selected:              []string{},
		RejectedByPercentile:  []string{},
		RejectedByCorrelation: []string{},
		RejectedByHysteresis:  []string{},
	}

	// Deterministic iteration order regardless of map layout.
	symbols := make([]string, 0, len(scores))
	for s := range scores {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	held := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		held[h] = true
	}

	// Hard percentile floor.
	var candidates []candidate
	for i, s := range symbols {
		score := scores[s]
		if math.IsNaN(score) {
			continue
		}
		diag.CandidatesCount++
		pct := normalizePercentile(percentiles[s])
		if pct < p.MinPercentile {
			diag.RejectedByPercentile = append(diag.RejectedByPercentile, s)
			continue
		}
		candidates = append(candidates, candidate{symbol: s, score: score, order: i})
	}
	if len(candidates) == 0 {
		diag.Reason = "no candidates above momentum percentile floor"
		return nil, diag, ErrNoEligibleCandidates
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	// Hysteresis: a challenger only displaces the weakest still-held
	// instrument when its score edge clears the configured advantage.
	// The gate is moot while the weakest holding still makes the top N on
	// its own; challengers filling free capacity displace nothing.
	if len(held) > 0 && p.HysteresisAdvantage > 0 {
		weakestHeld := math.Inf(1)
		weakestIdx := -1
		for i, c := range candidates {
			if held[c.symbol] && c.score < weakestHeld {
				weakestHeld = c.score
				weakestIdx = i
			}
		}
		if weakestIdx >= p.TopN {
			kept := candidates[:0]
			for _, c := range candidates {
				if !held[c.symbol] && c.score-weakestHeld < p.HysteresisAdvantage {
					diag.RejectedByHysteresis = append(diag.RejectedByHysteresis, c.symbol)
					continue
				}
				kept = append(kept, c)
			}
			candidates = kept
		}
	}

	// Greedy correlation gate, order-dependent by design: higher-scored
	// instruments claim their correlation budget first.
	gateActive := !corr.Empty()
	for _, c := range candidates {
		if len(diag.Selected) >= p.TopN {
			break
		}
		if gateActive && violatesCorrelation(c.symbol, diag.Selected, corr, p.MaxCorrelation) {
			diag.RejectedByCorrelation = append(diag.RejectedByCorrelation, c.symbol)
			continue
		}
		diag.Selected = append(diag.Selected, c.symbol)
	}

	return diag.Selected, diag, nil
}

func violatesCorrelation(symbol string, admitted []string, corr *correlation.Matrix, maxCorr float64) bool {
	for _, a := range admitted {
		c := corr.At(symbol, a)
		if math.IsNaN(c) {
			continue
		}
		if math.Abs(c) > maxCorr {
			return true
		}
	}
	return false
}

// normalizePercentile rescales 0-100 percentiles to the 0-1 scale.
func normalizePercentile(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 1.0 {
		return v / 100.0
	}
	return v
}
