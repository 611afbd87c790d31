package momentum

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestScoreFlatSeriesIsZero(t *testing.T) {
	closes := make([]float64, 150)
	for i := range closes {
		closes[i] = 100.0
	}
	cfg := Config{Windows: []int{60, 120}, Weights: []float64{0.6, 0.4}}

	res, err := Score(closes, cfg)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	last := res.Score[len(res.Score)-1]
	if !almostEqual(last, 0.0) {
		t.Errorf("flat series should score 0, got %f", last)
	}
}

func TestScoreDoublingSeries(t *testing.T) {
	// Price doubles over every 60-bar stretch: each window-60 component
	// return is exactly +1.
	closes := make([]float64, 121)
	for i := range closes {
		closes[i] = 100.0 * math.Pow(2.0, float64(i)/60.0)
	}
	cfg := Config{Windows: []int{60}}

	res, err := Score(closes, cfg)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if got := res.Score[120]; !almostEqual(got, 1.0) {
		t.Errorf("doubling series should score +1.0, got %f", got)
	}
}

func TestScoreInsufficientHistoryIsNaN(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104}
	cfg := Config{Windows: []int{60}}

	res, err := Score(closes, cfg)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	for t2, v := range res.Score {
		if !math.IsNaN(v) {
			t.Errorf("score[%d] should be NaN with only %d bars, got %f", t2, len(closes), v)
		}
	}
}

func TestScoreSkipWindow(t *testing.T) {
	// 10 bars of history, window 5 with skip 2:
	// component(t=9) = closes[7]/closes[2] - 1.
	closes := []float64{100, 102, 104, 106, 108, 110, 112, 114, 116, 118}
	cfg := Config{Windows: []int{5}, SkipWindows: []int{2}}

	res, err := Score(closes, cfg)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	want := closes[7]/closes[2] - 1.0
	if got := res.Score[9]; !almostEqual(got, want) {
		t.Errorf("skip component mismatch: got %f, want %f", got, want)
	}
	if _, ok := res.Components["r5s2"]; !ok {
		t.Errorf("expected component key r5s2, have %v", keys(res.Components))
	}
}

func TestNormalizedWeights(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want []float64
	}{
		{"explicit", Config{Windows: []int{60, 120}, Weights: []float64{3, 1}}, []float64{0.75, 0.25}},
		{"nil falls back to equal", Config{Windows: []int{60, 120}}, []float64{0.5, 0.5}},
		{"zero sum falls back to equal", Config{Windows: []int{60, 120}, Weights: []float64{0, 0}}, []float64{0.5, 0.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.cfg.NormalizedWeights()
			sum := 0.0
			for i, w := range got {
				sum += w
				if !almostEqual(w, tc.want[i]) {
					t.Errorf("weight[%d] = %f, want %f", i, w, tc.want[i])
				}
			}
			if !almostEqual(sum, 1.0) {
				t.Errorf("weights sum to %f, want 1", sum)
			}
		})
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty windows", Config{}},
		{"non-positive window", Config{Windows: []int{0}}},
		{"weight length mismatch", Config{Windows: []int{60}, Weights: []float64{0.5, 0.5}}},
		{"negative weight", Config{Windows: []int{60}, Weights: []float64{-1}}},
		{"skip length mismatch", Config{Windows: []int{60}, SkipWindows: []int{1, 2}}},
		{"skip equals window", Config{Windows: []int{60}, SkipWindows: []int{60}}},
		{"skip exceeds window", Config{Windows: []int{60}, SkipWindows: []int{90}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func keys(m map[string][]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
