// Package correlation builds Pearson correlation matrices of instrument
// returns over a trailing window, used by the constrained selector's
// correlation gate.
package correlation

import (
	"math"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/rank"
)

// Matrix is a symmetric instrument x instrument correlation matrix with a
// unit diagonal. A zero-symbol Matrix is valid and means "no correlation
// data"; the selector treats it as disabling the correlation gate.
type Matrix struct {
	Symbols []string
	Data    [][]float64

	index map[string]int
}

// Empty reports whether the matrix carries no correlation data.
func (m *Matrix) Empty() bool {
	return m == nil || len(m.Symbols) == 0
}

// At returns the correlation between two symbols, or NaN when either symbol
// is absent from the matrix.
func (m *Matrix) At(a, b string) float64 {
	if m.Empty() {
		return math.NaN()
	}
	if m.index == nil {
		m.index = make(map[string]int, len(m.Symbols))
		for i, s := range m.Symbols {
			m.index[s] = i
		}
	}
	i, ok := m.index[a]
	if !ok {
		return math.NaN()
	}
	j, ok := m.index[b]
	if !ok {
		return math.NaN()
	}
	return m.Data[i][j]
}

// FromReturns computes the pairwise Pearson correlation of the trailing
// `window` return observations ending at row `at` of the returns frame.
// Pairs with fewer than two overlapping finite observations, or with zero
// variance on either side, are NaN.
func FromReturns(returns *rank.Frame, at, window int) *Matrix {
	n := len(returns.Symbols)
	m := &Matrix{
		Symbols: append([]string(nil), returns.Symbols...),
		Data:    make([][]float64, n),
	}
	start := at - window + 1
	if start < 0 {
		start = 0
	}
	for i := range m.Data {
		m.Data[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		m.Data[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			c := pearson(returns, i, j, start, at)
			m.Data[i][j] = c
			m.Data[j][i] = c
		}
	}
	return m
}

func pearson(returns *rank.Frame, i, j, start, end int) float64 {
	var xs, ys []float64
	for t := start; t <= end && t < len(returns.Data); t++ {
		x := returns.Data[t][i]
		y := returns.Data[t][j]
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	n := len(xs)
	if n < 2 {
		return math.NaN()
	}
	var sumX, sumY float64
	for k := 0; k < n; k++ {
		sumX += xs[k]
		sumY += ys[k]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)
	var cov, varX, varY float64
	for k := 0; k < n; k++ {
		dx := xs[k] - meanX
		dy := ys[k] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}
