package rank

import (
	"math"
	"time"
)

// Frame is a time x instrument matrix of float values sharing one trading
// calendar. Data[t][i] holds the value for Symbols[i] at Dates[t]. Frames are
// never mutated in place; every transformation returns a new Frame.
type Frame struct {
	Dates   []time.Time
	Symbols []string
	Data    [][]float64

	index map[string]int
}

// NewFrame allocates a Frame filled with NaN.
func NewFrame(dates []time.Time, symbols []string) *Frame {
	data := make([][]float64, len(dates))
	for t := range data {
		row := make([]float64, len(symbols))
		for i := range row {
			row[i] = math.NaN()
		}
		data[t] = row
	}
	return &Frame{Dates: dates, Symbols: symbols, Data: data, index: buildIndex(symbols)}
}

func buildIndex(symbols []string) map[string]int {
	idx := make(map[string]int, len(symbols))
	for i, s := range symbols {
		idx[s] = i
	}
	return idx
}

// SymbolIndex returns the column index for a symbol, or -1 when absent.
func (f *Frame) SymbolIndex(symbol string) int {
	if f.index == nil {
		f.index = buildIndex(f.Symbols)
	}
	if i, ok := f.index[symbol]; ok {
		return i
	}
	return -1
}

// At returns the value at (t, symbol); NaN when the symbol is unknown.
func (f *Frame) At(t int, symbol string) float64 {
	i := f.SymbolIndex(symbol)
	if i < 0 || t < 0 || t >= len(f.Data) {
		return math.NaN()
	}
	return f.Data[t][i]
}

// SetColumn copies a value series into the symbol's column. Series shorter
// than the calendar leave the tail NaN; longer series are truncated.
func (f *Frame) SetColumn(symbol string, values []float64) {
	i := f.SymbolIndex(symbol)
	if i < 0 {
		return
	}
	for t := 0; t < len(f.Data) && t < len(values); t++ {
		f.Data[t][i] = values[t]
	}
}

// Row returns the cross-section at time t keyed by symbol. NaN entries are
// included so callers can distinguish "missing symbol" from "no value yet".
func (f *Frame) Row(t int) map[string]float64 {
	out := make(map[string]float64, len(f.Symbols))
	if t < 0 || t >= len(f.Data) {
		return out
	}
	for i, s := range f.Symbols {
		out[s] = f.Data[t][i]
	}
	return out
}

// RankFrame is a time x instrument matrix of integer ranks. Rank 1 is best;
// rank 0 means undefined (the underlying score was NaN at that time).
type RankFrame struct {
	Dates   []time.Time
	Symbols []string
	Ranks   [][]int

	index map[string]int
}

// At returns the rank at (t, symbol); 0 when undefined or unknown.
func (r *RankFrame) At(t int, symbol string) int {
	if r.index == nil {
		r.index = buildIndex(r.Symbols)
	}
	i, ok := r.index[symbol]
	if !ok || t < 0 || t >= len(r.Ranks) {
		return 0
	}
	return r.Ranks[t][i]
}
