package market

import (
	"fmt"
	"time"
)

// PriceBar represents a single OHLCV bar for one instrument.
// Bars are immutable once produced; a series is strictly ascending
// by timestamp with no duplicates.
type PriceBar struct {
	Timestamp time.Time `json:"ts" db:"ts"`
	Open      float64   `json:"open" db:"open"`
	High      float64   `json:"high" db:"high"`
	Low       float64   `json:"low" db:"low"`
	Close     float64   `json:"close" db:"close"`
	Volume    float64   `json:"volume" db:"volume"`
	Turnover  float64   `json:"turnover,omitempty" db:"turnover"`
}

// ValidateSeries checks the ordering invariant on a bar series:
// strictly increasing timestamps, no duplicates.
func ValidateSeries(bars []PriceBar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar series not strictly ascending at index %d: %s >= %s",
				i, bars[i-1].Timestamp.Format(time.RFC3339), bars[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts the close-price series from a bar series.
func Closes(bars []PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes extracts the volume series from a bar series.
func Volumes(bars []PriceBar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return vols
}

// Timestamps extracts the timestamp calendar from a bar series.
func Timestamps(bars []PriceBar) []time.Time {
	ts := make([]time.Time, len(bars))
	for i, b := range bars {
		ts[i] = b.Timestamp
	}
	return ts
}
