package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// CSVSource reads bars from per-instrument CSV files named <symbol>.csv in a
// directory, for offline research runs without a database. Expected header:
// date,open,high,low,close,volume[,turnover] with dates as 2006-01-02.
type CSVSource struct {
	dir string
}

// NewCSVSource creates a CSV-backed bar source.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// LoadBars implements BarSource.
func (s *CSVSource) LoadBars(_ context.Context, symbol string, from, to time.Time) ([]market.PriceBar, error) {
	path := filepath.Join(s.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return nil, fmt.Errorf("failed to open bars for %s: %w", symbol, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header for %s: %w", symbol, err)
	}
	if len(header) < 6 {
		return nil, fmt.Errorf("bar file for %s has %d columns, want at least 6", symbol, len(header))
	}

	var bars []market.PriceBar
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
		}
		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("bad bar in %s line %d: %w", symbol, line, err)
		}
		if !from.IsZero() && bar.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && bar.Timestamp.After(to) {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(record []string) (market.PriceBar, error) {
	if len(record) < 6 {
		return market.PriceBar{}, fmt.Errorf("%d fields, want at least 6", len(record))
	}
	ts, err := time.Parse("2006-01-02", record[0])
	if err != nil {
		return market.PriceBar{}, fmt.Errorf("bad date %q: %w", record[0], err)
	}
	fields := make([]float64, 0, 6)
	for _, raw := range record[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return market.PriceBar{}, fmt.Errorf("bad number %q: %w", raw, err)
		}
		fields = append(fields, v)
	}
	bar := market.PriceBar{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}
	if len(fields) > 5 {
		bar.Turnover = fields[5]
	}
	return bar, nil
}
