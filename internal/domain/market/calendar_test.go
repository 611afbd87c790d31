package market

import (
	"testing"
	"time"
)

func tradingDays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	d := start
	for len(days) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return days
}

func TestIsRebalanceDayMonthly(t *testing.T) {
	// Jan 2024: the 31st is a Wednesday, the last trading day of the month.
	cal := tradingDays(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 45)

	for i, d := range cal {
		isLastOfMonth := i < len(cal)-1 && (cal[i+1].Month() != d.Month())
		isFinal := i == len(cal)-1
		got := IsRebalanceDay(cal, i, RebalanceMonthly)
		if got != (isLastOfMonth || isFinal) {
			t.Errorf("monthly rebalance at %s (i=%d): got %v", d.Format("2006-01-02"), i, got)
		}
	}
}

func TestIsRebalanceDayWeekly(t *testing.T) {
	cal := tradingDays(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	for i, d := range cal {
		got := IsRebalanceDay(cal, i, RebalanceWeekly)
		if got != (d.Weekday() == time.Friday) {
			t.Errorf("weekly rebalance at %s: got %v", d.Format("2006-01-02"), got)
		}
	}
}

func TestIsRebalanceDayOutOfRange(t *testing.T) {
	cal := tradingDays(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5)
	if IsRebalanceDay(cal, -1, RebalanceDaily) || IsRebalanceDay(cal, 5, RebalanceDaily) {
		t.Error("out-of-range index should never be a rebalance day")
	}
}

func TestParseRebalanceFrequency(t *testing.T) {
	for name, want := range map[string]RebalanceFrequency{
		"monthly": RebalanceMonthly,
		"weekly":  RebalanceWeekly,
		"daily":   RebalanceDaily,
	} {
		got, err := ParseRebalanceFrequency(name)
		if err != nil || got != want {
			t.Errorf("ParseRebalanceFrequency(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseRebalanceFrequency("quarterly"); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestValidateSeries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	good := []PriceBar{
		{Timestamp: base},
		{Timestamp: base.AddDate(0, 0, 1)},
	}
	if err := ValidateSeries(good); err != nil {
		t.Errorf("ascending series should validate: %v", err)
	}

	dup := []PriceBar{
		{Timestamp: base},
		{Timestamp: base},
	}
	if err := ValidateSeries(dup); err == nil {
		t.Error("duplicate timestamps should fail validation")
	}

	reversed := []PriceBar{
		{Timestamp: base.AddDate(0, 0, 1)},
		{Timestamp: base},
	}
	if err := ValidateSeries(reversed); err == nil {
		t.Error("descending series should fail validation")
	}
}
