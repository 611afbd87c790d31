package market

import (
	"fmt"
	"time"
)

// RebalanceFrequency controls which trading days trigger a rebalance.
type RebalanceFrequency int

const (
	RebalanceMonthly RebalanceFrequency = iota
	RebalanceWeekly
	RebalanceDaily
)

func (f RebalanceFrequency) String() string {
	switch f {
	case RebalanceMonthly:
		return "monthly"
	case RebalanceWeekly:
		return "weekly"
	case RebalanceDaily:
		return "daily"
	default:
		return "unknown"
	}
}

// ParseRebalanceFrequency parses a frequency name from configuration.
func ParseRebalanceFrequency(s string) (RebalanceFrequency, error) {
	switch s {
	case "monthly":
		return RebalanceMonthly, nil
	case "weekly":
		return RebalanceWeekly, nil
	case "daily":
		return RebalanceDaily, nil
	default:
		return RebalanceMonthly, fmt.Errorf("unknown rebalance frequency %q (want monthly, weekly, or daily)", s)
	}
}

// IsRebalanceDay reports whether the trading day at index i of the calendar
// is a rebalance day for the given frequency. Monthly rebalances fire on the
// last trading day of each calendar month; weekly rebalances fire on Fridays.
// The calendar holds trading days only, ascending.
func IsRebalanceDay(calendar []time.Time, i int, freq RebalanceFrequency) bool {
	if i < 0 || i >= len(calendar) {
		return false
	}
	switch freq {
	case RebalanceDaily:
		return true
	case RebalanceWeekly:
		return calendar[i].Weekday() == time.Friday
	case RebalanceMonthly:
		if i == len(calendar)-1 {
			return true
		}
		return calendar[i].Month() != calendar[i+1].Month() ||
			calendar[i].Year() != calendar[i+1].Year()
	default:
		return false
	}
}
