// Package regime classifies overall market posture into OFFENSE, NEUTRAL, or
// DEFENSE via a finite-state machine with quorum-based transition rules, and
// maps each state to an allocation profile. The rule set is intentionally
// asymmetric: leaving DEFENSE for OFFENSE requires more simultaneous
// confirmations than entering OFFENSE from NEUTRAL.
package regime

import (
	"fmt"
	"time"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// State is the market posture classification.
type State int

const (
	Neutral State = iota
	Offense
	Defense
)

func (s State) String() string {
	switch s {
	case Offense:
		return "offense"
	case Neutral:
		return "neutral"
	case Defense:
		return "defense"
	default:
		return "unknown"
	}
}

// ParseState parses a state name from configuration.
func ParseState(s string) (State, error) {
	switch s {
	case "offense":
		return Offense, nil
	case "neutral":
		return Neutral, nil
	case "defense":
		return Defense, nil
	default:
		return Neutral, fmt.Errorf("unknown regime state %q (want offense, neutral, or defense)", s)
	}
}

// Change records one transition in the append-only regime history.
type Change struct {
	Timestamp time.Time `json:"ts"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Rule      string    `json:"rule"`
	Satisfied []string  `json:"satisfied"`
}

// Profile is the allocation posture derived from a regime state. It is a
// pure lookup, keyed by state, with the NEUTRAL profile as the fallback for
// anything unrecognized.
type Profile struct {
	CoreRatio          float64                   `yaml:"core_ratio"`
	SatelliteRatio     float64                   `yaml:"satellite_ratio"`
	MaxPositions       int                       `yaml:"max_positions"`
	RebalanceFrequency market.RebalanceFrequency `yaml:"-"`
	StopLoss           float64                   `yaml:"stop_loss"`
	TakeProfit         float64                   `yaml:"take_profit"`
	RiskLevel          int                       `yaml:"risk_level"`
}

var profiles = map[State]Profile{
	Offense: {
		CoreRatio:          0.40,
		SatelliteRatio:     0.60,
		MaxPositions:       5,
		RebalanceFrequency: market.RebalanceWeekly,
		StopLoss:           0.08,
		TakeProfit:         0.25,
		RiskLevel:          3,
	},
	Neutral: {
		CoreRatio:          0.60,
		SatelliteRatio:     0.40,
		MaxPositions:       3,
		RebalanceFrequency: market.RebalanceMonthly,
		StopLoss:           0.10,
		TakeProfit:         0.20,
		RiskLevel:          2,
	},
	Defense: {
		CoreRatio:          0.80,
		SatelliteRatio:     0.20,
		MaxPositions:       2,
		RebalanceFrequency: market.RebalanceMonthly,
		StopLoss:           0.12,
		TakeProfit:         0.15,
		RiskLevel:          1,
	},
}

// ProfileFor returns the allocation profile for a state, falling back to the
// NEUTRAL profile for unrecognized states.
func ProfileFor(s State) Profile {
	if p, ok := profiles[s]; ok {
		return p
	}
	return profiles[Neutral]
}
