package regime

import "time"

// Inputs carries one period's derived benchmark conditions, produced by the
// condition builder or supplied directly in tests.
type Inputs struct {
	Timestamp time.Time

	// Moving-average posture of the benchmark index.
	AboveMA      bool
	UnlockDays   int // consecutive days above the long MA since the last crossing
	FallbackDays int // consecutive days below the long MA since the last crossing

	// Choppiness band of the benchmark index.
	ChopLow    bool
	ChopNormal bool
	ChopHigh   bool

	// Trend-strength classification from ADX and fast/slow EMAs.
	MomentumStrong   bool
	MomentumWeak     bool
	MomentumRecovery bool

	VolumeSurge bool
	MarketPanic bool

	// ATRRatio is current ATR relative to its trailing mean, used by the
	// stop-loss policy rather than the transition rules.
	ATRRatio float64
}

// Condition is one named boolean predicate over the period inputs.
type Condition struct {
	Name string
	Eval func(Inputs) bool
}

// Rule describes one candidate transition: it fires when at least Required
// of its conditions hold while the machine is in From.
type Rule struct {
	From       State
	To         State
	Required   int
	Conditions []Condition
}

// Satisfied returns the names of the conditions currently holding.
func (r Rule) Satisfied(in Inputs) []string {
	var names []string
	for _, c := range r.Conditions {
		if c.Eval(in) {
			names = append(names, c.Name)
		}
	}
	return names
}

func (r Rule) name() string {
	return r.From.String() + "->" + r.To.String()
}

func aboveMA(in Inputs) bool      { return in.AboveMA }
func belowMA(in Inputs) bool      { return !in.AboveMA }
func chopLow(in Inputs) bool      { return in.ChopLow }
func chopNormal(in Inputs) bool   { return in.ChopNormal }
func chopHigh(in Inputs) bool     { return in.ChopHigh }
func momStrong(in Inputs) bool    { return in.MomentumStrong }
func momWeak(in Inputs) bool      { return in.MomentumWeak }
func momRecovery(in Inputs) bool  { return in.MomentumRecovery }
func volumeSurge(in Inputs) bool  { return in.VolumeSurge }
func marketPanic(in Inputs) bool  { return in.MarketPanic }
func unlockAtLeast(days int) func(Inputs) bool {
	return func(in Inputs) bool { return in.UnlockDays >= days }
}
func fallbackAtLeast(days int) func(Inputs) bool {
	return func(in Inputs) bool { return in.FallbackDays >= days }
}

// DefaultRules returns the production transition table. Entries into DEFENSE
// require fewer confirmations than exits from it: getting defensive should
// be quick, getting aggressive again should not, so a DEFENSE exit straight
// to OFFENSE demands a 10-day unlock plus a volume-surge confirmation while
// the NEUTRAL entry only needs 5 unlocked days.
func DefaultRules() []Rule {
	return []Rule{
		{
			From: Neutral, To: Offense, Required: 3,
			Conditions: []Condition{
				{Name: "above_ma", Eval: aboveMA},
				{Name: "unlock_5d", Eval: unlockAtLeast(5)},
				{Name: "momentum_strong", Eval: momStrong},
				{Name: "chop_low", Eval: chopLow},
			},
		},
		{
			From: Neutral, To: Defense, Required: 2,
			Conditions: []Condition{
				{Name: "below_ma", Eval: belowMA},
				{Name: "fallback_3d", Eval: fallbackAtLeast(3)},
				{Name: "momentum_weak", Eval: momWeak},
				{Name: "chop_high", Eval: chopHigh},
				{Name: "market_panic", Eval: marketPanic},
			},
		},
		{
			From: Offense, To: Neutral, Required: 2,
			Conditions: []Condition{
				{Name: "below_ma", Eval: belowMA},
				{Name: "momentum_weak", Eval: momWeak},
				{Name: "chop_high", Eval: chopHigh},
			},
		},
		{
			From: Offense, To: Defense, Required: 3,
			Conditions: []Condition{
				{Name: "market_panic", Eval: marketPanic},
				{Name: "fallback_5d", Eval: fallbackAtLeast(5)},
				{Name: "momentum_weak", Eval: momWeak},
				{Name: "below_ma", Eval: belowMA},
			},
		},
		{
			From: Defense, To: Offense, Required: 4,
			Conditions: []Condition{
				{Name: "above_ma", Eval: aboveMA},
				{Name: "unlock_10d", Eval: unlockAtLeast(10)},
				{Name: "momentum_strong", Eval: momStrong},
				{Name: "chop_low", Eval: chopLow},
				{Name: "volume_surge", Eval: volumeSurge},
			},
		},
		{
			From: Defense, To: Neutral, Required: 2,
			Conditions: []Condition{
				{Name: "above_ma", Eval: aboveMA},
				{Name: "unlock_3d", Eval: unlockAtLeast(3)},
				{Name: "momentum_recovery", Eval: momRecovery},
				{Name: "chop_normal", Eval: chopNormal},
			},
		},
	}
}
