package regime

import (
	"github.com/rs/zerolog/log"
)

// Machine is the regime state machine. State is owned exclusively by the
// machine and mutated only through Update; the transition history is
// append-only and never retracted.
type Machine struct {
	state   State
	rules   []Rule
	history []Change
}

// NewMachine creates a state machine with the default rule table.
// The initial state is NEUTRAL unless overridden.
func NewMachine(initial State) *Machine {
	return NewMachineWithRules(initial, DefaultRules())
}

// NewMachineWithRules creates a state machine with a custom rule table.
func NewMachineWithRules(initial State, rules []Rule) *Machine {
	return &Machine{state: initial, rules: rules}
}

// State returns the current regime state.
func (m *Machine) State() State {
	return m.state
}

// History returns the transition log. The returned slice is a copy; the
// machine's own log cannot be mutated from outside.
func (m *Machine) History() []Change {
	out := make([]Change, len(m.history))
	copy(out, m.history)
	return out
}

// Update evaluates the transition table against one period's inputs and
// applies at most one transition. Candidate target states for the current
// state are checked in a fixed order, OFFENSE before NEUTRAL before DEFENSE,
// so simultaneous qualification resolves deterministically. Returns the
// state after the update and whether a transition fired.
func (m *Machine) Update(in Inputs) (State, bool) {
	for _, target := range []State{Offense, Neutral, Defense} {
		if target == m.state {
			continue
		}
		for _, rule := range m.rules {
			if rule.From != m.state || rule.To != target {
				continue
			}
			satisfied := rule.Satisfied(in)
			if len(satisfied) < rule.Required {
				continue
			}
			change := Change{
				Timestamp: in.Timestamp,
				From:      m.state,
				To:        rule.To,
				Rule:      rule.name(),
				Satisfied: satisfied,
			}
			m.history = append(m.history, change)
			m.state = rule.To
			log.Debug().
				Str("rule", change.Rule).
				Strs("satisfied", satisfied).
				Int("required", rule.Required).
				Time("ts", in.Timestamp).
				Msg("regime transition")
			return m.state, true
		}
	}
	return m.state, false
}
