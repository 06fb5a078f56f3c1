// Generic transition-table state machine evaluator
package fsm

import "fmt"

// State is an operational state name.
type State string

// Event triggers a transition between states.
type Event string

// Context carries values guard conditions evaluate against.
type Context map[string]any

// GuardFunc evaluates a named guard condition.
type GuardFunc func(Context) bool

// Guards maps guard tags to their evaluators. Tags form a closed set so
// transition tables stay serializable and guards can be tested on their own.
type Guards map[string]GuardFunc

// Transition is one row of a transition table. Guard is empty for
// unconditional transitions.
type Transition struct {
	From  State
	Event Event
	To    State
	Guard string
}

// Machine evaluates a transition table. It holds no current state;
// every caller owns its own state variable.
type Machine struct {
	rows   []Transition
	guards Guards
}

// New validates a transition table and returns a Machine.
// Lookup is first-match over the rows, so a table is rejected when a later
// row for the same (from, event) pair can never be reached: an unguarded row
// shadows everything after it, and two rows with the same guard are duplicates.
func New(rows []Transition, guards Guards) (*Machine, error) {
	type key struct {
		from State
		ev   Event
	}
	seen := map[key][]string{}
	for i, r := range rows {
		if r.From == "" || r.Event == "" || r.To == "" {
			return nil, fmt.Errorf("fsm: row %d incomplete: %+v", i, r)
		}
		if r.Guard != "" {
			if _, ok := guards[r.Guard]; !ok {
				return nil, fmt.Errorf("fsm: row %d references unknown guard %q", i, r.Guard)
			}
		}
		k := key{r.From, r.Event}
		for _, g := range seen[k] {
			if g == "" {
				return nil, fmt.Errorf("fsm: row %d for (%s,%s) unreachable behind unguarded row", i, r.From, r.Event)
			}
			if g == r.Guard {
				return nil, fmt.Errorf("fsm: duplicate row for (%s,%s) with guard %q", r.From, r.Event, r.Guard)
			}
		}
		seen[k] = append(seen[k], r.Guard)
	}
	return &Machine{rows: rows, guards: guards}, nil
}

// CanTransition reports whether a matching, guard-satisfying transition exists.
func (m *Machine) CanTransition(from State, ev Event, ctx Context) bool {
	_, ok := m.Next(from, ev, ctx)
	return ok
}

// Next returns the resulting state for (from, event), or ok=false when no
// transition matches. It never panics on unknown pairs.
func (m *Machine) Next(from State, ev Event, ctx Context) (State, bool) {
	for _, r := range m.rows {
		if r.From != from || r.Event != ev {
			continue
		}
		if r.Guard != "" && !m.guards[r.Guard](ctx) {
			continue
		}
		return r.To, true
	}
	return "", false
}

// EventsFrom lists the events that have at least one row leaving from.
// Guards are not evaluated; this is for inspection surfaces.
func (m *Machine) EventsFrom(from State) []Event {
	var evs []Event
	seen := map[Event]bool{}
	for _, r := range m.rows {
		if r.From == from && !seen[r.Event] {
			seen[r.Event] = true
			evs = append(evs, r.Event)
		}
	}
	return evs
}
