package engine

import "fmt"

// State is a patch's position in its lifecycle within a run.
type State string

const (
	StateLoaded      State = "LOADED"
	StatePreflightOK State = "PREFLIGHT_OK"
	StateApplied     State = "APPLIED"
	StateScopeOK     State = "SCOPE_OK"
	StateCommitted   State = "COMMITTED"
	StateUnchanged   State = "UNCHANGED"
	StateRejected    State = "REJECTED"
	StateViolated    State = "VIOLATED"
	StateFailed      State = "FAILED"
)

var transitions = map[State][]State{
	StateLoaded:      {StatePreflightOK, StateRejected},
	StatePreflightOK: {StateApplied, StateFailed},
	StateApplied:     {StateScopeOK, StateViolated},
	StateScopeOK:     {StateCommitted, StateUnchanged, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// lifecycle tracks one patch through the state machine. Illegal moves are
// programming errors and panic.
type lifecycle struct {
	patch string
	state State
}

func newLifecycle(patchID string) *lifecycle {
	return &lifecycle{patch: patchID, state: StateLoaded}
}

func (l *lifecycle) to(next State) {
	if !allowed(l.state, next) {
		panic(fmt.Sprintf("patch %s: illegal transition %s -> %s", l.patch, l.state, next))
	}
	l.state = next
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
