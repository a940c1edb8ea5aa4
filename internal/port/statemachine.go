// Package port implements the port lifecycle and per-pattern port types of
// : Publisher/Subscriber, Notifier/Listener, Client/Server,
// Writer/Reader, all driven through the common tagged-variant state
// machine in this file.
package port

import (
	"fmt"
	"sync"
	"time"
)

// State is a port's lifecycle stage: Constructed (not
// yet visible to other processes) → Registered (dynamic-config entry
// written) → Active (usable) → Draining (no new operations, existing
// holders finishing up) → Reclaimed (dynamic-config entry removed,
// resources released). Active can also go straight to Reclaimed when the
// registry's reaper detects the owning node died.
type State int

const (
	Constructed State = iota
	Registered
	Active
	Draining
	Reclaimed
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "Constructed"
	case Registered:
		return "Registered"
	case Active:
		return "Active"
	case Draining:
		return "Draining"
	case Reclaimed:
		return "Reclaimed"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is Reclaimed — no further transition is
// ever valid from it.
func (s State) IsTerminal() bool { return s == Reclaimed }

var validTransitions = map[State][]State{
	Constructed: {Registered, Reclaimed},
	Registered:  {Active, Reclaimed},
	Active:      {Draining, Reclaimed},
	Draining:    {Reclaimed},
}

// transition records one state change for diagnostics.
type transition struct {
	from, to State
	at       time.Time
}

// StateMachine dispatches every port type's lifecycle by tag rather than
// by virtual method, the same transition-table pattern used elsewhere in
// the codebase for handshake state, narrowed to this 5-state port
// lifecycle.
type StateMachine struct {
	mu      sync.RWMutex
	current State
	history []transition
}

func NewStateMachine() *StateMachine {
	return &StateMachine{current: Constructed}
}

// Transition moves from the current state to to, rejecting any move not
// present in validTransitions.
func (sm *StateMachine) Transition(to State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	allowed := validTransitions[sm.current]
	ok := false
	for _, s := range allowed {
		if s == to {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("port: invalid transition %s -> %s", sm.current, to)
	}
	sm.history = append(sm.history, transition{from: sm.current, to: to, at: time.Now()})
	sm.current = to
	return nil
}

// ForceReclaim transitions directly to Reclaimed regardless of the
// current state's normal transition table. Every port's Reclaim ends with
// it, and Notifier.MarkDead uses it for crash cleanup; it is a no-op once
// the state is already Reclaimed.
func (sm *StateMachine) ForceReclaim() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == Reclaimed {
		return
	}
	sm.history = append(sm.history, transition{from: sm.current, to: Reclaimed, at: time.Now()})
	sm.current = Reclaimed
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current.IsTerminal()
}
