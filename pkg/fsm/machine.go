package fsm

import (
	"fmt"
	"sync"
)

type State string
type Event string

// Handler is executed after a transition commits.
type Handler func(event Event, args ...interface{}) error

type StateMachine struct {
	mu          sync.Mutex
	current     State
	transitions map[State]map[Event]State
	callbacks   map[State]map[Event]Handler
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current:     initial,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]map[Event]Handler),
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// Is reports whether the machine currently sits in state s.
func (sm *StateMachine) Is(s State) bool {
	return sm.Current() == s
}

// Can reports whether event is a valid transition from the current state.
func (sm *StateMachine) Can(event Event) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, ok := sm.transitions[sm.current][event]
	return ok
}

func (sm *StateMachine) AddTransition(from, to State, event Event, callback Handler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		sm.transitions[from] = make(map[Event]State)
		sm.callbacks[from] = make(map[Event]Handler)
	}
	sm.transitions[from][event] = to
	sm.callbacks[from][event] = callback
}

// Fire triggers a state transition. The transition commits before the
// callback runs, and the callback executes outside the machine's lock, so
// callbacks may Fire further events. A callback error is returned to the
// caller but does not roll the state back.
func (sm *StateMachine) Fire(event Event, args ...interface{}) error {
	sm.mu.Lock()
	next, ok := sm.transitions[sm.current][event]
	if !ok {
		cur := sm.current
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s via %s", cur, event)
	}
	callback := sm.callbacks[sm.current][event]
	sm.current = next
	sm.mu.Unlock()

	if callback != nil {
		return callback(event, args...)
	}
	return nil
}
