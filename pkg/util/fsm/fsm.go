// Package fsm provides a small, read-only finite state machine definition with thread-safe instances.
package fsm

import (
	"fmt"
	"sync"
)

// Fsm is a read-only FSM definition
type Fsm[S comparable, E comparable] struct {
	Initial     S
	Transitions map[S][]Transition[S, E]
}

type Transition[S comparable, E comparable] struct {
	Event E
	Src   S
	Dst   S
}

// TransitionError is returned when an instance is given an event its current state does not accept.
type TransitionError struct {
	From  interface{}
	Event interface{}
}

func (err *TransitionError) Error() string {
	return fmt.Sprintf("fsm: event %v not accepted in state %v", err.Event, err.From)
}

func New[S comparable, E comparable](initial S, transitions []Transition[S, E]) *Fsm[S, E] {
	nodeTransitions := map[S][]Transition[S, E]{}
	for _, t := range transitions {
		nodeTransitions[t.Src] = append(nodeTransitions[t.Src], t)
		if _, ok := nodeTransitions[t.Dst]; !ok {
			nodeTransitions[t.Dst] = []Transition[S, E]{}
		}
	}

	f := &Fsm[S, E]{
		Initial:     initial,
		Transitions: nodeTransitions,
	}

	if !f.NodeExists(initial) {
		panic(fmt.Sprintf("fsm: initial state %v does not exist", initial))
	}
	return f
}

func (f *Fsm[S, E]) NodeExists(node S) bool {
	_, ok := f.Transitions[node]
	return ok
}

func (f *Fsm[S, E]) NewInstance(overrideInitial ...S) *Instance[S, E] {
	initial := f.Initial
	if len(overrideInitial) > 0 {
		initial = overrideInitial[0]
	}
	return &Instance[S, E]{
		Fsm:     f,
		current: initial,
	}
}

// Instance is a running copy of a Fsm. It is safe for concurrent use.
type Instance[S comparable, E comparable] struct {
	*Fsm[S, E]
	mx      sync.RWMutex
	current S
}

func (i *Instance[S, E]) Current() S {
	i.mx.RLock()
	defer i.mx.RUnlock()
	return i.current
}

// Evaluate applies the event to the current state, returning the new state.
//
// If the current state has no outgoing transition for the event, the state is left unchanged and a
// *TransitionError is returned.
func (i *Instance[S, E]) Evaluate(event E) (S, error) {
	i.mx.Lock()
	defer i.mx.Unlock()
	for _, t := range i.Transitions[i.current] {
		if t.Event == event {
			i.current = t.Dst
			return i.current, nil
		}
	}
	return i.current, &TransitionError{From: i.current, Event: event}
}
