package core

import "fmt"

// Phase is a philosopher's lifecycle. It is a small finite state machine
// with the following transitions:
//
//	Thinking -> Hungry
//	Hungry   -> Eating
//	Hungry   -> Resting (supply exhausted)
//	Eating   -> Thinking
//
// Resting is terminal for self-initiated transitions; a resting
// philosopher keeps answering its neighbours until the run stops. A
// philosopher must finish eating before it may rest, so Eating ->
// Resting is illegal.
type Phase int32

const (
	// Thinking is the initial phase; the philosopher holds whatever forks
	// it was seeded with and wants nothing.
	Thinking Phase = iota
	// Hungry means the philosopher is collecting its two forks.
	Hungry
	// Eating means the philosopher holds both forks and has taken a
	// serving from the supply.
	Eating
	// Resting means the philosopher is done for the run.
	Resting
)

var validTransitions = map[Phase][]Phase{
	Thinking: {Hungry},
	Hungry:   {Eating, Resting},
	Eating:   {Thinking},
	Resting:  {},
}

func (p Phase) String() string {
	switch p {
	case Thinking:
		return "thinking"
	case Hungry:
		return "hungry"
	case Eating:
		return "eating"
	case Resting:
		return "resting"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// CanTransitionTo reports whether moving from p to next is legal.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, target := range validTransitions[p] {
		if target == next {
			return true
		}
	}
	return false
}

// MustTransition panics if the move from cur to next is illegal. Phase
// changes are driven entirely by the protocols, so an illegal one is
// always a programming error, never an input error.
func MustTransition(cur, next Phase) {
	if !cur.CanTransitionTo(next) {
		panic(fmt.Sprintf("BUG: illegal phase transition %s to %s", cur, next))
	}
}
