package core

import "sync/atomic"

// Supply is the shared pool of servings. Every successful eat cycle
// consumes exactly one serving. It is the only mutable state shared by
// the whole table, so the decrement is a lock-free compare-and-swap.
type Supply struct {
	unbounded bool
	remaining atomic.Int64
}

// NewSupply returns a supply holding n servings.
func NewSupply(n int64) *Supply {
	s := &Supply{}
	s.remaining.Store(n)
	return s
}

// Unbounded returns a supply that never runs out.
func Unbounded() *Supply {
	return &Supply{unbounded: true}
}

// TryTake removes one serving. It returns false once the supply is
// exhausted and never over-issues, regardless of how many philosophers
// race it.
func (s *Supply) TryTake() bool {
	if s.unbounded {
		return true
	}
	for {
		cur := s.remaining.Load()
		if cur <= 0 {
			return false
		}
		if s.remaining.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Remaining reports the servings left, or -1 for an unbounded supply.
func (s *Supply) Remaining() int64 {
	if s.unbounded {
		return -1
	}
	n := s.remaining.Load()
	if n < 0 {
		return 0
	}
	return n
}
