package chandymisra

import "sync/atomic"

// fork is one resource shared by two ring neighbours. The source of
// truth for possession is each philosopher's own per-side bookkeeping,
// updated only when a grant is sent or applied; the fork's atomics
// mirror that state for concurrent observers (the monitor, status
// sinks, tests). The owner field is written by the receiver as it
// applies a grant, the dirty bit by whichever side currently holds the
// fork.
type fork struct {
	id    int
	owner atomic.Int32
	dirty atomic.Bool
}

func newFork(id, owner int) *fork {
	f := &fork{id: id}
	f.owner.Store(int32(owner))
	// Forks start dirty so they can be surrendered on first request.
	f.dirty.Store(true)
	return f
}

func (f *fork) ownedBy(phil int) bool { return f.owner.Load() == int32(phil) }

// setOwner records the handoff for observers. The receiver calls it
// while applying a grant.
func (f *fork) setOwner(phil int) { f.owner.Store(int32(phil)) }

// markClean wipes the fork before it travels. The granter calls it
// immediately before sending the grant.
func (f *fork) markClean() { f.dirty.Store(false) }

func (f *fork) markDirty() { f.dirty.Store(true) }

func (f *fork) isDirty() bool { return f.dirty.Load() }
