// Package waiter implements the arbiter dining discipline: a single
// waiter goroutine owns all fork state and serialises every allocation
// decision. A philosopher never touches a fork directly; it asks the
// waiter for both of its forks at once and hands both back after
// eating, so hold-and-wait never arises and the table cannot deadlock.
package waiter

import (
	"github.com/inconshreveable/log15"
)

type requestKind int

const (
	reqAcquire requestKind = iota
	reqRelease
)

// request is one philosopher's instruction to the waiter. grant is
// closed when an acquire is satisfied.
type request struct {
	phil  int
	kind  requestKind
	grant chan struct{}
}

// arbiter is the waiter itself. All fields are owned by its run
// goroutine.
type arbiter struct {
	reqC  chan request
	stopC <-chan struct{}
	free  []bool
	queue []request
	l     log15.Logger
}

func (w *arbiter) run() {
	for i := range w.free {
		w.free[i] = true
	}
	w.l.Info("waiter on duty", "forks", len(w.free))
	for {
		select {
		case <-w.stopC:
			w.l.Info("waiter off duty")
			return
		case r := <-w.reqC:
			w.handle(r)
		}
	}
}

func (w *arbiter) handle(r request) {
	switch r.kind {
	case reqAcquire:
		if !w.tryGrant(r) {
			w.queue = append(w.queue, r)
		}
	case reqRelease:
		a, b := w.forksOf(r.phil)
		w.free[a], w.free[b] = true, true
		w.l.Debug("forks returned", "phil", r.phil)
		w.drainQueue()
	}
}

// tryGrant seats r if both its forks are free.
func (w *arbiter) tryGrant(r request) bool {
	a, b := w.forksOf(r.phil)
	if !w.free[a] || !w.free[b] {
		return false
	}
	w.free[a], w.free[b] = false, false
	w.l.Debug("forks granted", "phil", r.phil)
	close(r.grant)
	return true
}

// drainQueue re-examines waiting philosophers oldest first, keeping the
// ones whose forks are still busy.
func (w *arbiter) drainQueue() {
	kept := w.queue[:0]
	for _, r := range w.queue {
		if !w.tryGrant(r) {
			kept = append(kept, r)
		}
	}
	w.queue = kept
}

func (w *arbiter) forksOf(phil int) (int, int) {
	return phil, (phil + 1) % len(w.free)
}
