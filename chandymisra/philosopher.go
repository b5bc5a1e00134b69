package chandymisra

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/inconshreveable/log15"
	"k8s.io/utils/clock"

	"github.com/wizardpb/diningphils/core"
)

// side indexes a philosopher's two forks and links.
type side int

const (
	left side = iota
	right
)

func (s side) String() string {
	if s == left {
		return "left"
	}
	return "right"
}

// philosopher is one ring member. Everything below the atomics is owned
// by the run goroutine; nothing else may touch it.
type philosopher struct {
	id   int
	name string

	phase atomic.Int32 // holds a core.Phase; read by the monitor and sinks
	meals atomic.Int32

	forks [2]*fork
	// owned is the protocol's truth about possession per side. It
	// changes only here, on grant send (cleared) and grant application
	// (set), so a grant still in flight confers nothing on either side.
	// The fork atomics mirror it for observers.
	owned [2]bool
	// requests holds the request token per side. When the philosopher
	// does not hold the fork, a set token permits sending a request;
	// when it does, a set token records the neighbour's pending request.
	// The token survives a grant, which is what lets the granter ask for
	// the fork back later.
	requests   [2]bool
	neighbours [2]int

	in   [2]<-chan message
	out  [2]chan<- message
	self chan message

	// timer is the single outstanding deferred callback, nil when idle.
	timer clock.Timer

	clk    clock.WithTickerAndDelayedExecution
	rng    *rand.Rand
	think  core.DurationRange
	eat    core.DurationRange
	supply *core.Supply
	status core.StatusFunc

	l log15.Logger
}

func (p *philosopher) ID() int           { return p.id }
func (p *philosopher) Name() string      { return p.name }
func (p *philosopher) Phase() core.Phase { return core.Phase(p.phase.Load()) }
func (p *philosopher) Meals() int        { return int(p.meals.Load()) }

// run is the philosopher's receive loop. It blocks on a fair select
// over the two neighbour links and the self channel, and exits only on
// msgStop.
func (p *philosopher) run() {
	p.l.Info("seated", "left", p.forks[left].id, "right", p.forks[right].id)
	p.scheduleAfter(p.think, msgBecomeHungry)
	for {
		var m message
		select {
		case m = <-p.in[left]:
		case m = <-p.in[right]:
		case m = <-p.self:
		}
		if !p.handle(m) {
			return
		}
	}
}

// handle applies one message and then drives the guarded commands to a
// fixpoint. It returns false when the loop must exit.
func (p *philosopher) handle(m message) bool {
	switch m.kind {
	case msgRequest:
		s := p.sideOf(m.fork)
		if p.requests[s] {
			panic(fmt.Sprintf("BUG: %s: duplicate request for fork %d", p.name, m.fork))
		}
		p.requests[s] = true
	case msgGrant:
		s := p.sideOf(m.fork)
		f := p.forks[s]
		// The granter wipes the fork clean before it travels, and a fork
		// cannot be granted to the side already holding it. Anything
		// else means the seeding or the protocol is broken, which is not
		// recoverable.
		if p.owned[s] || f.isDirty() {
			p.l.Error("protocol violation on grant",
				"fork", f.id, "held", p.owned[s], "dirty", f.isDirty())
			panic(fmt.Sprintf("BUG: %s: granted fork %d arrived dirty or already held", p.name, f.id))
		}
		p.owned[s] = true
		f.setOwner(p.id)
	case msgBecomeHungry:
		p.timer = nil
		if p.Phase() != core.Resting {
			p.setPhase(core.Hungry)
		}
	case msgBecomeSated:
		p.timer = nil
		p.setPhase(core.Thinking)
		p.scheduleAfter(p.think, msgBecomeHungry)
	case msgStop:
		p.cancelTimer()
		p.l.Info("stopping", "meals", p.Meals())
		return false
	default:
		panic(fmt.Sprintf("BUG: %s: unrecognised message %v", p.name, m))
	}
	p.fixpoint()
	return true
}

// fixpoint re-evaluates the guarded commands until a full pass fires
// nothing. One pass is not enough: receiving a fork can complete a meal
// and oblige a grant to the other side in the same step, and the
// protocol's progress argument depends on draining every enabled rule
// before blocking again.
func (p *philosopher) fixpoint() {
	for {
		fired := false
		for s := left; s <= right; s++ {
			if p.requestRule(s) {
				fired = true
			}
			if p.grantRule(s) {
				fired = true
			}
		}
		if p.startEating() {
			fired = true
		}
		if !fired {
			return
		}
	}
}

// requestRule: a hungry philosopher holding the request token for a
// fork it does not hold sends the token to the holder.
func (p *philosopher) requestRule(s side) bool {
	f := p.forks[s]
	if p.Phase() != core.Hungry || p.owned[s] || !p.requests[s] {
		return false
	}
	p.requests[s] = false
	p.l.Debug("requesting fork", "fork", f.id, "side", s)
	p.send(s, message{kind: msgRequest, fork: f.id})
	return true
}

// grantRule: an owned fork with a pending request is surrendered unless
// the philosopher is eating with it or it is still clean. A resting
// philosopher gives up even clean forks so the ring can finish without
// it.
func (p *philosopher) grantRule(s side) bool {
	f := p.forks[s]
	ph := p.Phase()
	if ph == core.Eating || !p.owned[s] || !p.requests[s] {
		return false
	}
	if ph != core.Resting && !f.isDirty() {
		return false
	}
	// Possession ends here; the receiver records the new owner when it
	// applies the grant.
	p.owned[s] = false
	f.markClean()
	p.l.Debug("granting fork", "fork", f.id, "side", s)
	p.send(s, message{kind: msgGrant, fork: f.id})
	return true
}

// startEating: a hungry philosopher holding both forks either takes a
// serving and eats, or retires when the supply is gone.
func (p *philosopher) startEating() bool {
	if p.Phase() != core.Hungry || !p.owned[left] || !p.owned[right] {
		return false
	}
	if !p.supply.TryTake() {
		p.setPhase(core.Resting)
		return true
	}
	p.forks[left].markDirty()
	p.forks[right].markDirty()
	p.meals.Add(1)
	p.setPhase(core.Eating)
	p.scheduleAfter(p.eat, msgBecomeSated)
	return true
}

// setPhase validates and publishes a phase change, then reports it to
// the status sink. It runs only on p's own goroutine.
func (p *philosopher) setPhase(next core.Phase) {
	cur := p.Phase()
	core.MustTransition(cur, next)
	p.phase.Store(int32(next))
	p.l.Debug("phase change", "from", cur, "to", next)
	p.emitStatus()
}

func (p *philosopher) emitStatus() {
	if p.status == nil {
		return
	}
	st := core.Status{
		ID:           p.id,
		Name:         p.name,
		Phase:        p.Phase(),
		ServingsLeft: p.supply.Remaining(),
		Meals:        p.Meals(),
	}
	for s := left; s <= right; s++ {
		f := p.forks[s]
		switch {
		case p.owned[s]:
			st.Holding = append(st.Holding, f.id)
		case st.Phase == core.Hungry:
			st.Requested = append(st.Requested, f.id)
		}
	}
	p.status(st)
}

// send must never block: the token discipline bounds in-flight messages
// per direction at two (one grant followed by one request), which is
// exactly the link buffer size.
func (p *philosopher) send(s side, m message) {
	select {
	case p.out[s] <- m:
	default:
		panic(fmt.Sprintf("BUG: %s: %s link full sending %v", p.name, s, m))
	}
}

// scheduleAfter arms the single deferred timer. The callback runs on
// the clock's goroutine and only enqueues; a fire that loses the race
// with shutdown drops its message instead of blocking forever.
func (p *philosopher) scheduleAfter(r core.DurationRange, kind messageKind) {
	if p.timer != nil {
		panic(fmt.Sprintf("BUG: %s: deferred timer already armed", p.name))
	}
	p.timer = p.clk.AfterFunc(r.Random(p.rng), func() {
		select {
		case p.self <- message{kind: kind}:
		default:
		}
	})
}

func (p *philosopher) cancelTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// requestStop enqueues a stop without blocking. The self channel holds
// at most one timer message, so the only way the buffer is full is that
// a stop is already queued.
func (p *philosopher) requestStop() {
	select {
	case p.self <- message{kind: msgStop}:
	default:
	}
}

func (p *philosopher) sideOf(forkID int) side {
	switch forkID {
	case p.forks[left].id:
		return left
	case p.forks[right].id:
		return right
	}
	panic(fmt.Sprintf("BUG: %s: message about fork %d, which it does not share", p.name, forkID))
}
