// Package reshier implements the resource-hierarchy dining discipline:
// forks are plain mutexes acquired in global id order, so the wait-for
// graph can never close a cycle. It is the centrally-ordered
// counterpart to the message-passing protocol in package chandymisra
// and runs behind the same core.Table interface.
package reshier

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/wizardpb/diningphils/core"
)

type fork struct {
	id int
	mu sync.Mutex
}

type philosopher struct {
	id   int
	name string

	phase atomic.Int32
	meals atomic.Int32

	// first has the lower fork id; locking in that order keeps the
	// global acquisition order acyclic.
	first  *fork
	second *fork

	clk    clock.Clock
	rng    *rand.Rand
	think  core.DurationRange
	eat    core.DurationRange
	supply *core.Supply
	status core.StatusFunc
	stopC  <-chan struct{}

	l log15.Logger
}

func (p *philosopher) ID() int           { return p.id }
func (p *philosopher) Name() string      { return p.name }
func (p *philosopher) Phase() core.Phase { return core.Phase(p.phase.Load()) }
func (p *philosopher) Meals() int        { return int(p.meals.Load()) }

func (p *philosopher) run() {
	p.l.Info("seated", "first", p.first.id, "second", p.second.id)
	for {
		if !p.sleep(p.think) {
			return
		}
		p.setPhase(core.Hungry)
		p.first.mu.Lock()
		p.second.mu.Lock()
		select {
		case <-p.stopC:
			p.unlock()
			return
		default:
		}
		if !p.supply.TryTake() {
			p.setPhase(core.Resting)
			p.unlock()
			p.l.Info("supply exhausted", "meals", p.Meals())
			return
		}
		p.meals.Add(1)
		p.setPhase(core.Eating)
		ate := p.sleep(p.eat)
		if !ate {
			p.unlock()
			return
		}
		// Publish the phase before releasing the forks so no observer
		// ever sees two neighbours eating with the same fork.
		p.setPhase(core.Thinking)
		p.unlock()
	}
}

func (p *philosopher) unlock() {
	p.second.mu.Unlock()
	p.first.mu.Unlock()
}

// sleep waits a randomised duration, returning false if the run was
// stopped first.
func (p *philosopher) sleep(r core.DurationRange) bool {
	t := p.clk.NewTimer(r.Random(p.rng))
	defer t.Stop()
	select {
	case <-t.C():
		return true
	case <-p.stopC:
		return false
	}
}

func (p *philosopher) setPhase(next core.Phase) {
	cur := p.Phase()
	core.MustTransition(cur, next)
	p.phase.Store(int32(next))
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
	switch st.Phase {
	case core.Hungry:
		st.Requested = []int{p.first.id, p.second.id}
	case core.Eating:
		st.Holding = []int{p.first.id, p.second.id}
	}
	p.status(st)
}

// Table runs a ring of lock-ordering philosophers.
type Table struct {
	philosophers []*philosopher

	grp       errgroup.Group
	startOnce sync.Once
	stopOnce  sync.Once
	stopC     chan struct{}

	l log15.Logger
}

type options struct {
	l      log15.Logger
	clk    clock.Clock
	status core.StatusFunc
	seed   int64
}

// Option configures a Table.
type Option func(o *options)

// WithLogger configures the logger used for the run.
func WithLogger(l log15.Logger) Option {
	return func(o *options) { o.l = l }
}

// WithClock substitutes the clock used for think/eat delays.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clk = c }
}

// WithStatusFunc registers the sink notified on every phase transition.
func WithStatusFunc(f core.StatusFunc) Option {
	return func(o *options) { o.status = f }
}

// WithSeed fixes the think/eat jitter for reproducible runs.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// NewTable builds the ring described by params.
func NewTable(params core.Params, opts ...Option) (*Table, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid table parameters")
	}
	o := options{
		l:    discardLogger(),
		clk:  clock.RealClock{},
		seed: time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	l := o.l.New("run", uuid.NewString())
	n := params.Philosophers
	supply := params.NewSupply()
	stopC := make(chan struct{})

	forks := make([]*fork, n)
	for k := range forks {
		forks[k] = &fork{id: k}
	}

	phils := make([]*philosopher, n)
	for i := range phils {
		first, second := forks[i], forks[(i+1)%n]
		if second.id < first.id {
			first, second = second, first
		}
		phils[i] = &philosopher{
			id:     i,
			name:   params.Name(i),
			first:  first,
			second: second,
			clk:    o.clk,
			rng:    rand.New(rand.NewSource(o.seed + int64(i))),
			think:  params.ThinkRange,
			eat:    params.EatRange,
			supply: supply,
			status: o.status,
			stopC:  stopC,
			l:      l.New("phil", params.Name(i)),
		}
		phils[i].phase.Store(int32(core.Thinking))
	}

	return &Table{philosophers: phils, stopC: stopC, l: l}, nil
}

// Start seats every philosopher.
func (t *Table) Start() {
	t.startOnce.Do(func() {
		t.l.Info("run starting", "philosophers", len(t.philosophers))
		for _, p := range t.philosophers {
			p := p
			t.grp.Go(func() error {
				p.run()
				return nil
			})
		}
	})
}

// Stop interrupts every philosopher's next delay or meal. A bounded run
// finishes without it: each philosopher retires on its own once the
// supply is gone.
func (t *Table) Stop() {
	t.stopOnce.Do(func() {
		t.l.Info("broadcasting stop")
		close(t.stopC)
	})
}

// Wait blocks until every philosopher has exited.
func (t *Table) Wait() error {
	return t.grp.Wait()
}

// Philosophers returns the seats in ring order.
func (t *Table) Philosophers() []core.Philosopher {
	out := make([]core.Philosopher, len(t.philosophers))
	for i, p := range t.philosophers {
		out[i] = p
	}
	return out
}

func discardLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}
