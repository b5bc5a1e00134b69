package waiter

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

type philosopher struct {
	id    int
	name  string
	seats int

	phase atomic.Int32
	meals atomic.Int32

	reqC  chan<- request
	stopC <-chan struct{}

	clk    clock.Clock
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

func (p *philosopher) run() {
	p.l.Info("seated")
	for {
		if !p.sleep(p.think) {
			return
		}
		p.setPhase(core.Hungry)
		if !p.acquireForks() {
			return
		}
		if !p.supply.TryTake() {
			p.setPhase(core.Resting)
			p.releaseForks()
			p.l.Info("supply exhausted", "meals", p.Meals())
			return
		}
		p.meals.Add(1)
		p.setPhase(core.Eating)
		if !p.sleep(p.eat) {
			p.releaseForks()
			return
		}
		// Publish the phase before returning the forks so no observer
		// ever sees two neighbours eating with the same fork.
		p.setPhase(core.Thinking)
		p.releaseForks()
	}
}

// acquireForks asks the waiter for both forks and blocks until they are
// granted, returning false if the run stops first.
func (p *philosopher) acquireForks() bool {
	grant := make(chan struct{})
	select {
	case p.reqC <- request{phil: p.id, kind: reqAcquire, grant: grant}:
	case <-p.stopC:
		return false
	}
	select {
	case <-grant:
		return true
	case <-p.stopC:
		return false
	}
}

// releaseForks is best-effort during shutdown: once the run stops the
// waiter is gone and nobody needs the forks back.
func (p *philosopher) releaseForks() {
	select {
	case p.reqC <- request{phil: p.id, kind: reqRelease}:
	case <-p.stopC:
	}
}

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
		st.Requested = []int{p.id, (p.id + 1) % p.seats}
	case core.Eating:
		st.Holding = []int{p.id, (p.id + 1) % p.seats}
	}
	p.status(st)
}

// Table runs a ring of philosophers served by one waiter.
type Table struct {
	philosophers []*philosopher
	arb          *arbiter

	philGrp   errgroup.Group
	arbGrp    errgroup.Group
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
	// One slot per philosopher keeps requests from blocking on a busy
	// waiter.
	reqC := make(chan request, n)

	arb := &arbiter{
		reqC:  reqC,
		stopC: stopC,
		free:  make([]bool, n),
		l:     l.New("component", "waiter"),
	}

	phils := make([]*philosopher, n)
	for i := range phils {
		phils[i] = &philosopher{
			id:     i,
			name:   params.Name(i),
			seats:  n,
			reqC:   reqC,
			stopC:  stopC,
			clk:    o.clk,
			rng:    rand.New(rand.NewSource(o.seed + int64(i))),
			think:  params.ThinkRange,
			eat:    params.EatRange,
			supply: supply,
			status: o.status,
			l:      l.New("phil", params.Name(i)),
		}
		phils[i].phase.Store(int32(core.Thinking))
	}

	return &Table{philosophers: phils, arb: arb, stopC: stopC, l: l}, nil
}

// Start seats every philosopher and puts the waiter on duty.
func (t *Table) Start() {
	t.startOnce.Do(func() {
		t.l.Info("run starting", "philosophers", len(t.philosophers))
		t.arbGrp.Go(func() error {
			t.arb.run()
			return nil
		})
		for _, p := range t.philosophers {
			p := p
			t.philGrp.Go(func() error {
				p.run()
				return nil
			})
		}
	})
}

// Stop interrupts every philosopher and sends the waiter home.
func (t *Table) Stop() {
	t.stopOnce.Do(func() {
		t.l.Info("broadcasting stop")
		close(t.stopC)
	})
}

// Wait blocks until every philosopher has exited, then dismisses the
// waiter.
func (t *Table) Wait() error {
	err := t.philGrp.Wait()
	t.Stop()
	if arbErr := t.arbGrp.Wait(); err == nil {
		err = arbErr
	}
	return err
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
