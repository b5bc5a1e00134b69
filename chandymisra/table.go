package chandymisra

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/wizardpb/diningphils/core"
)

// defaultPollInterval is how often the termination monitor samples the
// ring's phases.
const defaultPollInterval = 10 * time.Millisecond

// linkDepth bounds a link's buffer. At most one grant followed by one
// request can be in flight per direction, so sends never block; see
// philosopher.send.
const linkDepth = 2

// Table is a ring of Chandy-Misra philosophers.
type Table struct {
	philosophers []*philosopher
	monitor      *monitor

	grp       errgroup.Group
	startOnce sync.Once
	stopOnce  sync.Once

	l log15.Logger
}

type options struct {
	l        log15.Logger
	clk      clock.WithTickerAndDelayedExecution
	status   core.StatusFunc
	seed     int64
	interval time.Duration
}

// Option configures a Table.
// See Rob Pike's post on the topic for more information on this pattern:
// https://commandcenter.blogspot.com/2014/01/self-referential-functions-and-design.html
type Option func(o *options)

// WithLogger configures the logger used for the run. By default nothing
// is logged.
func WithLogger(l log15.Logger) Option {
	return func(o *options) { o.l = l }
}

// WithClock substitutes the clock used for think/eat timers and the
// termination monitor. Tests pass a fake.
func WithClock(c clock.WithTickerAndDelayedExecution) Option {
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

// WithPollInterval overrides how often the termination monitor samples
// phases.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

func discardLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

// NewTable builds the ring described by params. Fork k starts with
// philosopher k except that philosopher 0 also holds fork 1; the
// request token for each fork sits with its non-owner; every fork
// starts dirty. That seeding makes the ownership graph acyclic with
// philosopher 0 at the root, which is the precondition for deadlock
// freedom.
func NewTable(params core.Params, opts ...Option) (*Table, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid table parameters")
	}
	o := options{
		l:        discardLogger(),
		clk:      clock.RealClock{},
		seed:     time.Now().UnixNano(),
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	l := o.l.New("run", uuid.NewString())
	n := params.Philosophers
	supply := params.NewSupply()

	forks := make([]*fork, n)
	for k := range forks {
		owner := k
		if k == 1 {
			owner = 0
		}
		forks[k] = newFork(k, owner)
	}

	// toLeft[i] carries messages from philosopher i to its left
	// neighbour, toRight[i] to its right.
	toLeft := make([]chan message, n)
	toRight := make([]chan message, n)
	for i := range toLeft {
		toLeft[i] = make(chan message, linkDepth)
		toRight[i] = make(chan message, linkDepth)
	}

	phils := make([]*philosopher, n)
	for i := range phils {
		leftN := (i + n - 1) % n
		rightN := (i + 1) % n
		p := &philosopher{
			id:         i,
			name:       params.Name(i),
			forks:      [2]*fork{forks[i], forks[rightN]},
			neighbours: [2]int{leftN, rightN},
			in:         [2]<-chan message{toRight[leftN], toLeft[rightN]},
			out:        [2]chan<- message{toLeft[i], toRight[i]},
			self:       make(chan message, 2), // one timer fire plus one stop
			clk:        o.clk,
			rng:        rand.New(rand.NewSource(o.seed + int64(i))),
			think:      params.ThinkRange,
			eat:        params.EatRange,
			supply:     supply,
			status:     o.status,
			l:          l.New("phil", params.Name(i)),
		}
		p.phase.Store(int32(core.Thinking))
		p.owned[left] = p.forks[left].ownedBy(i)
		p.owned[right] = p.forks[right].ownedBy(i)
		p.requests[left] = !p.owned[left]
		p.requests[right] = !p.owned[right]
		phils[i] = p
	}

	t := &Table{philosophers: phils, l: l}
	t.monitor = &monitor{
		phils:        phils,
		clk:          o.clk,
		interval:     o.interval,
		stopC:        make(chan struct{}),
		onQuiescence: t.broadcastStop,
		l:            l.New("component", "monitor"),
	}
	return t, nil
}

// Start seats every philosopher and the termination monitor.
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
		t.grp.Go(func() error {
			t.monitor.run()
			return nil
		})
	})
}

// Stop asks every philosopher to exit and stops the monitor. Safe to
// call repeatedly and concurrently with the monitor's own quiescence
// detection.
func (t *Table) Stop() {
	t.monitor.stop()
	t.broadcastStop()
}

// Wait blocks until every philosopher and the monitor have exited.
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

func (t *Table) broadcastStop() {
	t.stopOnce.Do(func() {
		t.l.Info("broadcasting stop")
		for _, p := range t.philosophers {
			p.requestStop()
		}
	})
}
