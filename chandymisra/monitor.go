package chandymisra

import (
	"sync"
	"time"

	"github.com/inconshreveable/log15"
	"k8s.io/utils/clock"

	"github.com/wizardpb/diningphils/core"
)

// monitor watches every philosopher's phase and, once the ring is
// quiescent, asks the table to broadcast stop. All-resting is a safe
// signal: a philosopher drains every pending grant inside its fixpoint
// before re-blocking, so once every phase reads Resting no grant cycle
// is still in flight.
type monitor struct {
	phils        []*philosopher
	clk          clock.WithTickerAndDelayedExecution
	interval     time.Duration
	stopC        chan struct{}
	stopOnce     sync.Once
	onQuiescence func()
	l            log15.Logger
}

func (m *monitor) run() {
	t := m.clk.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-m.stopC:
			return
		case <-t.C():
			if m.allResting() {
				m.l.Info("ring is quiescent")
				m.onQuiescence()
				return
			}
		}
	}
}

func (m *monitor) allResting() bool {
	for _, p := range m.phils {
		if p.Phase() != core.Resting {
			return false
		}
	}
	return true
}

func (m *monitor) stop() {
	m.stopOnce.Do(func() { close(m.stopC) })
}
