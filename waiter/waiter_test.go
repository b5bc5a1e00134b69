package waiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardpb/diningphils/core"
)

func testParams(n int, servings int64) core.Params {
	return core.Params{
		Philosophers: n,
		Servings:     servings,
		ThinkRange:   core.DurationRange{Min: time.Microsecond, Max: 50 * time.Microsecond},
		EatRange:     core.DurationRange{Min: time.Microsecond, Max: 50 * time.Microsecond},
	}
}

// forkClaims detects overlapping fork use from the status stream:
// eating claims both forks, the eater's next event releases them. A
// double claim means the waiter allocated one fork twice.
type forkClaims struct {
	mu     sync.Mutex
	byFork map[int]int // fork id -> eater
	byPhil map[int][]int
}

func newForkClaims() *forkClaims {
	return &forkClaims{byFork: make(map[int]int), byPhil: make(map[int][]int)}
}

func (c *forkClaims) observe(t *testing.T, st core.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.byPhil[st.ID] {
		delete(c.byFork, f)
	}
	delete(c.byPhil, st.ID)
	if st.Phase != core.Eating {
		return
	}
	for _, f := range st.Holding {
		if eater, taken := c.byFork[f]; taken {
			assert.Failf(t, "fork allocated twice", "fork %d held by %d and %d", f, eater, st.ID)
			continue
		}
		c.byFork[f] = st.ID
		c.byPhil[st.ID] = append(c.byPhil[st.ID], f)
	}
}

func TestRunToCompletion(t *testing.T) {
	claims := newForkClaims()
	sink := func(st core.Status) { claims.observe(t, st) }

	tbl, err := NewTable(testParams(5, 10), WithStatusFunc(sink), WithSeed(23))
	require.NoError(t, err)

	tbl.Start()
	require.NoError(t, tbl.Wait())

	total := 0
	for _, p := range tbl.philosophers {
		require.Equal(t, core.Resting, p.Phase())
		total += p.Meals()
	}
	require.Equal(t, 10, total)
}

func TestArbiterGrantsOnlyFreeForks(t *testing.T) {
	w := &arbiter{free: make([]bool, 5), l: discardLogger()}
	for i := range w.free {
		w.free[i] = true
	}

	g0 := make(chan struct{})
	require.True(t, w.tryGrant(request{phil: 0, kind: reqAcquire, grant: g0}))
	select {
	case <-g0:
	default:
		t.Fatal("grant channel not closed")
	}

	// Philosopher 1 shares fork 1 with philosopher 0 and must queue.
	g1 := make(chan struct{})
	w.handle(request{phil: 1, kind: reqAcquire, grant: g1})
	require.Len(t, w.queue, 1)

	// Philosopher 2 shares nothing with 0 and is seated immediately.
	g2 := make(chan struct{})
	require.True(t, w.tryGrant(request{phil: 2, kind: reqAcquire, grant: g2}))

	// Returning 0's forks seats the queued philosopher 1... except fork
	// 2 is still with philosopher 2.
	w.handle(request{phil: 0, kind: reqRelease})
	require.Len(t, w.queue, 1)

	w.handle(request{phil: 2, kind: reqRelease})
	require.Empty(t, w.queue)
	select {
	case <-g1:
	default:
		t.Fatal("queued philosopher never seated")
	}
}

func TestStopInterruptsUnboundedRun(t *testing.T) {
	tbl, err := NewTable(testParams(3, -1), WithSeed(5))
	require.NoError(t, err)
	tbl.Start()

	require.Eventually(t, func() bool {
		total := 0
		for _, p := range tbl.philosophers {
			total += p.Meals()
		}
		return total >= 3
	}, 10*time.Second, time.Millisecond)

	tbl.Stop()
	require.NoError(t, tbl.Wait())
	tbl.Stop() // idempotent
}
