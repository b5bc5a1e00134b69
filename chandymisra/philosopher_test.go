package chandymisra

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/wizardpb/diningphils/core"
)

// TestRunToCompletion runs five philosophers through ten servings with
// the canonical seeding. The status sink checks the mutual-exclusion
// and dirty-bit laws at the instant each meal starts, from the eater's
// own goroutine.
func TestRunToCompletion(t *testing.T) {
	var (
		tbl *Table
		mu  sync.Mutex
	)
	mealsByPhil := make(map[int]int)

	sink := func(st core.Status) {
		if st.Phase != core.Eating {
			return
		}
		p := tbl.philosophers[st.ID]
		for s := left; s <= right; s++ {
			f := p.forks[s]
			assert.True(t, f.ownedBy(st.ID), "%s eating without fork %d", st.Name, f.id)
			assert.True(t, f.isDirty(), "fork %d clean at meal start", f.id)
		}
		assert.Len(t, st.Holding, 2, "%s eating with %v", st.Name, st.Holding)
		mu.Lock()
		mealsByPhil[st.ID]++
		mu.Unlock()
	}

	var err error
	tbl, err = NewTable(testParams(5, 10),
		WithStatusFunc(sink),
		WithSeed(42),
		WithPollInterval(time.Millisecond),
	)
	require.NoError(t, err)

	tbl.Start()
	require.NoError(t, tbl.Wait())

	total := 0
	for _, p := range tbl.philosophers {
		require.Equal(t, core.Resting, p.Phase(), "%s still %s", p.name, p.Phase())
		total += p.Meals()
	}
	require.Equal(t, 10, total, "servings must be conserved")

	mu.Lock()
	defer mu.Unlock()
	observed := 0
	for _, n := range mealsByPhil {
		observed += n
	}
	require.Equal(t, 10, observed)
}

func TestStopUnblocksUnboundedRun(t *testing.T) {
	tbl, err := NewTable(testParams(3, -1),
		WithSeed(7),
		WithPollInterval(time.Millisecond),
	)
	require.NoError(t, err)
	tbl.Start()

	// Let the ring make some progress first.
	require.Eventually(t, func() bool {
		total := 0
		for _, p := range tbl.philosophers {
			total += p.Meals()
		}
		return total >= 3
	}, 10*time.Second, time.Millisecond)

	tbl.Stop()
	require.NoError(t, tbl.Wait())

	// Nobody eats after the loops have exited.
	total := 0
	for _, p := range tbl.philosophers {
		total += p.Meals()
	}
	time.Sleep(10 * time.Millisecond)
	after := 0
	for _, p := range tbl.philosophers {
		after += p.Meals()
	}
	require.Equal(t, total, after)
}

// TestDeferredTimersFireOnClock pins the timer machinery to an injected
// clock: with hour-long thinking delays and an empty supply, nothing
// happens until the fake clock moves, and once it does every
// philosopher goes hungry, finds no food, and the monitor ends the run.
func TestDeferredTimersFireOnClock(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	params := core.Params{
		Philosophers: 2,
		Servings:     0,
		ThinkRange:   core.DurationRange{Min: time.Hour, Max: time.Hour},
		EatRange:     core.DurationRange{Min: time.Hour, Max: time.Hour},
	}
	tbl, err := NewTable(params, WithClock(fc))
	require.NoError(t, err)
	tbl.Start()

	for _, p := range tbl.philosophers {
		require.Equal(t, core.Thinking, p.Phase())
	}

	done := make(chan error, 1)
	go func() { done <- tbl.Wait() }()

	// Step until the think timers (armed asynchronously at loop start)
	// and the monitor's ticker have all fired.
	var waitErr error
	require.Eventually(t, func() bool {
		fc.Step(2 * time.Hour)
		select {
		case waitErr = <-done:
			return true
		default:
			return false
		}
	}, 10*time.Second, time.Millisecond)
	require.NoError(t, waitErr)

	for _, p := range tbl.philosophers {
		require.Equal(t, core.Resting, p.Phase())
		require.Zero(t, p.Meals())
	}
}

func TestGrantProtocolViolationsPanic(t *testing.T) {
	tbl, err := NewTable(testParams(2, 1))
	require.NoError(t, err)

	// A dirty fork must never travel: philosopher 1 holds neither fork,
	// and its left fork is still dirty from seeding, so this grant came
	// from a granter that forgot to wipe it.
	p := tbl.philosophers[1]
	require.Panics(t, func() {
		p.handle(message{kind: msgGrant, fork: p.forks[left].id})
	})

	// A grant for a fork the receiver already holds is equally broken,
	// clean or not.
	p0 := tbl.philosophers[0]
	f := p0.forks[right]
	f.markClean()
	require.Panics(t, func() {
		p0.handle(message{kind: msgGrant, fork: f.id})
	})
}

// TestGrantInFlightDoesNotConferOwnership drives one philosopher by
// hand through the window where a neighbour's grant has been sent but
// not yet applied. Possession changes only when the grant is applied,
// so handling an unrelated request inside that window must not let the
// philosopher eat with the travelling fork.
func TestGrantInFlightDoesNotConferOwnership(t *testing.T) {
	tbl, err := NewTable(testParams(5, 1))
	require.NoError(t, err)

	p := tbl.philosophers[1] // holds neither fork at seeding
	leftFork, rightFork := p.forks[left], p.forks[right]

	p.handle(message{kind: msgBecomeHungry})
	require.Equal(t, core.Hungry, p.Phase())

	// The right neighbour surrenders its fork.
	rightFork.markClean()
	p.handle(message{kind: msgGrant, fork: rightFork.id})
	require.True(t, p.owned[right])

	// The left neighbour has surrendered too, but its grant is still on
	// the link: the fork is clean and no longer the neighbour's, yet not
	// p's either.
	leftFork.markClean()

	// A request arriving inside that window must not trigger a meal: p
	// holds one clean fork and the other is still travelling.
	p.handle(message{kind: msgRequest, fork: rightFork.id})
	require.Equal(t, core.Hungry, p.Phase())
	require.Zero(t, p.Meals())
	require.False(t, p.owned[left])
	require.False(t, rightFork.isDirty(), "held fork dirtied without a meal")

	// Applying the delayed grant completes the pair and the meal starts.
	p.handle(message{kind: msgGrant, fork: leftFork.id})
	require.Equal(t, core.Eating, p.Phase())
	require.Equal(t, 1, p.Meals())
	require.True(t, leftFork.isDirty())
	require.True(t, rightFork.isDirty())
	p.cancelTimer()
}

func TestDuplicateRequestPanics(t *testing.T) {
	tbl, err := NewTable(testParams(2, 1))
	require.NoError(t, err)

	// Philosopher 1 starts holding both request tokens; a request from a
	// neighbour that cannot hold the token is a protocol breach.
	p := tbl.philosophers[1]
	require.Panics(t, func() {
		p.handle(message{kind: msgRequest, fork: p.forks[left].id})
	})
}

func TestMessageAboutForeignForkPanics(t *testing.T) {
	tbl, err := NewTable(testParams(5, 1))
	require.NoError(t, err)
	p := tbl.philosophers[0]
	require.Panics(t, func() {
		p.handle(message{kind: msgRequest, fork: 3})
	})
}
