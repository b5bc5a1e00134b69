package core

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// DefaultNames seats the classic table. Seats past the end are named
// "Philosopher N".
var DefaultNames = []string{"Aristotle", "Kant", "Spinoza", "Marx", "Russell"}

// DurationRange bounds a randomised delay.
type DurationRange struct {
	Min time.Duration
	Max time.Duration
}

// Random picks a duration in [Min, Max) using rng, which must be owned
// by the caller.
func (r DurationRange) Random(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(int64(r.Max-r.Min)))
}

// Params configures a table of any discipline.
type Params struct {
	// Philosophers is the number of seats; at least two.
	Philosophers int
	// Servings is the size of the shared supply; negative means
	// unbounded.
	Servings int64
	// ThinkRange and EatRange bound the randomised thinking and eating
	// delays.
	ThinkRange DurationRange
	EatRange   DurationRange
	// Names overrides the default seat names. Missing entries fall back
	// to DefaultNames and then to numbered names.
	Names []string
}

// Validate reports the first problem with the parameters, if any.
func (p Params) Validate() error {
	if p.Philosophers < 2 {
		return errors.Errorf("a table needs at least 2 philosophers, got %d", p.Philosophers)
	}
	for _, r := range []DurationRange{p.ThinkRange, p.EatRange} {
		if r.Min < 0 {
			return errors.New("duration ranges must be non-negative")
		}
		if r.Max < r.Min {
			return errors.Errorf("duration range max %v below min %v", r.Max, r.Min)
		}
	}
	return nil
}

// Name returns the display name of seat i.
func (p Params) Name(i int) string {
	if i < len(p.Names) && p.Names[i] != "" {
		return p.Names[i]
	}
	if i < len(DefaultNames) {
		return DefaultNames[i]
	}
	return fmt.Sprintf("Philosopher %d", i)
}

// NewSupply builds the supply described by Servings.
func (p Params) NewSupply() *Supply {
	if p.Servings < 0 {
		return Unbounded()
	}
	return NewSupply(p.Servings)
}
