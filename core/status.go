package core

// Status is the tuple reported on every phase transition. Holding and
// Requested carry fork ids; ServingsLeft is -1 for an unbounded supply.
type Status struct {
	ID           int
	Name         string
	Phase        Phase
	Holding      []int
	Requested    []int
	ServingsLeft int64
	// Meals counts the servings this philosopher has taken so far.
	Meals int
}

// StatusFunc consumes Status tuples. It is called synchronously from
// the transitioning philosopher's own goroutine, so implementations
// must be safe for concurrent use across philosophers and should
// return quickly.
type StatusFunc func(Status)
