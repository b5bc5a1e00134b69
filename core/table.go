package core

// Philosopher is one seated process, whatever its synchronisation
// discipline. Phase and Meals are safe to call from any goroutine while
// the table runs.
type Philosopher interface {
	ID() int
	Name() string
	Phase() Phase
	Meals() int
}

// Table runs one simulation.
type Table interface {
	// Start seats every philosopher and begins the run. Calling it more
	// than once is a no-op.
	Start()
	// Stop asks every philosopher to shut down. It is safe to call
	// repeatedly and concurrently with a natural finish.
	Stop()
	// Wait blocks until every philosopher has exited its loop.
	Wait() error
	// Philosophers returns the seats in ring order.
	Philosophers() []Philosopher
}
