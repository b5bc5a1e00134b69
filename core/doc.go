// Package core holds the model shared by every dining discipline: the
// philosopher phase machine, the shared supply of servings, run
// parameters, and the status sink consumed by renderers.
//
// The concrete disciplines live in sibling packages (chandymisra,
// reshier, waiter); each implements Table and seats philosophers that
// implement Philosopher, so callers can swap the synchronisation
// strategy without touching anything else.
package core
