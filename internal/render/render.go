// Package render turns status events into console output.
package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/wizardpb/diningphils/core"
)

// Console writes one line per status event, colour-coded by phase, plus
// a closing per-philosopher summary. It is safe for concurrent use:
// events arrive from every philosopher's goroutine.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	palette map[core.Phase]*color.Color
}

// NewConsole returns a console renderer writing to w. Pass colour=false
// for plain output (pipes, dumb terminals).
func NewConsole(w io.Writer, colour bool) *Console {
	palette := map[core.Phase]*color.Color{
		core.Thinking: color.New(color.FgCyan),
		core.Hungry:   color.New(color.FgYellow),
		core.Eating:   color.New(color.FgGreen),
		core.Resting:  color.New(color.FgMagenta),
	}
	for _, c := range palette {
		if colour {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &Console{w: w, palette: palette}
}

// Status implements core.StatusFunc.
func (c *Console) Status(st core.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf("%-12s %-8s", st.Name, st.Phase)
	if len(st.Holding) > 0 {
		line += fmt.Sprintf(" holding=%v", st.Holding)
	}
	if len(st.Requested) > 0 {
		line += fmt.Sprintf(" awaiting=%v", st.Requested)
	}
	if st.ServingsLeft >= 0 {
		line += fmt.Sprintf(" servings-left=%d", st.ServingsLeft)
	}
	c.palette[st.Phase].Fprintln(c.w, line)
}

// Summary prints the final meal counts.
func (c *Console) Summary(phils []core.Philosopher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, p := range phils {
		fmt.Fprintf(c.w, "%-12s ate %d times\n", p.Name(), p.Meals())
		total += p.Meals()
	}
	fmt.Fprintf(c.w, "total meals: %d\n", total)
}
