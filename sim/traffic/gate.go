package traffic

import (
	"context"
	"sync"

	"github.com/easyterm/easyterm/sim/grid"
)

// Gate holds, per cell, the highest task priority currently allowed to finish a
// handoff there. Waiters are woken on every update.
//
// Thread-safety: safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	values  map[grid.Cell]int
	changed chan struct{}
}

// NewGate creates a gate with no cell set.
func NewGate() *Gate {
	return &Gate{values: make(map[grid.Cell]int), changed: make(chan struct{})}
}

// Set publishes priority for cell and wakes every waiter.
func (g *Gate) Set(cell grid.Cell, priority int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[cell] = priority
	close(g.changed)
	g.changed = make(chan struct{})
}

// Get returns the value published for cell.
func (g *Gate) Get(cell grid.Cell) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.values[cell]
	return v, ok
}

// Admits reports whether a task with priority may finish at cell now.
// A cell that was never published admits nobody.
func (g *Gate) Admits(cell grid.Cell, priority int) bool {
	v, ok := g.Get(cell)
	return ok && priority <= v
}

// Wait blocks until cell admits priority or ctx ends.
func (g *Gate) Wait(ctx context.Context, cell grid.Cell, priority int) error {
	for {
		g.mu.Lock()
		v, ok := g.values[cell]
		changed := g.changed
		g.mu.Unlock()
		if ok && priority <= v {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns a copy of every published value.
func (g *Gate) Snapshot() map[grid.Cell]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[grid.Cell]int, len(g.values))
	for k, v := range g.values {
		out[k] = v
	}
	return out
}
