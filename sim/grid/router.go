package grid

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Path is an ordered list of cells an AGV drives through.
type Path []Cell

// Split returns the index of the first cell on the buffer lane, or -1.
func (p Path) Split() int {
	for i, c := range p {
		if c.InBufferLane() {
			return i
		}
	}
	return -1
}

// Last returns the final cell, or 0 for an empty path.
func (p Path) Last() Cell {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// Ints returns the path as plain integers, for the wire.
func (p Path) Ints() []int {
	out := make([]int, len(p))
	for i, c := range p {
		out[i] = int(c)
	}
	return out
}

// Router plans routes on the lane grid around a dynamic set of barriers.
// A barrier may be set more than once; each RemoveBarrier lifts one instance.
//
// Thread-safety: safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	barriers map[Point]int
	epoch    uint64
}

// NewRouter creates a router with no barriers.
func NewRouter() *Router {
	return &Router{barriers: make(map[Point]int)}
}

// SetBarrier makes c expensive to enter.
func (r *Router) SetBarrier(c Cell) error {
	if !c.Valid() {
		return fmt.Errorf("set barrier %d: %w", c, ErrInvalidCell)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.barriers[c.XY()]++
	r.epoch++
	logrus.Debugf("grid: barrier set on %d (epoch %d)", c, r.epoch)
	return nil
}

// RemoveBarrier lifts one barrier instance from c. It reports false when c was not barred.
func (r *Router) RemoveBarrier(c Cell) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := c.XY()
	n, ok := r.barriers[p]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(r.barriers, p)
	} else {
		r.barriers[p] = n - 1
	}
	r.epoch++
	logrus.Debugf("grid: barrier removed from %d (epoch %d)", c, r.epoch)
	return true
}

// Barred reports whether c currently carries a barrier.
func (r *Router) Barred(c Cell) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.barriers[c.XY()] > 0
}

// Barriers returns the barred cells in ascending order, one entry per instance.
func (r *Router) Barriers() []Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Cell
	for p, n := range r.barriers {
		for i := 0; i < n; i++ {
			out = append(out, p.Cell())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Epoch increases on every barrier change.
func (r *Router) Epoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// Free returns the first buffer-lane cell without a barrier. The last cell of the
// lane is never handed out.
func (r *Router) Free() (Cell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := Cell(Width*BufferLane + 1); c < Cell(Width*(BufferLane+1)); c++ {
		if r.barriers[c.XY()] == 0 {
			return c, nil
		}
	}
	return 0, ErrNoFreeCell
}

// Search runs A* between two lane points and returns the raw point sequence and
// its cost.
func (r *Router) Search(start, goal Point) ([]Point, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.search(start, goal)
}

func (r *Router) search(start, goal Point) ([]Point, int) {
	return astar(start, goal, func(p Point) int {
		if r.barriers[p] > 0 {
			return BarrierCost
		}
		return 1
	})
}

// Route plans a path from start to end. Quay-side and boundary-row endpoints are
// reached through two-cell stubs around the searched lanes; a quay stub is cut short
// at the edge of its row. The result drops every
// waypoint at which the path turns by a right angle.
func (r *Router) Route(start, end Cell) (Path, int, error) {
	path, cost, _, err := r.route(start, end)
	return path, cost, err
}

func (r *Router) route(start, end Cell) (Path, int, uint64, error) {
	if !start.Valid() || !end.Valid() {
		return nil, UnreachableCost, 0, fmt.Errorf("route %d->%d: %w", start, end, ErrInvalidCell)
	}

	searchStart, searchEnd := start, end
	var head, tail Path
	if start.InQuayBand() {
		searchStart = max(start-2, start.rowFirst())
		for c := start; c > searchStart; c-- {
			head = append(head, c)
		}
	}
	if start.OnBoundary() {
		searchStart = start - 2*Width
		head = Path{start, start - Width}
	}
	if end.InQuayBand() {
		searchEnd = min(end+2, end.rowFirst()+Width-1)
		for c := searchEnd - 1; c >= end; c-- {
			tail = append(tail, c)
		}
	}
	if end.OnBoundary() {
		searchEnd = end - 2*Width
		tail = Path{end - Width, end}
	}
	if !searchStart.Searchable() || !searchEnd.Searchable() {
		return nil, UnreachableCost, 0, fmt.Errorf("route %d->%d via %d->%d: %w", start, end, searchStart, searchEnd, ErrInvalidCell)
	}

	r.mu.RLock()
	raw, cost := r.search(searchStart.XY(), searchEnd.XY())
	epoch := r.epoch
	r.mu.RUnlock()

	if len(raw) == 0 {
		return nil, cost, epoch, fmt.Errorf("route %d->%d: %w", start, end, ErrNoRoute)
	}

	full := make(Path, 0, len(head)+len(raw)+len(tail))
	full = append(full, head...)
	for _, p := range raw {
		full = append(full, p.Cell())
	}
	full = append(full, tail...)
	return pruneTurns(full), cost, epoch, nil
}

// pruneTurns removes, by first occurrence, every middle cell B of a triple A, B, C
// whose steps A->B and B->C have a zero dot product.
func pruneTurns(path Path) Path {
	var turns []Cell
	for i := 0; i+2 < len(path); i++ {
		a, b, c := path[i].XY(), path[i+1].XY(), path[i+2].XY()
		dot := (b.X-a.X)*(c.X-b.X) + (b.Y-a.Y)*(c.Y-b.Y)
		if dot == 0 {
			turns = append(turns, path[i+1])
		}
	}
	out := append(Path(nil), path...)
	for _, t := range turns {
		for i, c := range out {
			if c == t {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
	}
	return out
}
