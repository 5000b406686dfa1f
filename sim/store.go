package sim

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned when a store or resource is created with capacity < 1.
var ErrInvalidCapacity = errors.New("capacity must be positive")

type putRequest[T any] struct {
	ev   *Event
	item T
}

type getRequest[T any] struct {
	ev     *Event
	filter func(T) bool
}

// Store is a bounded FIFO buffer. Put suspends the caller while the store is full,
// Get suspends it while the store is empty. Waiters of the same kind are served in
// arrival order, and every completed operation re-evaluates the other side.
type Store[T any] struct {
	sim      *Simulator
	name     string
	capacity int
	items    []T
	puts     []*putRequest[T]
	gets     []*getRequest[T]
}

// NewStore creates a store holding at most capacity items.
func NewStore[T any](s *Simulator, name string, capacity int) (*Store[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("store %s: %w (got %d)", name, ErrInvalidCapacity, capacity)
	}
	return &Store[T]{sim: s, name: name, capacity: capacity}, nil
}

// Name returns the store's name.
func (st *Store[T]) Name() string { return st.name }

// Capacity returns the maximum number of items the store holds.
func (st *Store[T]) Capacity() int { return st.capacity }

// Len returns the number of items currently held.
func (st *Store[T]) Len() int { return len(st.items) }

// Items returns a copy of the held items in arrival order.
func (st *Store[T]) Items() []T {
	return append([]T(nil), st.items...)
}

// Put returns an event that succeeds once item has been added to the store.
func (st *Store[T]) Put(item T) *Event {
	req := &putRequest[T]{ev: NewEvent(st.sim), item: item}
	st.puts = append(st.puts, req)
	st.settle()
	return req.ev
}

// Get returns an event that succeeds with the oldest item once one is available.
func (st *Store[T]) Get() *Event {
	return st.get(nil)
}

func (st *Store[T]) get(filter func(T) bool) *Event {
	req := &getRequest[T]{ev: NewEvent(st.sim), filter: filter}
	st.gets = append(st.gets, req)
	st.settle()
	return req.ev
}

// settle serves pending requests until neither side can make progress.
func (st *Store[T]) settle() {
	for {
		progressed := false
		for len(st.puts) > 0 && len(st.items) < st.capacity {
			req := st.puts[0]
			st.puts = st.puts[1:]
			st.items = append(st.items, req.item)
			_ = req.ev.Succeed(nil)
			progressed = true
		}

		remaining := st.gets[:0]
		for _, req := range st.gets {
			idx := st.match(req.filter)
			if idx < 0 {
				remaining = append(remaining, req)
				continue
			}
			item := st.items[idx]
			st.items = append(st.items[:idx], st.items[idx+1:]...)
			_ = req.ev.Succeed(item)
			progressed = true
		}
		for i := len(remaining); i < len(st.gets); i++ {
			st.gets[i] = nil
		}
		st.gets = remaining

		if !progressed {
			return
		}
	}
}

func (st *Store[T]) match(filter func(T) bool) int {
	for i, item := range st.items {
		if filter == nil || filter(item) {
			return i
		}
	}
	return -1
}

// FilterStore is a Store whose Get takes a predicate: it removes the first held item
// satisfying it, or keeps the caller suspended until such an item arrives.
type FilterStore[T any] struct {
	*Store[T]
}

// NewFilterStore creates a filtered store holding at most capacity items.
func NewFilterStore[T any](s *Simulator, name string, capacity int) (*FilterStore[T], error) {
	st, err := NewStore[T](s, name, capacity)
	if err != nil {
		return nil, err
	}
	return &FilterStore[T]{Store: st}, nil
}

// Get returns an event that succeeds with the first item for which filter returns true.
// A nil filter matches any item.
func (fs *FilterStore[T]) Get(filter func(T) bool) *Event {
	return fs.get(filter)
}

// Take waits on a store event and returns the item it resolved with.
func Take[T any](p *Process, ev *Event) (T, error) {
	v, err := p.Wait(ev)
	if err != nil {
		var zero T
		return zero, err
	}
	item, _ := v.(T)
	return item, nil
}
