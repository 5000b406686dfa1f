package sim

import "container/heap"

// scheduled is one entry of the event queue.
type scheduled struct {
	time     float64
	priority Priority
	id       uint64
	event    *Event
}

// EventHeap implements a priority queue with deterministic ordering
// Ordering: time → priority class → event ID
type EventHeap struct {
	entries []*scheduled
}

// NewEventHeap creates a new event heap
func NewEventHeap() *EventHeap {
	h := &EventHeap{
		entries: make([]*scheduled, 0),
	}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *EventHeap) Len() int {
	return len(h.entries)
}

// Less implements heap.Interface with deterministic ordering
func (h *EventHeap) Less(i, j int) bool {
	ei, ej := h.entries[i], h.entries[j]

	// Primary: time (earlier first)
	if ei.time != ej.time {
		return ei.time < ej.time
	}

	// Secondary: priority class (Urgent before Normal)
	if ei.priority != ej.priority {
		return ei.priority < ej.priority
	}

	// Tertiary: event ID (insertion order)
	return ei.id < ej.id
}

// Swap implements heap.Interface
func (h *EventHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

// Push implements heap.Interface
func (h *EventHeap) Push(x interface{}) {
	h.entries = append(h.entries, x.(*scheduled))
}

// Pop implements heap.Interface
func (h *EventHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.entries = old[0 : n-1]
	return item
}

// Schedule adds an entry to the heap
func (h *EventHeap) Schedule(e *scheduled) {
	heap.Push(h, e)
}

// PopNext removes and returns the next entry
func (h *EventHeap) PopNext() *scheduled {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*scheduled)
}

// Peek returns the next entry without removing it
func (h *EventHeap) Peek() *scheduled {
	if h.Len() == 0 {
		return nil
	}
	return h.entries[0]
}
