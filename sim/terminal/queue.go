package terminal

import (
	"container/heap"
	"fmt"
	"math"
	"strings"
)

// queued is one entry of a facility's task queue.
type queued[T any] struct {
	priority int
	seq      uint64
	task     T
}

type queueHeap[T any] []*queued[T]

func (h queueHeap[T]) Len() int { return len(h) }

func (h queueHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h queueHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *queueHeap[T]) Push(x any) { *h = append(*h, x.(*queued[T])) }

func (h *queueHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// taskQueue is a facility's priority queue of sub-tasks: lowest priority number
// first, insertion order among equal priorities.
type taskQueue[T any] struct {
	items   queueHeap[T]
	nextSeq uint64
}

// push inserts task and returns its insertion sequence.
func (q *taskQueue[T]) push(priority int, task T) uint64 {
	seq := q.nextSeq
	q.nextSeq++
	heap.Push(&q.items, &queued[T]{priority: priority, seq: seq, task: task})
	return seq
}

// pop removes the most urgent task. ok is false when the queue is empty.
func (q *taskQueue[T]) pop() (priority int, task T, ok bool) {
	if len(q.items) == 0 {
		return 0, task, false
	}
	item := heap.Pop(&q.items).(*queued[T])
	return item.priority, item.task, true
}

func (q *taskQueue[T]) len() int { return len(q.items) }

// find returns the first queued task matching pred, in heap order.
func (q *taskQueue[T]) find(pred func(T) bool) (T, bool) {
	for _, item := range q.items {
		if pred(item.task) {
			return item.task, true
		}
	}
	var zero T
	return zero, false
}

// laneTable tracks the priorities queued on each lane of a facility.
type laneTable struct {
	order  []int
	queues map[int][]int
}

func newLaneTable(lanes []int) *laneTable {
	t := &laneTable{queues: make(map[int][]int, len(lanes))}
	for _, lane := range lanes {
		if _, ok := t.queues[lane]; ok {
			continue
		}
		t.order = append(t.order, lane)
		t.queues[lane] = nil
	}
	return t
}

// leastLoaded returns the lane with the fewest queued priorities. Ties go to the
// lane listed first.
func (t *laneTable) leastLoaded() int {
	best, bestLen := 0, math.MaxInt
	for _, lane := range t.order {
		if n := len(t.queues[lane]); n < bestLen {
			best, bestLen = lane, n
		}
	}
	return best
}

func (t *laneTable) has(lane int) bool {
	_, ok := t.queues[lane]
	return ok
}

func (t *laneTable) push(lane, priority int) {
	t.queues[lane] = append(t.queues[lane], priority)
}

// remove drops the first occurrence of priority from lane.
func (t *laneTable) remove(lane, priority int) bool {
	q := t.queues[lane]
	for i, p := range q {
		if p == priority {
			t.queues[lane] = append(q[:i], q[i+1:]...)
			return true
		}
	}
	return false
}

// min returns the most urgent priority still queued on lane.
func (t *laneTable) min(lane int) (int, bool) {
	q := t.queues[lane]
	if len(q) == 0 {
		return 0, false
	}
	m := q[0]
	for _, p := range q[1:] {
		if p < m {
			m = p
		}
	}
	return m, true
}

func (t *laneTable) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, lane := range t.order {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: %v", lane, t.queues[lane])
	}
	b.WriteByte('}')
	return b.String()
}
