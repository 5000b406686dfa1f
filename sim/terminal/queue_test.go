package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskQueue_Pop_LowestPriorityThenInsertionOrder(t *testing.T) {
	var q taskQueue[string]
	q.push(3, "c")
	q.push(1, "a1")
	q.push(2, "b")
	q.push(1, "a2")
	q.push(1, "a3")

	var got []string
	for {
		_, task, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, task)
	}

	assert.Equal(t, []string{"a1", "a2", "a3", "b", "c"}, got)
}

func TestTaskQueue_Pop_EmptyReportsNotOK(t *testing.T) {
	var q taskQueue[int]
	_, _, ok := q.pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.len())
}

func TestTaskQueue_InterleavedPushPop_StaysStable(t *testing.T) {
	// GIVEN equal priorities pushed around a pop
	var q taskQueue[int]
	q.push(5, 1)
	q.push(5, 2)
	_, first, _ := q.pop()
	q.push(5, 3)
	q.push(4, 4)

	// THEN the more urgent task jumps ahead but equal priorities keep arrival order
	_, a, _ := q.pop()
	_, b, _ := q.pop()
	_, c, _ := q.pop()
	assert.Equal(t, []int{1, 4, 2, 3}, []int{first, a, b, c})
}

func TestLaneTable_LeastLoaded_TiesGoToFirstLane(t *testing.T) {
	lt := newLaneTable([]int{2, 1, 3})
	assert.Equal(t, 2, lt.leastLoaded())

	lt.push(2, 5)
	assert.Equal(t, 1, lt.leastLoaded())
	lt.push(1, 5)
	lt.push(3, 5)
	assert.Equal(t, 2, lt.leastLoaded())
}

func TestLaneTable_RemoveAndMin(t *testing.T) {
	tests := []struct {
		name    string
		queued  []int
		remove  int
		wantMin int
		wantOK  bool
	}{
		{name: "next most urgent", queued: []int{3, 1, 2}, remove: 1, wantMin: 2, wantOK: true},
		{name: "first duplicate only", queued: []int{2, 2}, remove: 2, wantMin: 2, wantOK: true},
		{name: "drained", queued: []int{4}, remove: 4, wantOK: false},
		{name: "absent priority", queued: []int{4}, remove: 9, wantMin: 4, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt := newLaneTable([]int{1})
			for _, p := range tt.queued {
				lt.push(1, p)
			}
			lt.remove(1, tt.remove)
			got, ok := lt.min(1)
			if ok != tt.wantOK || (ok && got != tt.wantMin) {
				t.Errorf("min after remove(%d) = (%d, %v), want (%d, %v)", tt.remove, got, ok, tt.wantMin, tt.wantOK)
			}
		})
	}
}

func TestLaneTable_DuplicateLanes_Collapsed(t *testing.T) {
	lt := newLaneTable([]int{1, 1, 2})
	assert.Equal(t, []int{1, 2}, lt.order)
	assert.Equal(t, "{1: [], 2: []}", lt.String())
}
