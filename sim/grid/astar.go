package grid

import "container/heap"

// astarNode for priority queue.
type astarNode struct {
	p      Point
	g      int // Cost so far
	f      int // g + h
	seq    int // Insertion order, breaks f ties
	parent *astarNode
}

// astarHeap implements heap.Interface.
type astarHeap []*astarNode

func (h astarHeap) Len() int { return len(h) }
func (h astarHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h astarHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *astarHeap) Push(x any)   { *h = append(*h, x.(*astarNode)) }
func (h *astarHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// manhattan is the search heuristic; only axis-aligned moves exist.
func manhattan(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// astar searches from start to goal. cost returns the price of entering a point.
// An unreachable goal yields a nil path and UnreachableCost.
func astar(start, goal Point, cost func(Point) int) ([]Point, int) {
	open := &astarHeap{}
	heap.Init(open)
	best := map[Point]int{start: 0}
	closed := make(map[Point]bool)
	seq := 0
	heap.Push(open, &astarNode{p: start, g: 0, f: manhattan(start, goal), seq: seq})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*astarNode)
		if closed[cur.p] {
			continue
		}
		if cur.p == goal {
			var path []Point
			for n := cur; n != nil; n = n.parent {
				path = append(path, n.p)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path, cur.g
		}
		closed[cur.p] = true

		for _, nb := range Neighbours(cur.p) {
			if closed[nb] {
				continue
			}
			g := cur.g + cost(nb)
			if prev, seen := best[nb]; seen && g >= prev {
				continue
			}
			best[nb] = g
			seq++
			heap.Push(open, &astarNode{p: nb, g: g, f: g + manhattan(nb, goal), seq: seq, parent: cur})
		}
	}
	return nil, UnreachableCost
}
