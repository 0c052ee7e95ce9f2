package pool

import (
	"container/heap"
	"math"
)

// BoundedQueue keeps the k lowest-priority items seen across a stream of
// Push calls, used by the k-nearest neighbor finder to accumulate the k
// closest periodic images without sorting the whole candidate set.
// Grounded in gofem's preference for small hand-rolled containers (its
// la.Triplet sparse assembly) built directly on container/heap, the same
// way katalvlaran-lvlath's dijkstra package does for its frontier.
type BoundedQueue struct {
	k     int
	items pqItems
}

// Item is one (index, priority) entry; lower priority sorts first and is
// evicted last.
type Item struct {
	Index    int
	Priority float64
}

type pqItems []Item

func (p pqItems) Len() int { return len(p) }
func (p pqItems) Less(i, j int) bool {
	// max-heap on Priority: the root is the worst (largest) of the k kept
	// so far, ready to be evicted when something better arrives.
	return p[i].Priority > p[j].Priority
}
func (p pqItems) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p *pqItems) Push(x interface{}) { *p = append(*p, x.(Item)) }
func (p *pqItems) Pop() interface{} {
	old := *p
	n := len(old)
	it := old[n-1]
	*p = old[:n-1]
	return it
}

// NewBoundedQueue returns a queue that retains at most k items.
func NewBoundedQueue(k int) *BoundedQueue {
	return &BoundedQueue{k: k}
}

// Push offers a candidate; if the queue is full and this candidate is worse
// than the current worst kept item, it is discarded.
func (q *BoundedQueue) Push(index int, priority float64) {
	if q.k <= 0 {
		return
	}
	if len(q.items) < q.k {
		heap.Push(&q.items, Item{Index: index, Priority: priority})
		return
	}
	if priority < q.items[0].Priority {
		q.items[0] = Item{Index: index, Priority: priority}
		heap.Fix(&q.items, 0)
	}
}

// Len returns the number of items currently kept.
func (q *BoundedQueue) Len() int { return len(q.items) }

// Full reports whether the queue has reached its capacity k.
func (q *BoundedQueue) Full() bool { return len(q.items) >= q.k }

// Worst returns the priority of the currently-worst kept item (the one that
// would be evicted next), or +Inf if the queue is not yet full.
func (q *BoundedQueue) Worst() float64 {
	if !q.Full() {
		return math.Inf(1)
	}
	return q.items[0].Priority
}

// Sorted returns the queue's items in ascending-priority order, leaving the
// queue itself unchanged.
func (q *BoundedQueue) Sorted() []Item {
	out := make([]Item, len(q.items))
	cp := make(pqItems, len(q.items))
	copy(cp, q.items)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&cp).(Item)
	}
	return out
}
