package prioq

import "container/heap"

// heapEntries is a min-heap on (prio, seq).
type heapEntries[T any] []entry[T]

func (h heapEntries[T]) Len() int { return len(h) }
func (h heapEntries[T]) Less(i, j int) bool {
	if h[i].prio != h[j].prio {
		return h[i].prio < h[j].prio
	}
	return h[i].seq < h[j].seq
}
func (h heapEntries[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapEntries[T]) Push(x any) {
	*h = append(*h, x.(entry[T]))
}

func (h *heapEntries[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry[T]{}
	*h = old[:n-1]
	return e
}

// heapQueue is the O(log n) alternative to sortedQueue.
// The arrival sequence in the heap key keeps it stable.
type heapQueue[T any] struct {
	h        heapEntries[T]
	capacity int
}

func newHeapQueue[T any](capacity int) *heapQueue[T] {
	q := &heapQueue[T]{capacity: capacity}
	q.h = make(heapEntries[T], 0, capacity) // preallocate
	heap.Init(&q.h)
	return q
}

func (q *heapQueue[T]) Len() int { return q.h.Len() }

func (q *heapQueue[T]) Push(v T, prio Priority, seq uint64) bool {
	if q.h.Len() >= q.capacity {
		return false
	}
	heap.Push(&q.h, entry[T]{val: v, prio: prio, seq: seq})
	return true
}

func (q *heapQueue[T]) Pop() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	e := heap.Pop(&q.h).(entry[T])
	return e.val, true
}
