package prioq

// entry is a queued value together with its ordering key.
// seq is the arrival sequence assigned by the core and breaks
// priority ties in submission order.
type entry[T any] struct {
	val  T
	prio Priority
	seq  uint64
}

// schedQueue is the container contract the core relies on.
//
// Implementations are NOT safe for concurrent use; the core
// serializes every call under its own mutex. Pop must return the
// entry with the lowest priority ordinal and, among equals, the
// earliest seq.
type schedQueue[T any] interface {
	// Push inserts v and reports false when the container is full.
	Push(v T, prio Priority, seq uint64) bool

	// Pop removes the next entry in dispatch order.
	Pop() (T, bool)

	Len() int
}

// sortedQueue is a fixed-capacity ring buffer kept in dispatch order.
//
// Push appends at the tail and sifts the new entry left past every
// entry with a strictly greater ordinal, so equal priorities keep
// their arrival order. Pop takes the head in O(1).
type sortedQueue[T any] struct {
	buf      []entry[T]
	head     int
	size     int
	capacity int
}

func newSortedQueue[T any](capacity int) *sortedQueue[T] {
	return &sortedQueue[T]{
		buf:      make([]entry[T], capacity),
		capacity: capacity,
	}
}

// slot maps a logical position (0 = head) to a buffer index.
func (q *sortedQueue[T]) slot(i int) int {
	idx := q.head + i
	if idx >= q.capacity {
		idx -= q.capacity
	}
	return idx
}

func (q *sortedQueue[T]) Len() int { return q.size }

func (q *sortedQueue[T]) Push(v T, prio Priority, seq uint64) bool {
	if q.size == q.capacity {
		return false
	}
	q.buf[q.slot(q.size)] = entry[T]{val: v, prio: prio, seq: seq}
	q.size++

	for i := q.size - 1; i > 0; i-- {
		cur, prev := q.slot(i), q.slot(i-1)
		if q.buf[cur].prio >= q.buf[prev].prio {
			break
		}
		q.buf[cur], q.buf[prev] = q.buf[prev], q.buf[cur]
	}
	return true
}

func (q *sortedQueue[T]) Pop() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = entry[T]{} // drop references held by the payload
	q.head++
	if q.head == q.capacity {
		q.head = 0
	}
	q.size--
	return e.val, true
}
