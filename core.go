package prioq

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Core is the bounded, thread-safe priority queue shared by every
// connection (producers) and the single Dispatcher (consumer).
//
// Enqueue and Dequeue never block on queue state: a full queue
// rejects, an empty queue reports false. Both hold the mutex only
// for the structural change; no I/O happens under it.
type Core struct {
	mu     sync.Mutex
	q      schedQueue[Request]
	seq    uint64
	closed bool

	capacity int
	ready    chan struct{}
	metrics  MetricsPolicy
}

// NewCore builds an empty core. A nil m disables metrics.
func NewCore(opts Options, m MetricsPolicy) *Core {
	opts.FillDefaults()
	if m == nil {
		m = NoopMetrics{}
	}
	c := &Core{
		capacity: opts.Capacity,
		ready:    make(chan struct{}, 1),
		metrics:  m,
	}
	c.q = c.makeQueue(opts.QT)
	return c
}

func (c *Core) makeQueue(qt QueueType) schedQueue[Request] {
	switch qt {
	case HeapQueue:
		return newHeapQueue[Request](c.capacity)
	default:
		return newSortedQueue[Request](c.capacity)
	}
}

// Enqueue inserts r behind every pending request of equal or higher
// urgency. It returns ErrQueueFull at capacity and ErrClosed after
// Close; in both cases r is dropped.
//
// An empty r.ID is replaced with a fresh UUID.
func (c *Core) Enqueue(r Request) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.EnqueuedAt = time.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.seq++
	if !c.q.Push(r, r.Priority, c.seq) {
		c.mu.Unlock()
		c.metrics.IncRejected()
		return ErrQueueFull
	}
	n := c.q.Len()
	c.mu.Unlock()

	c.metrics.IncAccepted()
	c.metrics.SetQueued(n)
	c.signal()
	return nil
}

// Dequeue removes the most urgent, earliest-arrived request.
// It reports false when nothing is pending.
func (c *Core) Dequeue() (Request, bool) {
	c.mu.Lock()
	r, ok := c.q.Pop()
	n := c.q.Len()
	c.mu.Unlock()

	if ok {
		c.metrics.SetQueued(n)
	}
	return r, ok
}

// Len returns the current occupancy. Diagnostics only.
func (c *Core) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Len()
}

// Cap returns the configured capacity.
func (c *Core) Cap() int { return c.capacity }

// Ready is signalled after every accepted Enqueue. It holds at most
// one pending signal, so a consumer must drain the queue after each
// wake-up rather than count signals.
func (c *Core) Ready() <-chan struct{} { return c.ready }

func (c *Core) signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Close makes every later Enqueue fail with ErrClosed.
// Pending requests stay queued until dequeued or drained.
func (c *Core) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.signal()
}

// Closed reports whether Close has been called.
func (c *Core) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Drain removes every pending request and returns them in dispatch order.
func (c *Core) Drain() []Request {
	c.mu.Lock()
	out := make([]Request, 0, c.q.Len())
	for {
		r, ok := c.q.Pop()
		if !ok {
			break
		}
		out = append(out, r)
	}
	c.mu.Unlock()

	c.metrics.SetQueued(0)
	return out
}
