package prioq

import (
	"fmt"
	"sync/atomic"
)

// MetricsPolicy defines hooks used by the core and the dispatcher to
// report queueing and execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {
	// IncAccepted counts a request admitted by Enqueue.
	IncAccepted()

	// IncRejected counts a request refused with ErrQueueFull.
	IncRejected()

	// IncExecuted counts a request run through the executor.
	IncExecuted()

	// IncDeliveryFailed counts a response its target refused.
	IncDeliveryFailed()

	// IncAbandoned counts a request dropped at shutdown.
	IncAbandoned()

	// SetQueued records the current queue occupancy.
	SetQueued(n int)
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	accepted atomic.Uint64
	rejected atomic.Uint64

	_ [48]byte // padding to avoid false sharing between producers and the worker

	executed       atomic.Uint64
	deliveryFailed atomic.Uint64
	abandoned      atomic.Uint64
	queued         atomic.Int64
}

func (m *AtomicMetrics) IncAccepted()       { m.accepted.Add(1) }
func (m *AtomicMetrics) IncRejected()       { m.rejected.Add(1) }
func (m *AtomicMetrics) IncExecuted()       { m.executed.Add(1) }
func (m *AtomicMetrics) IncDeliveryFailed() { m.deliveryFailed.Add(1) }
func (m *AtomicMetrics) IncAbandoned()      { m.abandoned.Add(1) }
func (m *AtomicMetrics) SetQueued(n int)    { m.queued.Store(int64(n)) }

// MetricsSnapshot is a point-in-time copy of AtomicMetrics.
type MetricsSnapshot struct {
	Accepted       uint64
	Rejected       uint64
	Executed       uint64
	DeliveryFailed uint64
	Abandoned      uint64
	Queued         int64
}

// Snapshot copies the counters. The copy is not atomic as a whole.
func (m *AtomicMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Accepted:       m.accepted.Load(),
		Rejected:       m.rejected.Load(),
		Executed:       m.executed.Load(),
		DeliveryFailed: m.deliveryFailed.Load(),
		Abandoned:      m.abandoned.Load(),
		Queued:         m.queued.Load(),
	}
}

func (s MetricsSnapshot) String() string {
	return fmt.Sprintf("accepted=%d rejected=%d executed=%d delivery_failed=%d abandoned=%d queued=%d",
		s.Accepted, s.Rejected, s.Executed, s.DeliveryFailed, s.Abandoned, s.Queued)
}

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (NoopMetrics) IncAccepted()       {}
func (NoopMetrics) IncRejected()       {}
func (NoopMetrics) IncExecuted()       {}
func (NoopMetrics) IncDeliveryFailed() {}
func (NoopMetrics) IncAbandoned()      {}
func (NoopMetrics) SetQueued(int)      {}
