package prioq

import (
	"fmt"
	"strings"
	"time"
)

// QueueType selects the container behind the core.
//
// Both containers give the same dispatch order: lowest priority
// ordinal first, arrival order among equals.
type QueueType int

const (
	// SortedQueue is an insertion-sorted ring buffer. Cheap for the
	// small capacities this server runs with.
	SortedQueue QueueType = iota

	// HeapQueue is a binary heap keyed on (priority, arrival).
	HeapQueue
)

const (
	DefaultCapacity    = 100
	defaultPollInitial = 5 * time.Millisecond
	defaultPollMax     = 100 * time.Millisecond
)

// Options configure a Core and its Dispatcher.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Options struct {
	// Capacity bounds the number of pending requests.
	Capacity int

	QT QueueType

	// Poll shapes the worker's wait while the queue is empty. The
	// worker normally wakes on the core's ready signal; the backoff
	// timer only bounds how long a missed signal can go unnoticed.
	// Poll.Attempts is ignored.
	Poll RetryPolicy

	// AbandonOnShutdown drops pending requests on Shutdown instead
	// of executing them.
	AbandonOnShutdown bool

	// PinWorker locks the dispatch goroutine to an OS thread bound to CPU.
	PinWorker bool
	CPU       int
}

func (o *Options) FillDefaults() {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.Poll.Initial <= 0 {
		o.Poll.Initial = defaultPollInitial
	}
	if o.Poll.Max <= 0 {
		o.Poll.Max = defaultPollMax
	}
	if o.Poll.Initial > o.Poll.Max {
		o.Poll.Initial = o.Poll.Max
	}
	if o.CPU < 0 {
		o.PinWorker = false
	}
}

func (qt QueueType) String() string {
	switch qt {
	case SortedQueue:
		return "sorted"
	case HeapQueue:
		return "heap"
	default:
		return "unknown"
	}
}

// ParseQueueType maps a config value to a QueueType.
func ParseQueueType(s string) (QueueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sorted":
		return SortedQueue, nil
	case "heap":
		return HeapQueue, nil
	default:
		return 0, fmt.Errorf("prioq: unknown queue type %q", s)
	}
}
