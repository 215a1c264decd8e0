// Package prioq implements the dispatch core of a prioritized command
// server: a bounded priority queue fed by many connections and drained
// by exactly one worker.
//
// Architecture overview
//
// The core is composed of three loosely coupled layers:
//
//  1. Ordering (Core)
//     A single mutex-protected container holding at most Capacity
//     pending requests. Producers call Enqueue concurrently; a full
//     queue rejects with ErrQueueFull instead of blocking.
//
//  2. Execution (Dispatcher)
//     One goroutine repeatedly dequeues the most urgent request,
//     runs the Executor on it and hands the result to the request's
//     ResponseTarget. At most one command executes at a time.
//
//  3. Routing (Request / ResponseTarget)
//     Each request carries an opaque target that knows how to reach
//     the connection it came from. The core never touches sockets.
//
// Ordering
//
// Priority ordinals run from High (1) to Low (3); lower is served
// first. Requests of equal priority are served in arrival order.
// Two interchangeable containers provide this ordering:
//
//   - SortedQueue: insertion-sorted ring buffer (default)
//   - HeapQueue: binary heap keyed on (priority, arrival sequence)
//
// Waiting for work
//
// Dequeue never blocks. The dispatcher parks on Core.Ready, which is
// signalled by every accepted Enqueue, with a backoff timer capped at
// Options.Poll.Max as a safety net.
//
// Error handling
//
// Nothing in the core is fatal. A full queue is reported to the
// producer, a panicking executor is recovered and answered with
// InternalErrorBody, and a target that refuses its response is
// reported through OnDeliveryError.
//
// Shutdown
//
// Dispatcher.Shutdown closes the core to new requests and then either
// drains the backlog or answers it with ShutdownBody, depending on
// Options.AbandonOnShutdown.
package prioq
