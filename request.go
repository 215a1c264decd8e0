package prioq

import (
	"context"
	"errors"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrQueueFull is returned when the core is at capacity.
	// The rejected request is dropped; it is never retried.
	ErrQueueFull = errors.New("prioq: queue is full")

	// ErrClosed is returned by Enqueue after the core has been closed.
	ErrClosed = errors.New("prioq: queue closed")

	// ErrTargetClosed is returned by a ResponseTarget that can no
	// longer reach its connection.
	ErrTargetClosed = errors.New("prioq: response target closed")
)

// MaxPayload is the default bound on a request line; servers may
// configure another.
const MaxPayload = 4095

// Response is the executor output routed back to the originating connection.
type Response struct {
	RequestID string
	Body      string
}

// ResponseTarget routes a Response to whoever submitted the request.
//
// The core holds a target only for routing; it never owns the
// connection behind it. Deliver must be safe to call from the
// dispatch goroutine while the owner keeps using its connection.
type ResponseTarget interface {
	Deliver(resp Response) error
}

// TargetFunc adapts a plain function to ResponseTarget.
type TargetFunc func(Response) error

func (f TargetFunc) Deliver(resp Response) error { return f(resp) }

// ChanTarget is a one-shot reply channel. Create it with NewChanTarget.
type ChanTarget chan Response

// NewChanTarget returns a target buffered for exactly one response.
func NewChanTarget() ChanTarget { return make(ChanTarget, 1) }

// Deliver never blocks; a second response on the same target fails.
func (c ChanTarget) Deliver(resp Response) error {
	select {
	case c <- resp:
		return nil
	default:
		return ErrTargetClosed
	}
}

// Request is one unit of work submitted by a connection.
//
// Payload is passed to the executor unchanged. Ctx scopes logging
// and tracing for the request; it does not cancel execution once
// the request has been dequeued.
type Request struct {
	ID       string
	Priority Priority
	Payload  string
	Target   ResponseTarget
	Ctx      context.Context

	// EnqueuedAt is stamped by the core on acceptance.
	EnqueuedAt time.Time
}

// Fingerprint is a stable 64-bit hash of the payload, used in logs
// and spans in place of the raw command text.
func (r Request) Fingerprint() uint64 {
	return xxhash.Sum64String(r.Payload)
}

func (r Request) context() context.Context {
	if r.Ctx == nil {
		return context.Background()
	}
	return r.Ctx
}
