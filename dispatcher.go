package prioq

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/azargarov/prioq/internal/tracing"
)

const (
	// InternalErrorBody answers a request whose executor panicked.
	InternalErrorBody = "Error: internal error"

	// ShutdownBody answers requests abandoned at shutdown.
	ShutdownBody = "ERR server shutting down"
)

// Executor turns a command into its response text. Failures are part
// of the response, never a Go error.
type Executor interface {
	Execute(ctx context.Context, command string) string
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, command string) string

func (f ExecutorFunc) Execute(ctx context.Context, command string) string { return f(ctx, command) }

// Dispatcher is the single consumer of a Core. It executes one request
// at a time, in dequeue order, and delivers exactly one response per
// dequeued request.
//
// The error hooks must be set before Start.
type Dispatcher struct {
	core    *Core
	exec    Executor
	opts    Options
	metrics MetricsPolicy

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
	busy      atomic.Bool

	OnExecError     func(error)
	OnDeliveryError func(error)
	OnInternalError func(error)
}

// NewDispatcher wires a worker to core. A nil m disables metrics.
func NewDispatcher(core *Core, exec Executor, opts Options, m MetricsPolicy) *Dispatcher {
	opts.FillDefaults()
	if m == nil {
		m = NoopMetrics{}
	}
	return &Dispatcher{
		core:    core,
		exec:    exec,
		opts:    opts,
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling it again is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() { go d.run() })
}

// Shutdown closes the core to new requests and stops the worker.
//
// Pending requests are executed first unless AbandonOnShutdown is
// set, in which case they are answered with ShutdownBody. A request
// already executing always runs to completion. Shutdown returns
// ctx.Err() if the worker has not stopped in time; it may be called
// again to keep waiting.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.core.Close()
		close(d.stopCh)
	})
	d.Start()

	select {
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop is a blocking Shutdown.
func (d *Dispatcher) Stop() { _ = d.Shutdown(context.Background()) }

// Done is closed once the worker has exited.
func (d *Dispatcher) Done() <-chan struct{} { return d.doneCh }

// Busy reports whether a command is executing right now.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

func (d *Dispatcher) stopping() bool {
	select {
	case <-d.stopCh:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)

	if d.opts.PinWorker {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinToCPU(d.opts.CPU); err != nil {
			d.reportInternalError(fmt.Errorf("prioq: pin worker to cpu %d: %w", d.opts.CPU, err))
		}
	}

	for {
		if d.opts.AbandonOnShutdown && d.stopping() {
			break
		}
		if r, ok := d.core.Dequeue(); ok {
			d.process(r)
			continue
		}
		if d.stopping() {
			break
		}
		d.idle()
	}

	d.finish()
}

// idle parks the worker until the core signals new work, the
// dispatcher is stopped, or a backoff timer fires and finds work
// that slipped past the signal.
func (d *Dispatcher) idle() {
	bo := boff.New(d.opts.Poll.Initial, d.opts.Poll.Max, time.Now().UnixNano())
	for {
		delay := bo.Next()
		if delay <= 0 || delay > d.opts.Poll.Max {
			delay = d.opts.Poll.Max
		}
		timer := time.NewTimer(delay)
		select {
		case <-d.stopCh:
			timer.Stop()
			return
		case <-d.core.Ready():
			timer.Stop()
			return
		case <-timer.C:
			if d.core.Len() > 0 {
				return
			}
		}
	}
}

// finish handles whatever is still queued once the loop has exited.
func (d *Dispatcher) finish() {
	for _, r := range d.core.Drain() {
		if !d.opts.AbandonOnShutdown {
			d.process(r)
			continue
		}
		d.metrics.IncAbandoned()
		lg.FromContext(r.context()).Info("Request abandoned at shutdown",
			lg.String("request_id", r.ID),
			lg.String("priority", r.Priority.String()),
		)
		_ = d.deliver(r, ShutdownBody)
	}
}

func (d *Dispatcher) process(r Request) {
	wait := time.Since(r.EnqueuedAt)
	fp := strconv.FormatUint(r.Fingerprint(), 16)

	ctx, span := tracing.StartSpan(r.context(), "prioq.dispatch", trace.SpanKindConsumer)
	span.SetAttributes(
		attribute.String("prioq.request_id", r.ID),
		attribute.Int("prioq.priority", int(r.Priority)),
		attribute.String("prioq.fingerprint", fp),
		attribute.Int64("prioq.queue_wait_us", wait.Microseconds()),
	)

	logger := lg.FromContext(ctx).With(
		lg.String("request_id", r.ID),
		lg.String("priority", r.Priority.String()),
	)
	logger.Info("Dispatching request",
		lg.String("fingerprint", fp),
		lg.String("queue_wait", wait.String()),
	)

	d.busy.Store(true)
	body := d.execute(ctx, r)
	d.busy.Store(false)
	d.metrics.IncExecuted()
	span.AddEvent("executed", attribute.Int("prioq.response_bytes", len(body)))

	err := d.deliver(r, body)
	if err != nil {
		logger.Error("Response delivery failed", lg.Any("error", err))
	} else {
		logger.Info("Request completed")
	}
	tracing.EndSpan(span, err)
}

func (d *Dispatcher) execute(ctx context.Context, r Request) (body string) {
	defer func() {
		if rec := recover(); rec != nil {
			lg.FromContext(ctx).Error("executor panicked", lg.Any("panic", rec))
			d.reportExecError(fmt.Errorf("prioq: executor panic on request %s: %v", r.ID, rec))
			body = InternalErrorBody
		}
	}()
	return d.exec.Execute(ctx, r.Payload)
}

func (d *Dispatcher) deliver(r Request, body string) error {
	var err error
	if r.Target == nil {
		err = fmt.Errorf("prioq: request %s has no response target", r.ID)
	} else if derr := r.Target.Deliver(Response{RequestID: r.ID, Body: body}); derr != nil {
		err = fmt.Errorf("prioq: deliver response for %s: %w", r.ID, derr)
	}
	if err != nil {
		d.metrics.IncDeliveryFailed()
		d.reportDeliveryError(err)
	}
	return err
}
