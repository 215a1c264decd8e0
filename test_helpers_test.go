package prioq_test

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/azargarov/prioq"
)

var queueTypes = []prioq.QueueType{
	prioq.SortedQueue,
	prioq.HeapQueue,
}

func newTestCore(t *testing.T, capacity int, qt prioq.QueueType) *prioq.Core {
	t.Helper()
	return prioq.NewCore(prioq.Options{Capacity: capacity, QT: qt}, nil)
}

// recorder collects delivered responses in delivery order.
type recorder struct {
	mu    sync.Mutex
	resps []prioq.Response
}

func (r *recorder) Deliver(resp prioq.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resps = append(r.resps, resp)
	return nil
}

func (r *recorder) bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.resps))
	for i, resp := range r.resps {
		out[i] = resp.Body
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resps)
}

// echoExec returns the command unchanged.
var echoExec = prioq.ExecutorFunc(func(_ context.Context, cmd string) string { return cmd })

func req(p prioq.Priority, payload string, target prioq.ResponseTarget) prioq.Request {
	return prioq.Request{Priority: p, Payload: payload, Target: target}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("condition not satisfied before timeout")
}

func waitUntilB(b *testing.B, timeout time.Duration, cond func() bool) {
	b.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	b.Fatal("condition not satisfied before timeout")
}

func percentile(samples []int64, q float64) time.Duration {
	pos := int(float64(len(samples)-1) * q)
	return time.Duration(samples[pos])
}

func getenvInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
