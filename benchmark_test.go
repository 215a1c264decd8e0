package prioq_test

import (
	"context"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/azargarov/prioq"
)

var sink prioq.Request

func benchQueueTypes(b *testing.B, fn func(b *testing.B, qt prioq.QueueType)) {
	for _, qt := range queueTypes {
		b.Run(qt.String(), func(b *testing.B) { fn(b, qt) })
	}
}

func BenchmarkCore_EnqueueDequeue(b *testing.B) {
	benchQueueTypes(b, func(b *testing.B, qt prioq.QueueType) {
		c := prioq.NewCore(prioq.Options{Capacity: 1024, QT: qt}, nil)
		r := prioq.Request{ID: "bench", Payload: "+ 1 2"}

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			r.Priority = prioq.Priority(i%3 + 1)
			if err := c.Enqueue(r); err != nil {
				b.Fatalf("enqueue: %v", err)
			}
			sink, _ = c.Dequeue()
		}
	})
}

// Full queue with mixed priorities: the sorted container pays for
// the shift on every insert, the heap for the sift on every pop.
func BenchmarkCore_MixedBacklog(b *testing.B) {
	for _, capacity := range []int{16, 100, 1024} {
		b.Run(strconv.Itoa(capacity), func(b *testing.B) {
			benchQueueTypes(b, func(b *testing.B, qt prioq.QueueType) {
				c := prioq.NewCore(prioq.Options{Capacity: capacity, QT: qt}, nil)
				for i := range capacity - 1 {
					_ = c.Enqueue(prioq.Request{ID: "pre", Priority: prioq.Priority(i%3 + 1)})
				}

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					_ = c.Enqueue(prioq.Request{ID: "x", Priority: prioq.Priority(i%3 + 1)})
					sink, _ = c.Dequeue()
				}
			})
		})
	}
}

func BenchmarkCore_ParallelEnqueue(b *testing.B) {
	benchQueueTypes(b, func(b *testing.B, qt prioq.QueueType) {
		c := prioq.NewCore(prioq.Options{Capacity: 1 << 20, QT: qt}, &prioq.AtomicMetrics{})
		var n atomic.Uint64

		b.ReportAllocs()
		b.SetParallelism(runtime.GOMAXPROCS(0))
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				p := prioq.Priority(n.Add(1)%3 + 1)
				if err := c.Enqueue(prioq.Request{ID: "p", Priority: p}); err != nil {
					// drain and keep going once the queue is saturated
					c.Drain()
				}
			}
		})
	})
}

func BenchmarkDispatcher_Throughput(b *testing.B) {
	benchQueueTypes(b, func(b *testing.B, qt prioq.QueueType) {
		c := prioq.NewCore(prioq.Options{Capacity: 4096, QT: qt}, nil)
		var done atomic.Int64
		target := prioq.TargetFunc(func(prioq.Response) error {
			done.Add(1)
			return nil
		})
		exec := prioq.ExecutorFunc(func(_ context.Context, cmd string) string { return cmd })

		d := prioq.NewDispatcher(c, exec, prioq.Options{}, nil)
		d.Start()
		defer d.Stop()

		b.ReportAllocs()
		b.ResetTimer()
		sent := int64(0)
		for i := 0; i < b.N; i++ {
			r := prioq.Request{ID: "t", Priority: prioq.Priority(i%3 + 1), Payload: "x", Target: target}
			for c.Enqueue(r) == prioq.ErrQueueFull {
				runtime.Gosched()
			}
			sent++
		}
		for done.Load() < sent {
			runtime.Gosched()
		}
	})
}
