package prioq_test

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azargarov/prioq"
)

func TestCore(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, qt prioq.QueueType)
	}{
		{"DispatchOrder", testDispatchOrder},
		{"CapacityBound", testCapacityBound},
		{"EmptyDequeue", testEmptyDequeue},
		{"StabilityAcrossInterleaving", testStability},
		{"ConcurrentProducersNoLossNoDup", testConcurrentProducers},
		{"CloseRejects", testCloseRejects},
		{"DrainOrder", testDrainOrder},
	}

	for _, qt := range queueTypes {
		t.Run(qt.String(), func(t *testing.T) {
			t.Parallel()
			for _, tc := range tests {
				t.Run(tc.name, func(t *testing.T) {
					t.Parallel()
					tc.fn(t, qt)
				})
			}
		})
	}
}

func testDispatchOrder(t *testing.T, qt prioq.QueueType) {
	c := newTestCore(t, 10, qt)

	require.NoError(t, c.Enqueue(req(prioq.Low, "a", nil)))
	require.NoError(t, c.Enqueue(req(prioq.High, "b", nil)))
	require.NoError(t, c.Enqueue(req(prioq.Medium, "c", nil)))
	require.NoError(t, c.Enqueue(req(prioq.High, "d", nil)))

	var got []string
	for {
		r, ok := c.Dequeue()
		if !ok {
			break
		}
		got = append(got, r.Payload)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, got)
}

func testCapacityBound(t *testing.T, qt prioq.QueueType) {
	c := newTestCore(t, 2, qt)

	require.NoError(t, c.Enqueue(req(prioq.High, "x", nil)))
	require.NoError(t, c.Enqueue(req(prioq.High, "y", nil)))
	assert.ErrorIs(t, c.Enqueue(req(prioq.Low, "z", nil)), prioq.ErrQueueFull)
	assert.Equal(t, 2, c.Len())

	// a more urgent request is rejected just the same
	assert.ErrorIs(t, c.Enqueue(req(prioq.High, "w", nil)), prioq.ErrQueueFull)
	assert.Equal(t, 2, c.Len())
}

func testEmptyDequeue(t *testing.T, qt prioq.QueueType) {
	c := newTestCore(t, 4, qt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := c.Dequeue()
		assert.False(t, ok)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dequeue on empty core blocked")
	}
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.Enqueue(req(prioq.Medium, "only", nil)))
	r, ok := c.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "only", r.Payload)
}

func testStability(t *testing.T, qt prioq.QueueType) {
	c := newTestCore(t, 100, qt)

	for i := 0; i < 30; i++ {
		p := []prioq.Priority{prioq.Medium, prioq.Low, prioq.Medium, prioq.High}[i%4]
		require.NoError(t, c.Enqueue(prioq.Request{Priority: p, Payload: p.String(), ID: string(rune('A' + i))}))
	}

	last := map[prioq.Priority]string{}
	var lastPrio prioq.Priority
	for {
		r, ok := c.Dequeue()
		if !ok {
			break
		}
		require.Truef(t, r.Priority >= lastPrio, "%v dequeued after %v", r.Priority, lastPrio)
		if prev, seen := last[r.Priority]; seen {
			require.Greater(t, r.ID, prev, "equal priorities out of arrival order")
		}
		last[r.Priority], lastPrio = r.ID, r.Priority
	}
}

func testConcurrentProducers(t *testing.T, qt prioq.QueueType) {
	const (
		producers   = 16
		perProducer = 500
	)
	c := newTestCore(t, producers*perProducer, qt)

	var wg sync.WaitGroup
	for i := range producers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range perProducer {
				p := prioq.Priority(j%3 + 1)
				if err := c.Enqueue(prioq.Request{Priority: p, ID: idFor(id, j)}); err != nil {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}(i)
	}

	seen := make(map[string]int, producers*perProducer)
	var consumed sync.WaitGroup
	consumed.Add(1)
	stop := make(chan struct{})
	go func() {
		defer consumed.Done()
		for {
			r, ok := c.Dequeue()
			if ok {
				seen[r.ID]++
				continue
			}
			select {
			case <-stop:
				for {
					r, ok := c.Dequeue()
					if !ok {
						return
					}
					seen[r.ID]++
				}
			default:
			}
		}
	}()

	wg.Wait()
	close(stop)
	consumed.Wait()

	require.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		require.Equalf(t, 1, n, "request %s dequeued %d times", id, n)
	}
	assert.Equal(t, 0, c.Len())
}

func testCloseRejects(t *testing.T, qt prioq.QueueType) {
	c := newTestCore(t, 4, qt)
	require.NoError(t, c.Enqueue(req(prioq.High, "kept", nil)))

	c.Close()
	assert.True(t, c.Closed())
	assert.ErrorIs(t, c.Enqueue(req(prioq.High, "late", nil)), prioq.ErrClosed)

	r, ok := c.Dequeue()
	require.True(t, ok, "pending request lost on close")
	assert.Equal(t, "kept", r.Payload)
}

func testDrainOrder(t *testing.T, qt prioq.QueueType) {
	c := newTestCore(t, 8, qt)
	require.NoError(t, c.Enqueue(req(prioq.Low, "3", nil)))
	require.NoError(t, c.Enqueue(req(prioq.High, "1", nil)))
	require.NoError(t, c.Enqueue(req(prioq.Medium, "2", nil)))

	var got []string
	for _, r := range c.Drain() {
		got = append(got, r.Payload)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Equal(t, 0, c.Len())
}

func idFor(producer, n int) string {
	return strconv.Itoa(producer) + "-" + strconv.Itoa(n)
}

func TestCore_AssignsIDAndTimestamp(t *testing.T) {
	c := newTestCore(t, 2, prioq.SortedQueue)
	before := time.Now()
	require.NoError(t, c.Enqueue(req(prioq.Medium, "x", nil)))
	require.NoError(t, c.Enqueue(prioq.Request{ID: "fixed", Priority: prioq.Medium}))

	r, _ := c.Dequeue()
	assert.Len(t, r.ID, 36)
	assert.False(t, r.EnqueuedAt.Before(before))

	r, _ = c.Dequeue()
	assert.Equal(t, "fixed", r.ID)
}

func TestCore_ReadySignal(t *testing.T) {
	c := newTestCore(t, 4, prioq.SortedQueue)

	select {
	case <-c.Ready():
		t.Fatal("ready signalled on empty core")
	default:
	}

	require.NoError(t, c.Enqueue(req(prioq.Low, "a", nil)))
	require.NoError(t, c.Enqueue(req(prioq.Low, "b", nil)))

	select {
	case <-c.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready not signalled after enqueue")
	}
	// signals coalesce into one slot
	select {
	case <-c.Ready():
		t.Fatal("ready signalled twice")
	default:
	}
	assert.Equal(t, 2, c.Len())
}

func TestCore_Metrics(t *testing.T) {
	m := &prioq.AtomicMetrics{}
	c := prioq.NewCore(prioq.Options{Capacity: 1}, m)

	require.NoError(t, c.Enqueue(req(prioq.High, "a", nil)))
	require.ErrorIs(t, c.Enqueue(req(prioq.High, "b", nil)), prioq.ErrQueueFull)

	s := m.Snapshot()
	assert.Equal(t, uint64(1), s.Accepted)
	assert.Equal(t, uint64(1), s.Rejected)
	assert.Equal(t, int64(1), s.Queued)

	c.Dequeue()
	assert.Equal(t, int64(0), m.Snapshot().Queued)
}

func TestCore_DefaultCapacity(t *testing.T) {
	c := prioq.NewCore(prioq.Options{}, nil)
	assert.Equal(t, prioq.DefaultCapacity, c.Cap())
}
