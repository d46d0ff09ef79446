package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(seq int64) Event { return Event{Seq: seq} }

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for i := int64(1); i <= 3; i++ {
		require.True(t, q.Enqueue(ev(i)))
	}
	assert.Equal(t, 3, q.Len())

	for i := int64(1); i <= 3; i++ {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, got.Seq)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(ev(1))
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(ev(2)), "enqueue after close")

	_, open := <-q.Wait()
	assert.False(t, open, "signal is closed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "queued events survive close")
	assert.Equal(t, int64(1), got.Seq)
}

func TestEventQueue_WaitWakes(t *testing.T) {
	q := newEventQueue()
	woke := make(chan struct{})
	go func() {
		<-q.Wait()
		close(woke)
	}()

	q.Enqueue(ev(1))
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake on enqueue")
	}
}

func TestEventQueue_ConcurrentProducers(t *testing.T) {
	q := newEventQueue()
	const producers = 10
	const each = 100

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				q.Enqueue(ev(int64(p*each + i)))
			}
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for {
		e, ok := q.TryDequeue()
		if !ok {
			break
		}
		seen[e.Seq] = true
	}
	assert.Len(t, seen, producers*each)
}

func TestEventQueue_PublishKeepsSeqOrder(t *testing.T) {
	q := newEventQueue()
	const producers = 8
	const each = 200

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				q.Publish(Progress{})
			}
		}()
	}
	wg.Wait()

	var last int64
	n := 0
	for {
		e, ok := q.TryDequeue()
		if !ok {
			break
		}
		require.Greater(t, e.Seq, last, "event %d dequeued out of order", n)
		last = e.Seq
		n++
	}
	assert.Equal(t, producers*each, n)
	q.Close()
	assert.False(t, q.Publish(Progress{}), "publish after close")
}
