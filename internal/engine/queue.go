package engine

import "sync"

// eventQueue is an unbounded FIFO of progress events. Lanes enqueue without
// blocking; the aggregator dequeues.
//
// signal is buffered with size 1 so repeated enqueues coalesce into one
// wake-up, and it is closed by Close so a waiting aggregator wakes for the
// final drain.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
	clock  *Clock
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
		clock:  NewClock(),
	}
}

// Enqueue appends e as is. It returns false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.push(e)
}

// Publish stamps p with the next Seq and appends it. Stamping and appending
// happen under one lock, so queue order is Seq order across publishers.
func (q *eventQueue) Publish(p Progress) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	return q.push(Event{Seq: q.clock.Next(), Progress: p})
}

// push appends e. q.mu must be held.
func (q *eventQueue) push(e Event) bool {
	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	// Clear the slot so the backing array does not pin the event's error.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that receives when events may be available and is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops further enqueues and wakes the aggregator.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
