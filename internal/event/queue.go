package event

import (
	"sync"
	"time"
)

// Queue is an unbounded FIFO of events owned by a single subscriber.
// Unbounded by design: a publish must never block on a slow consumer, so
// backpressure is absorbed as memory growth instead of producer stalls.
type Queue struct {
	mu    sync.Mutex
	items []Event
	wake  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends an event. Never blocks.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest event, waiting up to timeout when the
// queue is empty. The second return is false on timeout. This wait is the
// suspension point of every consuming worker.
func (q *Queue) Pop(timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if ev, ok := q.tryPop(); ok {
			return ev, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
			return nil, false
		}
	}
}

// TryPop removes and returns the oldest event without waiting.
func (q *Queue) TryPop() (Event, bool) {
	return q.tryPop()
}

func (q *Queue) tryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev, true
}

// Drain discards everything currently queued and returns the count.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Len reports the number of pending events without consuming anything.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
