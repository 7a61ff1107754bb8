package pipeline

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO with a blocking, timed Pop.
//
// Push never blocks, so producers on the child's output path are never
// slowed by consumers. Items handed out by Pop stay counted by Pending
// until the consumer calls Done, which lets the drain watcher tell an empty
// queue from one whose last item is still being processed.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int
	inflight int
	ready    chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends an item.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

// Pop removes the oldest item, waiting up to wait for one to arrive.
// It returns false on timeout, when done is closed, or when ctx ends.
// Every successful Pop must be paired with Done.
func (q *Queue[T]) Pop(ctx context.Context, done <-chan struct{}, wait time.Duration) (T, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		if item, ok := q.tryPop(); ok {
			return item, true
		}
		select {
		case <-q.ready:
		case <-done:
			var zero T
			return zero, false
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-timer.C:
			var zero T
			return zero, false
		}
	}
}

// Done marks one popped item as processed.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	if q.inflight > 0 {
		q.inflight--
	}
	q.mu.Unlock()
}

// Len returns the number of queued items, excluding in-flight ones.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Pending returns queued plus in-flight items.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head + q.inflight
}

func (q *Queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.inflight++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 1024 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	if q.head < len(q.items) {
		q.signal()
	}
	return item, true
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
