// Package queue provides a single-slot, drop-oldest hand-off between a
// producer that must never block and a consumer that may be slow.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
)

// Latest holds at most one item. Push replaces an unconsumed item
// instead of waiting, so the consumer always sees the freshest value.
// Items are delivered in push order and never twice.
type Latest[T any] struct {
	mu      sync.Mutex
	slot    chan T
	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// NewLatest returns an empty queue.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{slot: make(chan T, 1)}
}

// Push stores v, discarding any item still waiting. It reports whether an
// item was discarded. Push never blocks on the consumer.
func (q *Latest[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pushed.Add(1)
	displaced := false
	select {
	case <-q.slot:
		displaced = true
		q.dropped.Add(1)
	default:
	}
	// The slot is empty and only producers holding mu can fill it.
	q.slot <- v
	return displaced
}

// Pop blocks until an item is available or ctx is done.
func (q *Latest[T]) Pop(ctx context.Context) (T, error) {
	select {
	case v := <-q.slot:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryPop returns the waiting item, if any, without blocking.
func (q *Latest[T]) TryPop() (T, bool) {
	select {
	case v := <-q.slot:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Stats reports how many items were pushed and how many were dropped
// before a consumer took them.
func (q *Latest[T]) Stats() (pushed, dropped uint64) {
	return q.pushed.Load(), q.dropped.Load()
}
