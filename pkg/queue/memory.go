package queue

import (
	"context"
	"sync"
)

const (
	// DefaultBufferSize is the capacity used when none is given.
	DefaultBufferSize = 1024
)

// InMemoryQueue is a channel-backed queue.
type InMemoryQueue[T any] struct {
	ch chan T
	// lock makes ReadAll and Clear drain a consistent batch.
	lock sync.Mutex
}

// NewInMemoryQueue creates a queue holding at most size items.
func NewInMemoryQueue[T any](size int) *InMemoryQueue[T] {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &InMemoryQueue[T]{
		ch: make(chan T, size),
	}
}

// Enqueue adds an item to the end of the queue without blocking.
func (q *InMemoryQueue[T]) Enqueue(item T) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue removes the item at the front, waiting for one if the queue is empty.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) (T, error) {
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (q *InMemoryQueue[T]) Size() int {
	return len(q.ch)
}

// ReadAll removes and returns every pending item in order.
func (q *InMemoryQueue[T]) ReadAll() []T {
	q.lock.Lock()
	defer q.lock.Unlock()

	var items []T
	for {
		select {
		case item := <-q.ch:
			items = append(items, item)
		default:
			return items
		}
	}
}

func (q *InMemoryQueue[T]) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()

	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
