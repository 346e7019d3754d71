package queue

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room left.
var ErrQueueFull = errors.New("queue is full")

// Queue is a bounded FIFO of pending items.
type Queue[T any] interface {
	Enqueue(item T) error
	Dequeue(ctx context.Context) (T, error)
	Size() int
	ReadAll() []T
	Clear()
}
