package download

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrQueueClosed is returned by Put after Close.
var ErrQueueClosed = errors.New("download: queue closed")

// Queue is a bounded FIFO handing items from producers to consumers.
//
// Put blocks while the queue is full. Consumers call Get until it returns
// io.EOF, which happens once the queue is closed and drained, and call Done
// after processing each item. Join waits until every item put so far has been
// marked done.
type Queue[T any] struct {
	items chan T

	// sendMu keeps Close from closing items under an in-flight Put.
	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed while pending == 0
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueDepth
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue[T]{
		items: make(chan T, capacity),
		idle:  idle,
	}
}

// Put enqueues item, blocking while the queue is full.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.add()

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		q.Done()
		return ctx.Err()
	}
}

// Get dequeues the next item. It returns io.EOF once the queue is closed and
// empty.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case item, ok := <-q.items:
		if !ok {
			return zero, io.EOF
		}
		return item, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Done marks one dequeued item as processed.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending <= 0 {
		panic("download: Queue.Done called more times than items were put")
	}
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// Close stops the queue. Every consumer blocked in Get, and every later Get
// on an empty queue, returns io.EOF. Close waits for in-flight Puts.
func (q *Queue[T]) Close() {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

// Join blocks until every item put so far has been marked done.
func (q *Queue[T]) Join(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of items waiting in the queue.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

func (q *Queue[T]) add() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
}
