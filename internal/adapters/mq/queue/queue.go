// Package queue holds refresh requests between the ingestion hook that
// raises them and the worker that turns them into graph rebuilds.
package queue

import (
	"context"
	"sync"

	"github.com/okian/winchain/internal/domain/model"
	"github.com/okian/winchain/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 64
)

// Request is the payload type flowing through the queue.
type Request = model.RefreshRequest

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. It returns ErrFull when the queue is at
	// capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, r Request) error

	// Dequeue returns the channel requests are delivered on. It is closed
	// when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Request

	// Drain removes and returns every request currently buffered without
	// blocking.
	Drain(ctx context.Context) []Request

	// Len returns the current number of queued requests.
	Len(ctx context.Context) int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting requests.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests chan Request
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)

	metrics.UpdateRefreshQueueCapacity(q.capacity)
	metrics.UpdateRefreshQueueSize(0)

	return q
}

// Enqueue adds a request to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordRefreshEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordRefreshEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.requests <- r:
		metrics.RecordRefreshEnqueued()
		metrics.UpdateRefreshQueueSize(len(q.requests))
		return nil
	default:
		metrics.RecordRefreshEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the channel requests are delivered on.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Request {
	return q.requests
}

// Drain removes every buffered request without blocking.
func (q *InMemoryQueue) Drain(_ context.Context) []Request {
	var out []Request
	for {
		select {
		case r, ok := <-q.requests:
			if !ok {
				metrics.UpdateRefreshQueueSize(0)
				return out
			}
			out = append(out, r)
		default:
			metrics.UpdateRefreshQueueSize(len(q.requests))
			return out
		}
	}
}

// Len returns the current number of queued requests.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.requests)
	metrics.UpdateRefreshQueueSize(size)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting requests. Buffered requests can still be received.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
