package app

import (
	"context"

	"github.com/google/uuid"
)

// OrderQueue is the bounded FIFO channel of order ids awaiting assignment.
// Many producers (ingress adapters) enqueue; the assignment engine is the
// single consumer. A full queue blocks producers; adapters turn that into
// a 503 after their own deadline.
type OrderQueue struct {
	ch      chan uuid.UUID
	metrics *Metrics
}

func NewOrderQueue(size int, metrics *Metrics) *OrderQueue {
	return &OrderQueue{
		ch:      make(chan uuid.UUID, size),
		metrics: metrics,
	}
}

// Enqueue appends an order id, blocking while the queue is full until
// space frees up or ctx is done.
func (q *OrderQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	select {
	case q.ch <- id:
		q.metrics.OrdersInQueue.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest order id, blocking while the queue is empty.
func (q *OrderQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	select {
	case id := <-q.ch:
		q.metrics.OrdersInQueue.Dec()
		return id, nil
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// TryDequeue removes the oldest order id without blocking. Used by the
// engine's shutdown drain.
func (q *OrderQueue) TryDequeue() (uuid.UUID, bool) {
	select {
	case id := <-q.ch:
		q.metrics.OrdersInQueue.Dec()
		return id, true
	default:
		return uuid.Nil, false
	}
}

// Len returns the current queue depth.
func (q *OrderQueue) Len() int {
	return len(q.ch)
}
