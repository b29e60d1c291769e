package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	requeueBaseDelay = 100 * time.Millisecond
	requeueMaxDelay  = 5 * time.Second
	drainDeadline    = 2 * time.Second
)

// StartEngine launches the assignment engine: a single goroutine that
// dequeues orders, scores the current courier roster, and commits the best
// match. On shutdown it drains the queue up to a short deadline and then
// closes the event bus, which signals all subscribers.
func StartEngine(d *Application) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		slog.Info("Assignment engine started")

		for {
			id, err := d.Queue.Dequeue(ctx)
			if err != nil {
				break
			}
			processOrder(ctx, d, id)
		}

		drainQueue(d)
		d.Events.Close()
		slog.Info("Assignment engine stopped")
	}()

	d.SetStopEngine(func() {
		cancel()
		<-done
	})
}

// drainQueue processes whatever is still buffered at shutdown, bounded by
// a deadline. Undrained orders simply stay Pending; state is in-memory and
// lost on restart anyway.
func drainQueue(d *Application) {
	deadline := time.Now().Add(drainDeadline)
	drained := 0
	for time.Now().Before(deadline) {
		id, ok := d.Queue.TryDequeue()
		if !ok {
			break
		}
		processOrder(context.Background(), d, id)
		drained++
	}
	if remaining := d.Queue.Len(); remaining > 0 || drained > 0 {
		slog.Info("Queue drain finished", "drained", drained, "remaining", remaining)
	}
}

// processOrder runs one assignment pass for a dequeued order. Failures are
// isolated per order; the engine never exits because of one.
func processOrder(ctx context.Context, d *Application, id uuid.UUID) {
	order, err := d.Store.GetOrder(id)
	if err != nil {
		slog.Warn("Dequeued unknown order", "order_id", id)
		return
	}
	if order.Status != OrderPending {
		return
	}

	order, err = d.Store.IncrementAttempts(id)
	if err != nil {
		slog.Warn("Failed to bump order attempts", "order_id", id, "error", err)
		return
	}

	logger := log(ctx).With("order_id", order.ID, "attempt", order.Attempts)

	// Snapshot-then-validate: candidates come from a lock-free view and
	// may be stale. TryCommitAssignment re-checks under the entry locks.
	var candidates []Courier
	for _, c := range d.Store.ListCouriers() {
		if c.Eligible() {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		if order.Attempts >= d.Config.MaxAttempts {
			failOrder(d, order, logger)
		} else {
			logger.Debug("No eligible couriers, scheduling requeue")
			scheduleRequeue(ctx, d, order.ID, order.Attempts)
		}
		return
	}

	winner, score, breakdown := pickCourier(candidates, order)

	start := time.Now()
	assignment, courier, committed, err := d.Store.TryCommitAssignment(order.ID, winner.ID, score, breakdown)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		d.Metrics.AssignmentsTotal.WithLabelValues(OutcomeSuccess).Inc()
		d.Metrics.AssignmentLatency.WithLabelValues(OutcomeSuccess).Observe(elapsed)
		d.Events.Publish(Event{
			Type:       EventAssignment,
			Assignment: &assignment,
			Order:      committed,
			Courier:    &courier,
			Timestamp:  assignment.AssignedAt,
		})
		logger.Info("Order assigned",
			"courier_id", courier.ID,
			"score", score,
			"courier_load", courier.CurrentLoad,
		)
	case errors.Is(err, ErrCourierUnavailable):
		// Lost the race for this courier; the order goes back to the tail.
		d.Metrics.AssignmentLatency.WithLabelValues(OutcomeError).Observe(elapsed)
		logger.Debug("Courier taken since scoring, requeueing", "courier_id", winner.ID)
		scheduleRequeue(ctx, d, order.ID, order.Attempts)
	case errors.Is(err, ErrOrderNotPending):
		// Someone else finalised the order; nothing left to do.
		logger.Debug("Order no longer pending, discarding")
	default:
		logger.Error("Assignment commit failed", "error", err)
	}
}

// pickCourier scores every candidate and returns the winner. Ties resolve
// by lower current load, then lexicographically smaller courier id, so the
// choice is deterministic.
func pickCourier(candidates []Courier, order Order) (Courier, float64, ScoreBreakdown) {
	best := candidates[0]
	bestScore, bestBreakdown := Score(best, order)

	for _, c := range candidates[1:] {
		score, breakdown := Score(c, order)
		if score < bestScore {
			continue
		}
		if score == bestScore {
			if c.CurrentLoad > best.CurrentLoad {
				continue
			}
			if c.CurrentLoad == best.CurrentLoad && c.ID.String() >= best.ID.String() {
				continue
			}
		}
		best, bestScore, bestBreakdown = c, score, breakdown
	}

	return best, bestScore, bestBreakdown
}

func failOrder(d *Application, order Order, logger *slog.Logger) {
	failed, err := d.Store.MarkOrderFailed(order.ID)
	if err != nil {
		logger.Debug("Order finalised before it could be failed", "error", err)
		return
	}
	d.Metrics.AssignmentsTotal.WithLabelValues(OutcomeError).Inc()
	d.Events.Publish(Event{
		Type:  EventOrderFailed,
		Order: failed,
	})
	logger.Warn("Order failed: no eligible couriers after max attempts")
}

// scheduleRequeue re-enqueues the order after an exponential backoff.
// Requeues land at the tail of the queue; they do not preserve FIFO order.
func scheduleRequeue(ctx context.Context, d *Application, id uuid.UUID, attempts int) {
	time.AfterFunc(backoffDelay(attempts), func() {
		if ctx.Err() != nil {
			// Shutting down; the order stays Pending.
			return
		}
		if err := d.Queue.Enqueue(ctx, id); err != nil {
			slog.Warn("Requeue dropped", "order_id", id, "error", err)
		}
	})
}

// backoffDelay returns min(base * 2^attempts, cap).
func backoffDelay(attempts int) time.Duration {
	delay := requeueBaseDelay
	for i := 0; i < attempts && delay < requeueMaxDelay; i++ {
		delay *= 2
	}
	if delay > requeueMaxDelay {
		delay = requeueMaxDelay
	}
	return delay
}
