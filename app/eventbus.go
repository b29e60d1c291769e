package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBusClosed is returned by Subscription.Next after the bus has shut
// down and the subscriber's remaining buffer is drained.
var ErrBusClosed = errors.New("event bus closed")

// LagError tells a slow subscriber how many events it missed. The
// subscription stays usable; subsequent Next calls resume delivery.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged: missed %d events", e.Missed)
}

// EventType discriminates bus events.
type EventType string

const (
	EventAssignment  EventType = "assignment"
	EventOrderFailed EventType = "order_failed"
)

// Event is a broadcast message carrying snapshots taken at commit time.
// Assignment and Courier are nil for order_failed events.
type Event struct {
	Type       EventType   `json:"type"`
	Assignment *Assignment `json:"assignment,omitempty"`
	Order      Order       `json:"order"`
	Courier    *Courier    `json:"courier,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// EventBus broadcasts assignment events to any number of subscribers.
// Each subscriber owns a bounded buffer; publishing never blocks. When a
// subscriber's buffer overflows, the oldest buffered event is dropped and
// the loss is reported through a LagError on the next read.
type EventBus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	bufSize int
	closed  bool
}

func NewEventBus(bufSize int) *EventBus {
	return &EventBus{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe joins the bus. The subscriber sees only events published after
// this call; there is no replay. Callers must Close the subscription when
// done.
func (b *EventBus) Subscribe() *Subscription {
	s := &Subscription{
		bus:    b,
		notify: make(chan struct{}, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscriber without blocking the caller.
func (b *EventBus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.push(ev, b.bufSize)
	}
}

// Close shuts the bus down. Subscribers drain their remaining buffers and
// then receive ErrBusClosed as the terminal marker.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.markClosed()
		delete(b.subs, s)
	}
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	bus *EventBus

	mu     sync.Mutex
	buf    []Event
	missed uint64
	closed bool
	notify chan struct{}
}

func (s *Subscription) push(ev Event, max int) {
	s.mu.Lock()
	if len(s.buf) >= max {
		// Drop the oldest event; the subscriber learns about the gap
		// through a LagError.
		s.buf = s.buf[1:]
		s.missed++
	}
	s.buf = append(s.buf, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the next event in publish order. If events were dropped
// since the previous call it returns a *LagError first; the subscription
// remains usable. After the bus closes and the buffer drains, Next returns
// ErrBusClosed.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if s.missed > 0 {
			n := s.missed
			s.missed = 0
			s.mu.Unlock()
			return Event{}, &LagError{Missed: n}
		}
		if len(s.buf) > 0 {
			ev := s.buf[0]
			s.buf = s.buf[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Event{}, ErrBusClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.markClosed()
}
