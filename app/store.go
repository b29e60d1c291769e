package app

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweater-ventures/dispatch/geo"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrCourierUnavailable = errors.New("courier unavailable")
	ErrOrderNotPending    = errors.New("order not pending")
)

type courierEntry struct {
	mu sync.Mutex
	c  Courier
}

type orderEntry struct {
	mu sync.Mutex
	o  Order
}

// Store is the in-memory repository of couriers, orders, and assignments.
// Each courier and order has its own entry lock; the maps themselves are
// guarded by a read-write lock that is only held for lookups and inserts.
// There is no store-wide lock. Cross-entity mutation happens only in
// TryCommitAssignment, which acquires the courier lock before the order
// lock, always.
type Store struct {
	mu       sync.RWMutex
	couriers map[uuid.UUID]*courierEntry
	orders   map[uuid.UUID]*orderEntry

	assignMu    sync.RWMutex
	assignments []Assignment

	metrics *Metrics
}

func NewStore(metrics *Metrics) *Store {
	return &Store{
		couriers: make(map[uuid.UUID]*courierEntry),
		orders:   make(map[uuid.UUID]*orderEntry),
		metrics:  metrics,
	}
}

// CreateCourierParams carries validated input for a new courier.
type CreateCourierParams struct {
	Name     string
	Location geo.Point
	Capacity int
	Rating   float64
}

func (s *Store) CreateCourier(p CreateCourierParams) Courier {
	now := time.Now().UTC()
	c := Courier{
		ID:          uuid.Must(uuid.NewV7()),
		Name:        p.Name,
		Location:    p.Location,
		Capacity:    p.Capacity,
		CurrentLoad: 0,
		Rating:      p.Rating,
		Status:      CourierAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.couriers[c.ID] = &courierEntry{c: c}
	s.mu.Unlock()

	return c
}

func (s *Store) courierEntry(id uuid.UUID) (*courierEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.couriers[id]
	return entry, ok
}

func (s *Store) orderEntry(id uuid.UUID) (*orderEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.orders[id]
	return entry, ok
}

func (s *Store) GetCourier(id uuid.UUID) (Courier, error) {
	entry, ok := s.courierEntry(id)
	if !ok {
		return Courier{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.c, nil
}

// ListCouriers returns a snapshot of all couriers, ordered by id. The
// snapshot may be stale by the time the caller acts on it; any decision
// based on it must be re-validated inside TryCommitAssignment.
func (s *Store) ListCouriers() []Courier {
	s.mu.RLock()
	entries := make([]*courierEntry, 0, len(s.couriers))
	for _, entry := range s.couriers {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	couriers := make([]Courier, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		couriers = append(couriers, entry.c)
		entry.mu.Unlock()
	}
	sort.Slice(couriers, func(i, j int) bool {
		return couriers[i].ID.String() < couriers[j].ID.String()
	})
	return couriers
}

func (s *Store) PatchCourierStatus(id uuid.UUID, status CourierStatus) (Courier, error) {
	entry, ok := s.courierEntry(id)
	if !ok {
		return Courier{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.c.Status = status
	entry.c.UpdatedAt = time.Now().UTC()
	return entry.c, nil
}

func (s *Store) PatchCourierLocation(id uuid.UUID, loc geo.Point) (Courier, error) {
	entry, ok := s.courierEntry(id)
	if !ok {
		return Courier{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.c.Location = loc
	entry.c.UpdatedAt = time.Now().UTC()
	return entry.c, nil
}

// CreateOrderParams carries validated input for a new order.
type CreateOrderParams struct {
	Pickup   geo.Point
	Dropoff  geo.Point
	Priority Priority
}

func (s *Store) CreateOrder(p CreateOrderParams) Order {
	o := Order{
		ID:        uuid.Must(uuid.NewV7()),
		Pickup:    p.Pickup,
		Dropoff:   p.Dropoff,
		Priority:  p.Priority,
		Status:    OrderPending,
		Attempts:  0,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.orders[o.ID] = &orderEntry{o: o}
	s.mu.Unlock()

	return o
}

func (s *Store) GetOrder(id uuid.UUID) (Order, error) {
	entry, ok := s.orderEntry(id)
	if !ok {
		return Order{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.o, nil
}

func (s *Store) ListOrders() []Order {
	s.mu.RLock()
	entries := make([]*orderEntry, 0, len(s.orders))
	for _, entry := range s.orders {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	orders := make([]Order, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		orders = append(orders, entry.o)
		entry.mu.Unlock()
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID.String() < orders[j].ID.String()
	})
	return orders
}

// IncrementAttempts bumps the order's attempt counter and returns the
// updated order.
func (s *Store) IncrementAttempts(id uuid.UUID) (Order, error) {
	entry, ok := s.orderEntry(id)
	if !ok {
		return Order{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.o.Attempts++
	return entry.o, nil
}

// MarkOrderFailed transitions a pending order to Failed. Orders already
// assigned or failed are left untouched.
func (s *Store) MarkOrderFailed(id uuid.UUID) (Order, error) {
	entry, ok := s.orderEntry(id)
	if !ok {
		return Order{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.o.Status != OrderPending {
		return entry.o, ErrOrderNotPending
	}
	entry.o.Status = OrderFailed
	return entry.o, nil
}

// TryCommitAssignment atomically binds an order to a courier. The courier
// and order are re-read under their entry locks: the scoring pass runs on
// a lock-free snapshot and may be stale, so this re-validation is the
// serialization point that prevents double-booking. Returns the created
// assignment plus post-commit snapshots of both records.
func (s *Store) TryCommitAssignment(orderID, courierID uuid.UUID, score float64, breakdown ScoreBreakdown) (Assignment, Courier, Order, error) {
	ce, ok := s.courierEntry(courierID)
	if !ok {
		return Assignment{}, Courier{}, Order{}, ErrNotFound
	}
	oe, ok := s.orderEntry(orderID)
	if !ok {
		return Assignment{}, Courier{}, Order{}, ErrNotFound
	}

	// Lock order: courier before order, matching every other cross-entity
	// path in the store.
	ce.mu.Lock()
	defer ce.mu.Unlock()
	oe.mu.Lock()
	defer oe.mu.Unlock()

	if !ce.c.Eligible() {
		return Assignment{}, Courier{}, Order{}, ErrCourierUnavailable
	}
	if oe.o.Status != OrderPending {
		return Assignment{}, Courier{}, Order{}, ErrOrderNotPending
	}

	now := time.Now().UTC()
	a := Assignment{
		ID:         uuid.Must(uuid.NewV7()),
		OrderID:    orderID,
		CourierID:  courierID,
		Score:      score,
		Breakdown:  breakdown,
		AssignedAt: now,
	}

	oe.o.Status = OrderAssigned
	ce.c.CurrentLoad++
	ce.c.UpdatedAt = now

	s.assignMu.Lock()
	s.assignments = append(s.assignments, a)
	s.assignMu.Unlock()

	if s.metrics != nil {
		utilization := float64(ce.c.CurrentLoad) / float64(ce.c.Capacity)
		s.metrics.CourierUtilization.WithLabelValues(courierID.String()).Set(utilization)
	}

	return a, ce.c, oe.o, nil
}

func (s *Store) ListAssignments() []Assignment {
	s.assignMu.RLock()
	defer s.assignMu.RUnlock()
	out := make([]Assignment, len(s.assignments))
	copy(out, s.assignments)
	return out
}

// Counts returns collection sizes for the health endpoint.
func (s *Store) Counts() (couriers, orders, assignments int) {
	s.mu.RLock()
	couriers = len(s.couriers)
	orders = len(s.orders)
	s.mu.RUnlock()

	s.assignMu.RLock()
	assignments = len(s.assignments)
	s.assignMu.RUnlock()
	return
}
