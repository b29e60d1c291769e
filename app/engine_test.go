package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweater-ventures/dispatch/config"
	"github.com/sweater-ventures/dispatch/geo"
)

func newEngineApp(t *testing.T, maxAttempts int) *Application {
	t.Helper()
	cfg := config.AppConfig{
		OrderQueueSize:  64,
		EventBufferSize: 64,
		MaxAttempts:     maxAttempts,
	}
	d := NewApp(&cfg)
	StartEngine(d)
	t.Cleanup(d.Close)
	return d
}

func submitOrder(t *testing.T, d *Application, p CreateOrderParams) Order {
	t.Helper()
	o := d.Store.CreateOrder(p)
	require.NoError(t, d.Queue.Enqueue(context.Background(), o.ID))
	return o
}

func berlinOrder(priority Priority) CreateOrderParams {
	return CreateOrderParams{
		Pickup:   geo.Point{Lat: 52.51, Lng: 13.39},
		Dropoff:  geo.Point{Lat: 52.54, Lng: 13.42},
		Priority: priority,
	}
}

func TestEngine_AssignsSingleObviousMatch(t *testing.T) {
	d := newEngineApp(t, 20)

	c := d.Store.CreateCourier(CreateCourierParams{
		Name:     "Alice",
		Location: geo.Point{Lat: 52.52, Lng: 13.405},
		Capacity: 5,
		Rating:   4.8,
	})

	sub := d.Events.Subscribe()
	defer sub.Close()

	o := submitOrder(t, d, berlinOrder(PriorityUrgent))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, EventAssignment, ev.Type)
	require.NotNil(t, ev.Assignment)
	assert.Equal(t, o.ID, ev.Assignment.OrderID)
	assert.Equal(t, c.ID, ev.Assignment.CourierID)
	assert.Greater(t, ev.Assignment.Score, 0.0)
	assert.LessOrEqual(t, ev.Assignment.Score, 1.0)

	assigned, err := d.Store.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderAssigned, assigned.Status)

	courier, err := d.Store.GetCourier(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, courier.CurrentLoad)

	require.Len(t, d.Store.ListAssignments(), 1)
}

func TestEngine_RetriesWhenNoCouriers(t *testing.T) {
	d := newEngineApp(t, 20)

	o := submitOrder(t, d, berlinOrder(PriorityNormal))

	require.Eventually(t, func() bool {
		order, err := d.Store.GetOrder(o.ID)
		return err == nil && order.Attempts >= 2
	}, time.Second, 10*time.Millisecond, "order should be retried while no couriers exist")

	order, err := d.Store.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderPending, order.Status)
	assert.Empty(t, d.Store.ListAssignments())
}

func TestEngine_FailsOrderAfterMaxAttempts(t *testing.T) {
	d := newEngineApp(t, 2)

	sub := d.Events.Subscribe()
	defer sub.Close()

	o := submitOrder(t, d, berlinOrder(PriorityHigh))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, EventOrderFailed, ev.Type)
	assert.Nil(t, ev.Assignment)
	assert.Equal(t, o.ID, ev.Order.ID)
	assert.Equal(t, OrderFailed, ev.Order.Status)

	failed, err := d.Store.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderFailed, failed.Status)
	assert.GreaterOrEqual(t, failed.Attempts, 2)
}

func TestEngine_CapacityExhaustionLeavesOrdersPending(t *testing.T) {
	d := newEngineApp(t, 20)

	c := d.Store.CreateCourier(CreateCourierParams{
		Name:     "Alice",
		Location: geo.Point{Lat: 52.52, Lng: 13.405},
		Capacity: 1,
		Rating:   5.0,
	})

	o1 := submitOrder(t, d, berlinOrder(PriorityUrgent))
	o2 := submitOrder(t, d, berlinOrder(PriorityUrgent))
	o3 := submitOrder(t, d, berlinOrder(PriorityUrgent))

	require.Eventually(t, func() bool {
		return len(d.Store.ListAssignments()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	courier, err := d.Store.GetCourier(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, courier.CurrentLoad)

	// The winner is the first order; the rest keep retrying.
	first, err := d.Store.GetOrder(o1.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderAssigned, first.Status)

	require.Eventually(t, func() bool {
		a, errA := d.Store.GetOrder(o2.ID)
		b, errB := d.Store.GetOrder(o3.ID)
		return errA == nil && errB == nil && a.Attempts >= 2 && b.Attempts >= 2
	}, 2*time.Second, 10*time.Millisecond)

	for _, id := range []uuid.UUID{o2.ID, o3.ID} {
		order, err := d.Store.GetOrder(id)
		require.NoError(t, err)
		assert.Equal(t, OrderPending, order.Status)
	}
	assert.Len(t, d.Store.ListAssignments(), 1)
}

func TestEngine_PrefersCloserCourier(t *testing.T) {
	d := newEngineApp(t, 20)

	near := d.Store.CreateCourier(CreateCourierParams{
		Name:     "Near",
		Location: geo.Point{Lat: 52.511, Lng: 13.391},
		Capacity: 5,
		Rating:   4.5,
	})
	d.Store.CreateCourier(CreateCourierParams{
		Name:     "Far",
		Location: geo.Point{Lat: 52.7, Lng: 13.7},
		Capacity: 5,
		Rating:   4.5,
	})

	submitOrder(t, d, berlinOrder(PriorityNormal))

	require.Eventually(t, func() bool {
		return len(d.Store.ListAssignments()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, near.ID, d.Store.ListAssignments()[0].CourierID)
}

// Spec scenario: many concurrent orders against two identical couriers.
// Total assignments equal combined capacity, neither courier exceeds its
// own, and the load/assignment accounting stays consistent.
func TestEngine_ConcurrentOrdersNeverOverbook(t *testing.T) {
	d := newEngineApp(t, 3)

	c1 := d.Store.CreateCourier(CreateCourierParams{
		Name:     "Alice",
		Location: geo.Point{Lat: 52.52, Lng: 13.405},
		Capacity: 3,
		Rating:   4.5,
	})
	c2 := d.Store.CreateCourier(CreateCourierParams{
		Name:     "Bob",
		Location: geo.Point{Lat: 52.52, Lng: 13.405},
		Capacity: 3,
		Rating:   4.5,
	})

	const orders = 20
	var wg sync.WaitGroup
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			submitOrder(t, d, berlinOrder(PriorityNormal))
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return len(d.Store.ListAssignments()) == 6
	}, 5*time.Second, 10*time.Millisecond)

	a, err := d.Store.GetCourier(c1.ID)
	require.NoError(t, err)
	b, err := d.Store.GetCourier(c2.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, a.CurrentLoad)
	assert.Equal(t, 3, b.CurrentLoad)
	assert.Equal(t, a.CurrentLoad+b.CurrentLoad, len(d.Store.ListAssignments()))

	// Each assignment binds a distinct order.
	seen := make(map[uuid.UUID]bool)
	for _, assignment := range d.Store.ListAssignments() {
		assert.False(t, seen[assignment.OrderID], "order assigned twice")
		seen[assignment.OrderID] = true
	}
}

func TestEngine_ShutdownClosesEventBus(t *testing.T) {
	cfg := config.AppConfig{OrderQueueSize: 8, EventBufferSize: 8, MaxAttempts: 20}
	d := NewApp(&cfg)
	StartEngine(d)

	sub := d.Events.Subscribe()
	d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, ErrBusClosed)
}
