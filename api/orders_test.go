package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweater-ventures/dispatch/app"
	"github.com/sweater-ventures/dispatch/geo"
	"github.com/sweater-ventures/dispatch/testutil"
)

func TestCreateOrder(t *testing.T) {
	d, router := newTestRouter(t)

	req := testutil.NewJSONRequest(t, "POST", "/api/orders", CreateOrderRequest{
		Pickup:   geo.Point{Lat: 52.51, Lng: 13.39},
		Dropoff:  geo.Point{Lat: 52.54, Lng: 13.42},
		Priority: app.PriorityUrgent,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var order app.Order
	testutil.AssertJSONResponse(t, rec, http.StatusCreated, &order)

	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, app.OrderPending, order.Status)
	assert.Equal(t, 0, order.Attempts)

	// The order lands on the assignment queue.
	queued, ok := d.Queue.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, order.ID, queued)
}

func TestCreateOrder_Validation(t *testing.T) {
	_, router := newTestRouter(t)

	valid := CreateOrderRequest{
		Pickup:   geo.Point{Lat: 52.51, Lng: 13.39},
		Dropoff:  geo.Point{Lat: 52.54, Lng: 13.42},
		Priority: app.PriorityNormal,
	}

	cases := []struct {
		name   string
		mutate func(*CreateOrderRequest)
		want   string
	}{
		{"bad pickup", func(r *CreateOrderRequest) { r.Pickup.Lat = 95 }, "pickup is out of range"},
		{"bad dropoff", func(r *CreateOrderRequest) { r.Dropoff.Lng = -200 }, "dropoff is out of range"},
		{"bad priority", func(r *CreateOrderRequest) { r.Priority = "ASAP" }, "priority must be one of"},
		{"empty priority", func(r *CreateOrderRequest) { r.Priority = "" }, "priority must be one of"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, testutil.NewJSONRequest(t, "POST", "/api/orders", req))
			testutil.AssertJSONError(t, rec, http.StatusBadRequest, tc.want)
		})
	}
}

func TestGetOrder(t *testing.T) {
	d, router := newTestRouter(t)
	created := d.Store.CreateOrder(testutil.NewOrderParams())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/orders/"+created.ID.String(), nil))

	var order app.Order
	testutil.AssertJSONResponse(t, rec, http.StatusOK, &order)
	assert.Equal(t, created.ID, order.ID)
}

func TestGetOrder_NotFound(t *testing.T) {
	_, router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/orders/"+uuid.Must(uuid.NewV7()).String(), nil))
	testutil.AssertJSONError(t, rec, http.StatusNotFound, "order not found")
}

func TestListOrders(t *testing.T) {
	d, router := newTestRouter(t)
	d.Store.CreateOrder(testutil.NewOrderParams())
	d.Store.CreateOrder(testutil.NewOrderParams(func(p *app.CreateOrderParams) {
		p.Priority = app.PriorityUrgent
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/orders", nil))

	var orders []app.Order
	testutil.AssertJSONResponse(t, rec, http.StatusOK, &orders)
	assert.Len(t, orders, 2)
}

func TestListAssignments(t *testing.T) {
	d, router := newTestRouter(t)

	c := d.Store.CreateCourier(testutil.NewCourierParams())
	o := d.Store.CreateOrder(testutil.NewOrderParams())
	_, _, _, err := d.Store.TryCommitAssignment(o.ID, c.ID, 0.9, app.ScoreBreakdown{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/assignments", nil))

	var assignments []app.Assignment
	testutil.AssertJSONResponse(t, rec, http.StatusOK, &assignments)
	require.Len(t, assignments, 1)
	assert.Equal(t, o.ID, assignments[0].OrderID)
	assert.Equal(t, c.ID, assignments[0].CourierID)
}

func TestHealth(t *testing.T) {
	d, router := newTestRouter(t)
	d.Store.CreateCourier(testutil.NewCourierParams())
	d.Store.CreateOrder(testutil.NewOrderParams())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	var health HealthResponse
	testutil.AssertJSONResponse(t, rec, http.StatusOK, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Couriers)
	assert.Equal(t, 1, health.Orders)
	assert.Equal(t, 0, health.Assignments)
}

func TestMetricsEndpoint(t *testing.T) {
	d, router := newTestRouter(t)
	d.Metrics.AssignmentsTotal.WithLabelValues(app.OutcomeSuccess).Inc()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assignments_total")
}
