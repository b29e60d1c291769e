package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sweater-ventures/dispatch/app"
	"github.com/sweater-ventures/dispatch/geo"
)

// enqueueDeadline bounds how long order creation waits on a full queue
// before answering 503. The order stays Pending either way.
const enqueueDeadline = 5 * time.Second

func init() {
	registerRoute(func(d *app.Application, router *http.ServeMux) {
		router.Handle("POST /orders", routeHandler(d, createOrderHandler))
		router.Handle("GET /orders", routeHandler(d, listOrdersHandler))
		router.Handle("GET /orders/{id}", routeHandler(d, getOrderHandler))
		router.Handle("GET /assignments", routeHandler(d, listAssignmentsHandler))
	})
}

type CreateOrderRequest struct {
	Pickup   geo.Point    `json:"pickup"`
	Dropoff  geo.Point    `json:"dropoff"`
	Priority app.Priority `json:"priority"`
}

func createOrderHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if !req.Pickup.Valid() {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "pickup is out of range"})
		return
	}
	if !req.Dropoff.Valid() {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "dropoff is out of range"})
		return
	}
	if !req.Priority.Valid() {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "priority must be one of Urgent, High, Normal, Low"})
		return
	}

	order := d.Store.CreateOrder(app.CreateOrderParams{
		Pickup:   req.Pickup,
		Dropoff:  req.Dropoff,
		Priority: req.Priority,
	})

	ctx, cancel := context.WithTimeout(r.Context(), enqueueDeadline)
	defer cancel()
	if err := d.Queue.Enqueue(ctx, order.ID); err != nil {
		log(r.Context()).Warn("Order queue full, rejecting", "order_id", order.ID)
		writeJsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "order queue is full"})
		return
	}

	log(r.Context()).Info("Order received", "order_id", order.ID, "priority", order.Priority)
	writeJsonResponse(w, http.StatusCreated, order)
}

func listOrdersHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, d.Store.ListOrders())
}

func getOrderHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "id must be a valid UUID"})
		return
	}

	order, err := d.Store.GetOrder(id)
	if err != nil {
		writeJsonResponse(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJsonResponse(w, http.StatusOK, order)
}

func listAssignmentsHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, d.Store.ListAssignments())
}
