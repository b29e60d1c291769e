package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/sweater-ventures/dispatch/geo"
)

// CourierStatus is the courier availability state.
type CourierStatus string

const (
	CourierAvailable CourierStatus = "Available"
	CourierBusy      CourierStatus = "Busy"
	CourierOffline   CourierStatus = "Offline"
)

// Valid reports whether s is a known courier status.
func (s CourierStatus) Valid() bool {
	switch s {
	case CourierAvailable, CourierBusy, CourierOffline:
		return true
	}
	return false
}

// Priority ranks an order's urgency. It influences scoring, not queue order.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityNormal Priority = "Normal"
	PriorityLow    Priority = "Low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// OrderStatus is the delivery order lifecycle state.
type OrderStatus string

const (
	OrderPending  OrderStatus = "Pending"
	OrderAssigned OrderStatus = "Assigned"
	OrderFailed   OrderStatus = "Failed"
)

// Courier is a delivery worker. CurrentLoad is mutated only by the
// assignment engine; status and location are patched through the API.
type Courier struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Location    geo.Point     `json:"location"`
	Capacity    int           `json:"capacity"`
	CurrentLoad int           `json:"current_load"`
	Rating      float64       `json:"rating"`
	Status      CourierStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Eligible reports whether the courier can take another order.
func (c Courier) Eligible() bool {
	return c.Status == CourierAvailable && c.CurrentLoad < c.Capacity
}

// Order is a pickup/dropoff request awaiting assignment.
type Order struct {
	ID        uuid.UUID   `json:"id"`
	Pickup    geo.Point   `json:"pickup"`
	Dropoff   geo.Point   `json:"dropoff"`
	Priority  Priority    `json:"priority"`
	Status    OrderStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	CreatedAt time.Time   `json:"created_at"`
}

// ScoreBreakdown holds the per-factor sub-scores behind a composite score.
type ScoreBreakdown struct {
	Distance float64 `json:"distance_score"`
	Load     float64 `json:"load_score"`
	Rating   float64 `json:"rating_score"`
	Priority float64 `json:"priority_score"`
}

// Assignment is the immutable record binding one order to one courier.
type Assignment struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	CourierID  uuid.UUID      `json:"courier_id"`
	Score      float64        `json:"score"`
	Breakdown  ScoreBreakdown `json:"score_breakdown"`
	AssignedAt time.Time      `json:"assigned_at"`
}
