package api

import (
	"net/http"

	"github.com/sweater-ventures/dispatch/app"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Couriers    int    `json:"couriers"`
	Orders      int    `json:"orders"`
	Assignments int    `json:"assignments"`
	QueueDepth  int    `json:"queue_depth"`
}

func healthHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	couriers, orders, assignments := d.Store.Counts()
	writeJsonResponse(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Couriers:    couriers,
		Orders:      orders,
		Assignments: assignments,
		QueueDepth:  d.Queue.Len(),
	})
}
