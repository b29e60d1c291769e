package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric label values for assignment outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the service's Prometheus collectors on a private registry
// so tests can run side by side without collisions.
type Metrics struct {
	registry *prometheus.Registry

	AssignmentsTotal   *prometheus.CounterVec
	AssignmentLatency  *prometheus.HistogramVec
	OrdersInQueue      prometheus.Gauge
	CourierUtilization *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AssignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignments_total",
			Help: "Total assignments by outcome",
		}, []string{"outcome"}),
		AssignmentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assignment_latency_seconds",
			Help:    "Latency of the assignment commit in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		OrdersInQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orders_in_queue",
			Help: "Current number of orders waiting for assignment",
		}),
		CourierUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "courier_utilization",
			Help: "Courier utilization ratio [0..1]",
		}, []string{"courier_id"}),
	}

	m.registry.MustRegister(
		m.AssignmentsTotal,
		m.AssignmentLatency,
		m.OrdersInQueue,
		m.CourierUtilization,
	)

	return m
}

// Handler returns the text exposition handler for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
